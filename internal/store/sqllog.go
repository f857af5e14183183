package store

import (
	"context"
	"database/sql/driver"
	"fmt"
	"log/slog"
)

// loggingConnector opens partition connections and logs every executed
// statement at debug level. Reads pass through unlogged.
type loggingConnector struct {
	dsn    string
	drv    driver.Driver
	logger *slog.Logger
}

// newLoggingConnector returns a driver.Connector for sql.OpenDB.
// If logger is nil, slog.Default() is used.
func newLoggingConnector(drv driver.Driver, dsn string, logger *slog.Logger) driver.Connector {
	if logger == nil {
		logger = slog.Default()
	}
	return &loggingConnector{dsn: dsn, drv: drv, logger: logger}
}

func (c *loggingConnector) Driver() driver.Driver { return c.drv }

func (c *loggingConnector) Connect(ctx context.Context) (driver.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	conn, err := c.drv.Open(c.dsn)
	if err != nil {
		return nil, err
	}
	return &loggingConn{Conn: conn, logger: c.logger}, nil
}

// loggingConn hands out statements that log on exec. Begin and Close come
// from the embedded driver.Conn.
type loggingConn struct {
	driver.Conn
	logger *slog.Logger
}

func (c *loggingConn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

func (c *loggingConn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	var (
		stmt driver.Stmt
		err  error
	)
	if prep, ok := c.Conn.(driver.ConnPrepareContext); ok {
		stmt, err = prep.PrepareContext(ctx, query)
	} else {
		stmt, err = c.Conn.Prepare(query)
	}
	if err != nil {
		return nil, err
	}
	return &loggingStmt{Stmt: stmt, query: query, logger: c.logger}, nil
}

// loggingStmt logs exec calls with their arguments. Query, Close and
// NumInput come from the embedded driver.Stmt.
type loggingStmt struct {
	driver.Stmt
	query  string
	logger *slog.Logger
}

func (s *loggingStmt) Exec(args []driver.Value) (driver.Result, error) {
	s.logExec(args)
	//nolint:staticcheck // SA1019: driver.Stmt requires Exec
	return s.Stmt.Exec(args)
}

func (s *loggingStmt) ExecContext(ctx context.Context, named []driver.NamedValue) (driver.Result, error) {
	args := make([]driver.Value, len(named))
	for i := range named {
		args[i] = named[i].Value
	}
	if ec, ok := s.Stmt.(driver.StmtExecContext); ok {
		s.logExec(args)
		return ec.ExecContext(ctx, named)
	}
	return s.Exec(args)
}

func (s *loggingStmt) logExec(args []driver.Value) {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = formatArg(a)
	}
	s.logger.Debug("sql", "op", "exec", "sql", s.query, "args", out)
}

func formatArg(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}
