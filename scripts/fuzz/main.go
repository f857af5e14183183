// Fuzz report tool for wxlog.
//
// Runs every fuzz target for FUZZ_TIME (default 30s), prints a one-line
// result per target, and writes the full log to target/reports/fuzz.txt.
// Exits non-zero if any target finds a failing input.
//
// Usage:
//
//	go run ./scripts/fuzz
//	FUZZ_TIME=2m go run ./scripts/fuzz
package main

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"
)

type fuzzTarget struct {
	Function string
	Package  string
}

var fuzzTargets = []fuzzTarget{
	// Datagram field extraction
	{Function: "FuzzExtract", Package: "./internal/wx/"},
	// Unit conversion of raw field values
	{Function: "FuzzConvert", Package: "./internal/units/"},
	// Config parsing
	{Function: "FuzzExpandEnvVars", Package: "./internal/config/"},
}

// reProgress matches the last progress line printed by the fuzz engine.
var reProgress = regexp.MustCompile(`execs:\s+(\d+)\s+\((\d+)/sec\), new interesting:\s+(\d+)`)

type fuzzResult struct {
	fuzzTarget
	Elapsed time.Duration
	Stats   string
	Passed  bool
	Output  string
}

func main() {
	root := projectRoot()
	reportDir := filepath.Join(root, "target", "reports")
	if err := os.MkdirAll(reportDir, 0o755); err != nil {
		log.Fatalf("creating report directory: %v", err)
	}

	fuzzTime := os.Getenv("FUZZ_TIME")
	if fuzzTime == "" {
		fuzzTime = "30s"
	}

	fmt.Printf("Running %d fuzz targets (fuzztime=%s each)...\n\n", len(fuzzTargets), fuzzTime)

	var results []fuzzResult
	failed := 0
	for _, t := range fuzzTargets {
		r := runFuzz(root, t, fuzzTime)
		results = append(results, r)
		status := "PASS"
		if !r.Passed {
			status = "FAIL"
			failed++
		}
		fmt.Printf("%s  %-20s %s\n", status, t.Function, r.Stats)
	}

	reportPath := filepath.Join(reportDir, "fuzz.txt")
	if err := os.WriteFile(reportPath, []byte(report(fuzzTime, results)), 0o644); err != nil {
		log.Fatalf("writing fuzz report: %v", err)
	}
	fmt.Printf("\nFuzz report: %s\n", reportPath)

	if failed > 0 {
		fmt.Printf("%d fuzz target(s) failed.\n", failed)
		os.Exit(1)
	}
}

func runFuzz(root string, t fuzzTarget, fuzzTime string) fuzzResult {
	cmd := exec.Command("go", "test",
		"-run=^$",
		"-fuzz=^"+t.Function+"$",
		"-fuzztime="+fuzzTime,
		t.Package,
	)
	cmd.Dir = root

	var buf bytes.Buffer
	cmd.Stdout = io.MultiWriter(io.Discard, &buf)
	cmd.Stderr = &buf

	start := time.Now()
	err := cmd.Run()
	out := buf.String()

	stats := "no progress reported"
	if m := reProgress.FindAllStringSubmatch(out, -1); len(m) > 0 {
		last := m[len(m)-1]
		stats = fmt.Sprintf("execs: %s (%s/sec)  new interesting: %s", last[1], last[2], last[3])
	}

	// The fuzz timer can race test finalization and report "context deadline
	// exceeded" without a failing input; only a written corpus entry counts.
	passed := err == nil ||
		(strings.Contains(out, "context deadline exceeded") && !strings.Contains(out, "Failing input written to"))

	return fuzzResult{fuzzTarget: t, Elapsed: time.Since(start), Stats: stats, Passed: passed, Output: out}
}

func report(fuzzTime string, results []fuzzResult) string {
	var sb strings.Builder
	sep := strings.Repeat("=", 72)

	sb.WriteString("wxlog Fuzz Testing Report\n" + sep + "\n")
	fmt.Fprintf(&sb, "Generated:  %s\n", time.Now().Format(time.RFC1123))
	fmt.Fprintf(&sb, "Go Version: %s\n", goVersion())
	fmt.Fprintf(&sb, "OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(&sb, "Fuzz Time:  %s per target\n", fuzzTime)
	sb.WriteString(sep + "\n\n")

	for _, r := range results {
		status := "PASS"
		if !r.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(&sb, "[%s] %s (%s) in %s\n  %s\n\n", status, r.Function, r.Package,
			r.Elapsed.Round(time.Millisecond), r.Stats)
		for line := range strings.SplitSeq(strings.TrimRight(r.Output, "\n"), "\n") {
			sb.WriteString("    " + line + "\n")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func goVersion() string {
	out, err := exec.Command("go", "version").Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(out))
}

// projectRoot walks up from this source file to the directory holding go.mod.
func projectRoot() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		log.Fatal("could not determine script directory")
	}
	for dir := filepath.Dir(file); ; dir = filepath.Dir(dir) {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		if dir == filepath.Dir(dir) {
			log.Fatal("could not find project root (no go.mod found)")
		}
	}
}
