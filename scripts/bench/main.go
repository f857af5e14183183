// Benchmark report tool for wxlog.
//
// Runs the ingestion benchmarks and writes a timestamped report to
// target/reports/bench.txt. Exits non-zero if any benchmark fails.
//
// Usage:
//
//	go run ./scripts/bench
//	BENCH_TIME=10s go run ./scripts/bench
package main

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// benchPackages hold the benchmarks on the datagram path.
var benchPackages = []string{
	"./internal/wx/",
	"./internal/store/",
	"./internal/collector/",
}

func main() {
	root := projectRoot()
	reportDir := filepath.Join(root, "target", "reports")
	if err := os.MkdirAll(reportDir, 0o755); err != nil {
		log.Fatalf("creating report directory: %v", err)
	}

	benchTime := os.Getenv("BENCH_TIME")
	if benchTime == "" {
		benchTime = "3s"
	}

	fmt.Printf("Running benchmarks (benchtime=%s)...\n\n", benchTime)

	args := append([]string{"test", "-run=^$", "-bench=.", "-benchmem", "-benchtime=" + benchTime}, benchPackages...)
	cmd := exec.Command("go", args...)
	cmd.Dir = root

	var buf bytes.Buffer
	cmd.Stdout = io.MultiWriter(os.Stdout, &buf)
	cmd.Stderr = io.MultiWriter(os.Stderr, &buf)
	runErr := cmd.Run()

	var report strings.Builder
	sep := strings.Repeat("=", 72)
	report.WriteString("wxlog Benchmark Report\n" + sep + "\n")
	fmt.Fprintf(&report, "Generated:      %s\n", time.Now().Format(time.RFC1123))
	fmt.Fprintf(&report, "Go Version:     %s\n", goVersion())
	fmt.Fprintf(&report, "OS/Arch:        %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(&report, "Benchmark Time: %s per benchmark\n", benchTime)
	fmt.Fprintf(&report, "Packages:       %s\n", strings.Join(benchPackages, " "))
	report.WriteString(sep + "\n\n" + buf.String())
	if runErr != nil {
		fmt.Fprintf(&report, "\n[ERROR] %v\n", runErr)
	}

	reportPath := filepath.Join(reportDir, "bench.txt")
	if err := os.WriteFile(reportPath, []byte(report.String()), 0o644); err != nil {
		log.Fatalf("writing bench report: %v", err)
	}
	fmt.Printf("\nBenchmark report: %s\n", reportPath)

	if runErr != nil {
		os.Exit(1)
	}
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
