// Coverage tool for wxlog.
//
// Runs the tests with coverage, compares the total against the floor stored
// in coverage_required.txt next to this file, and raises the floor when
// coverage improves. Fails if coverage drops below the floor.
//
// Usage:
//
//	go run ./scripts/coverage
package main

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// excluded lists coverage profile path fragments left out of the total.
var excluded = []string{
	"/docs/swagger/", // generated by swag
	"/cmd/",          // process wiring
	"/scripts/",
}

func main() {
	scriptDir := scriptDir()
	root := projectRoot(scriptDir)
	floorFile := filepath.Join(scriptDir, "coverage_required.txt")
	reportDir := filepath.Join(root, "target", "reports")
	if err := os.MkdirAll(reportDir, 0o755); err != nil {
		log.Fatalf("creating report directory: %v", err)
	}

	floor, err := readFloor(floorFile)
	if err != nil {
		log.Fatalf("reading coverage floor: %v", err)
	}
	fmt.Printf("Coverage floor: %d%%\n\n", floor)

	profile := filepath.Join(reportDir, "coverage.out")
	filtered := filepath.Join(reportDir, "coverage-filtered.out")

	cmd := exec.Command("go", "test", "./...", "-count=1", "-race", "-coverprofile="+profile)
	cmd.Dir = root
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		log.Fatalf("tests failed: %v", err)
	}

	if err := filterProfile(profile, filtered); err != nil {
		log.Fatalf("filtering coverage profile: %v", err)
	}

	out, err := exec.Command("go", "tool", "cover", "-func="+filtered).Output()
	if err != nil {
		log.Fatalf("generating coverage report: %v", err)
	}
	fmt.Println(string(out))

	total, err := totalCoverage(string(out))
	if err != nil {
		log.Fatalf("extracting total coverage: %v", err)
	}
	fmt.Printf("Total coverage: %d%%  (floor %d%%)\n", total, floor)

	switch {
	case total < floor:
		fmt.Printf("Coverage %d%% is below the floor of %d%%\n", total, floor)
		os.Exit(1)
	case total > floor:
		fmt.Printf("Raising floor from %d%% to %d%%\n", floor, total)
		if err := os.WriteFile(floorFile, []byte(strconv.Itoa(total)+"\n"), 0o644); err != nil {
			log.Fatalf("updating coverage floor: %v", err)
		}
	}

	html := filepath.Join(reportDir, "coverage.html")
	if err := exec.Command("go", "tool", "cover", "-html="+filtered, "-o", html).Run(); err != nil {
		fmt.Printf("Warning: could not generate HTML report: %v\n", err)
	} else {
		fmt.Printf("HTML coverage report: %s\n", html)
	}
}

func totalCoverage(report string) (int, error) {
	for line := range strings.SplitSeq(report, "\n") {
		if !strings.HasPrefix(line, "total:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return 0, fmt.Errorf("unexpected total line: %s", line)
		}
		pct, err := strconv.ParseFloat(strings.TrimSuffix(fields[2], "%"), 64)
		if err != nil {
			return 0, fmt.Errorf("parsing %q: %w", fields[2], err)
		}
		return int(pct), nil
	}
	return 0, fmt.Errorf("total coverage not found in output")
}

func readFloor(path string) (int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(content)))
}

// filterProfile copies src to dst without lines from excluded paths.
func filterProfile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	var kept []string
	for line := range strings.SplitSeq(string(data), "\n") {
		if !isExcluded(line) {
			kept = append(kept, line)
		}
	}
	return os.WriteFile(dst, []byte(strings.Join(kept, "\n")), 0o644)
}

func isExcluded(line string) bool {
	for _, frag := range excluded {
		if strings.Contains(line, frag) {
			return true
		}
	}
	return false
}

func scriptDir() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		log.Fatal("could not determine script directory")
	}
	return filepath.Dir(file)
}

func projectRoot(from string) string {
	for dir := from; ; dir = filepath.Dir(dir) {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		if dir == filepath.Dir(dir) {
			log.Fatal("could not find project root (no go.mod found)")
		}
	}
}
