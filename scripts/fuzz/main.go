// Fuzz runner for Herald.
//
// Finds every Fuzz* function in the module's _test.go files, runs each for
// FUZZ_TIME, and writes a summary to target/reports/fuzz.txt. Exits non-zero
// when any target reports a failing input.
//
// Usage:
//
//	go run ./scripts/fuzz
//	FUZZ_TIME=60s go run ./scripts/fuzz
package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"strings"
	"time"
)

type fuzzTarget struct {
	Function string
	Package  string
}

type fuzzResult struct {
	Target   fuzzTarget
	Duration time.Duration
	Execs    string
	Passed   bool
}

var (
	reFuzzFunc = regexp.MustCompile(`^func (Fuzz\w+)\(f \*testing\.F\)`)
	reExecs    = regexp.MustCompile(`execs:\s+(\d+)`)
)

func main() {
	root := findProjectRoot()
	reportDir := filepath.Join(root, "target", "reports")
	if err := os.MkdirAll(reportDir, 0o755); err != nil {
		log.Fatalf("creating report directory: %v", err)
	}

	fuzzTime := os.Getenv("FUZZ_TIME")
	if fuzzTime == "" {
		fuzzTime = "30s"
	}

	targets, err := discover(root)
	if err != nil {
		log.Fatalf("discovering fuzz targets: %v", err)
	}
	fmt.Printf("Running %d fuzz targets (fuzztime=%s each)...\n\n", len(targets), fuzzTime)

	var results []fuzzResult
	failures := 0
	for _, target := range targets {
		fmt.Printf("--- %s (%s) ---\n", target.Function, target.Package)
		r := run(root, target, fuzzTime)
		results = append(results, r)
		if !r.Passed {
			failures++
		}
	}

	reportPath := filepath.Join(reportDir, "fuzz.txt")
	if err := os.WriteFile(reportPath, []byte(report(fuzzTime, results)), 0o644); err != nil {
		log.Fatalf("writing fuzz report: %v", err)
	}
	fmt.Printf("Fuzz report: %s\n", reportPath)

	if failures > 0 {
		fmt.Printf("\n%d fuzz target(s) failed.\n", failures)
		os.Exit(1)
	}
}

// discover walks the module for Fuzz functions, skipping vendored and
// underscore-prefixed directories.
func discover(root string) ([]fuzzTarget, error) {
	var targets []fuzzTarget
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") || name == "vendor" || name == "target") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, "_test.go") {
			return nil
		}
		rel, err := filepath.Rel(root, filepath.Dir(path))
		if err != nil {
			return err
		}
		funcs, err := fuzzFuncs(path)
		if err != nil {
			return err
		}
		for _, fn := range funcs {
			targets = append(targets, fuzzTarget{Function: fn, Package: "./" + filepath.ToSlash(rel) + "/"})
		}
		return nil
	})
	slices.SortFunc(targets, func(a, b fuzzTarget) int {
		return strings.Compare(a.Package+a.Function, b.Package+b.Function)
	})
	return targets, err
}

func fuzzFuncs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if m := reFuzzFunc.FindStringSubmatch(sc.Text()); m != nil {
			out = append(out, m[1])
		}
	}
	return out, sc.Err()
}

func run(root string, target fuzzTarget, fuzzTime string) fuzzResult {
	start := time.Now()
	cmd := exec.Command("go", "test",
		"-run=^$",
		fmt.Sprintf("-fuzz=^%s$", target.Function),
		fmt.Sprintf("-fuzztime=%s", fuzzTime),
		target.Package,
	)
	cmd.Dir = root

	var buf bytes.Buffer
	cmd.Stdout = io.MultiWriter(os.Stdout, &buf)
	cmd.Stderr = io.MultiWriter(os.Stderr, &buf)
	err := cmd.Run()
	output := buf.String()

	execs := "?"
	if all := reExecs.FindAllStringSubmatch(output, -1); len(all) > 0 {
		execs = all[len(all)-1][1]
	}

	// The fuzz timer can race test teardown and surface as a deadline error
	// with no failing input recorded.
	passed := err == nil ||
		(strings.Contains(output, "context deadline exceeded") &&
			!strings.Contains(output, "Failing input written to"))

	return fuzzResult{Target: target, Duration: time.Since(start), Execs: execs, Passed: passed}
}

func report(fuzzTime string, results []fuzzResult) string {
	var sb strings.Builder
	sep := strings.Repeat("=", 72)

	sb.WriteString("Herald Fuzz Report\n")
	sb.WriteString(sep + "\n")
	fmt.Fprintf(&sb, "Generated:  %s\n", time.Now().Format(time.RFC1123))
	fmt.Fprintf(&sb, "OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(&sb, "Fuzz Time:  %s per target\n", fuzzTime)
	sb.WriteString(sep + "\n\n")

	for _, r := range results {
		status := "PASS"
		if !r.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(&sb, "  %-4s  %-28s  %-22s  execs=%s  %s\n",
			status, r.Target.Function, r.Target.Package, r.Execs, r.Duration.Round(time.Millisecond))
	}
	return sb.String()
}

func findProjectRoot() string {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		log.Fatal("could not determine script directory")
	}
	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			log.Fatal("could not find project root (no go.mod found)")
		}
		dir = parent
	}
}
