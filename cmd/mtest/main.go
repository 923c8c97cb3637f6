// mtest runs the compiler over a directory of test inputs. Syntax trees (*.json)
// are compiled and simulated by the compiler binary and compared with golden
// files; case books (*.md) are checked in process
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/mcc/pkg/casebook"
)

type Status string

const (
	StatusPass  Status = "PASS"
	StatusFail  Status = "FAIL"
	StatusSkip  Status = "SKIP"
	StatusError Status = "ERROR"
)

// Execution is one captured invocation of the compiler
type Execution struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exitCode"`
	Duration time.Duration `json:"duration"`
	TimedOut bool          `json:"timed_out"`
}

// Golden is what a golden file records for one syntax tree
type Golden struct {
	Compile Execution `json:"compile"`
	Run     Execution `json:"run"`
}

type Result struct {
	File    string  `json:"file"`
	Status  Status  `json:"status"`
	Message string  `json:"message,omitempty"`
	Diff    string  `json:"diff,omitempty"`
	Golden  *Golden `json:"golden,omitempty"`
	Target  *Golden `json:"target,omitempty"`
}

// runner carries the command-line options through a test run
type runner struct {
	compiler   string
	args       []string
	goldenDir  string
	timeout    time.Duration
	jobs       int
	verbose    bool
	ignored    []string
	skip       map[string]bool
	reportFile string
}

const (
	cRed    = "\x1b[91m"
	cYellow = "\x1b[93m"
	cGreen  = "\x1b[92m"
	cCyan   = "\x1b[96m"
	cBold   = "\x1b[1m"
	cNone   = "\x1b[0m"
)

func main() {
	var (
		compiler = flag.String("compiler", "./mcc", "Path to the compiler under test.")
		args     = flag.String("compiler-args", "-Fno-comments", "Extra compiler arguments (space-separated).")
		generate = flag.String("generate-golden", "", "Write the golden file for one syntax tree and exit.")
		patterns = flag.String("test-files", "testdata/*.md testdata/programs/*.json", "Glob patterns of inputs (space-separated).")
		skip     = flag.String("skip-files", "", "Inputs to skip (space-separated).")
		report   = flag.String("output", ".test_results.json", "Where to write the JSON report.")
		timeout  = flag.Duration("timeout", 5*time.Second, "Time limit for each compiler invocation.")
		jobs     = flag.Int("j", 4, "Number of parallel jobs.")
		verbose  = flag.Bool("v", false, "Report passing inputs and cases too.")
		dir      = flag.String("dir", "", "Directory for golden files and the report (defaults to each input's directory).")
		ignore   = flag.String("ignore-lines", "", "Comma-separated substrings; matching output lines are not compared.")
	)
	flag.Parse()
	log.SetFlags(0)

	r := &runner{
		compiler:   *compiler,
		args:       strings.Fields(*args),
		goldenDir:  *dir,
		timeout:    *timeout,
		jobs:       max(*jobs, 1),
		verbose:    *verbose,
		skip:       make(map[string]bool),
		reportFile: *report,
	}
	if *ignore != "" {
		r.ignored = strings.Split(*ignore, ",")
	}
	for _, f := range strings.Fields(*skip) {
		r.skip[f] = true
	}
	if r.goldenDir != "" {
		r.reportFile = filepath.Join(r.goldenDir, r.reportFile)
	}

	if *generate != "" {
		if err := r.writeGolden(*generate); err != nil {
			log.Fatalf("%s[ERROR]%s %v", cRed, cNone, err)
		}
		return
	}

	files, err := expandGlobPatterns(*patterns)
	if err != nil {
		log.Fatalf("%s[ERROR]%s invalid glob pattern(s): %v", cRed, cNone, err)
	}
	if len(files) == 0 {
		log.Println("No inputs match the given patterns.")
		return
	}

	results := r.runAll(files)
	printSummary(results, r.verbose)
	if err := writeReport(r.reportFile, results); err != nil {
		log.Printf("%s[ERROR]%s %v", cRed, cNone, err)
	} else {
		fmt.Printf("Full test report saved to %s\n", r.reportFile)
	}
	for _, res := range results {
		if res.Status == StatusFail || res.Status == StatusError {
			os.Exit(1)
		}
	}
}

func (r *runner) goldenPath(input string) string {
	name := "." + filepath.Base(input) + ".json"
	if r.goldenDir != "" {
		return filepath.Join(r.goldenDir, name)
	}
	return filepath.Join(filepath.Dir(input), name)
}

// hashFile returns the xxhash of a file's content as hex
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}

func (r *runner) writeGolden(input string) error {
	log.Printf("Recording golden output for %s...", input)
	data, err := json.MarshalIndent(r.compileAndRun(input), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding golden data: %w", err)
	}
	if r.goldenDir != "" {
		if err := os.MkdirAll(r.goldenDir, 0755); err != nil {
			return err
		}
	}
	path := r.goldenPath(input)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}
	log.Printf("%s[SUCCESS]%s wrote %s", cGreen, cNone, path)
	return nil
}

// runAll tests files on a pool of r.jobs workers. Inputs whose content hashes
// the same as an earlier input are skipped
func (r *runner) runAll(files []string) []*Result {
	tasks := make(chan string)
	out := make(chan *Result, len(files))

	var wg sync.WaitGroup
	for i := 0; i < r.jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range tasks {
				out <- r.testFile(file)
			}
		}()
	}

	firstSeen := make(map[string]string)
	for _, file := range files {
		if r.skip[file] || r.skip[filepath.Base(file)] {
			out <- &Result{File: file, Status: StatusSkip, Message: "Explicitly skipped"}
			continue
		}
		sum, err := hashFile(file)
		if err != nil {
			out <- &Result{File: file, Status: StatusError, Message: fmt.Sprintf("Failed to hash input: %v", err)}
			continue
		}
		if orig, ok := firstSeen[sum]; ok {
			out <- &Result{File: file, Status: StatusSkip, Message: fmt.Sprintf("Same content as %s", orig)}
			continue
		}
		firstSeen[sum] = file
		tasks <- file
	}
	close(tasks)
	wg.Wait()
	close(out)

	var results []*Result
	for res := range out {
		results = append(results, res)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].File < results[j].File })
	return results
}

func (r *runner) testFile(file string) *Result {
	if strings.HasSuffix(file, ".md") {
		return r.testBook(file)
	}

	data, err := os.ReadFile(r.goldenPath(file))
	if errors.Is(err, os.ErrNotExist) {
		return &Result{File: file, Status: StatusSkip, Message: "No golden file; record one with --generate-golden"}
	}
	if err != nil {
		return &Result{File: file, Status: StatusError, Message: err.Error()}
	}
	var golden Golden
	if err := json.Unmarshal(data, &golden); err != nil {
		return &Result{File: file, Status: StatusError, Message: fmt.Sprintf("Corrupt golden file: %v", err)}
	}
	return r.compare(file, &golden, r.compileAndRun(file))
}

// testBook checks every case of a Markdown case book in process
func (r *runner) testBook(file string) *Result {
	src, err := os.ReadFile(file)
	if err != nil {
		return &Result{File: file, Status: StatusError, Message: err.Error()}
	}
	cases, err := casebook.Parse(src)
	if err != nil {
		return &Result{File: file, Status: StatusError, Message: err.Error()}
	}

	var diffs strings.Builder
	failed := 0
	for _, c := range cases {
		failures := c.Verify(io.Discard)
		if len(failures) == 0 {
			if r.verbose {
				log.Printf("[%s] %sok%s %s", filepath.Base(file), cGreen, cNone, c.Name)
			}
			continue
		}
		failed++
		fmt.Fprintf(&diffs, "Case '%s' (line %d):\n", c.Name, c.Line)
		for _, f := range failures {
			fmt.Fprintf(&diffs, "  %s\n", f)
		}
	}
	if failed > 0 {
		return &Result{File: file, Status: StatusFail, Message: fmt.Sprintf("%d of %d cases failed", failed, len(cases)), Diff: diffs.String()}
	}
	return &Result{File: file, Status: StatusPass, Message: fmt.Sprintf("All %d cases passed", len(cases))}
}

// compileAndRun asks the compiler for the assembly on stdout, then for a
// simulated run of the same tree
func (r *runner) compileAndRun(input string) *Golden {
	invoke := func(mode ...string) Execution {
		argv := append(append(mode, r.args...), input)
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		return execute(ctx, r.compiler, argv...)
	}

	res := &Golden{Compile: invoke("-q", "-o", "-")}
	if res.Compile.ExitCode != 0 || res.Compile.TimedOut {
		return res
	}
	res.Run = invoke("-q", "--run")
	return res
}

func (r *runner) compare(file string, golden, target *Golden) *Result {
	var diffs strings.Builder
	stage := func(name string, want, got Execution) {
		if got.TimedOut {
			fmt.Fprintf(&diffs, "%s timed out after %s\n", name, r.timeout)
		}
		if want.ExitCode != got.ExitCode {
			fmt.Fprintf(&diffs, "%s exit code: golden %d, got %d\n", name, want.ExitCode, got.ExitCode)
		}
		if filterOutput(want.Stdout, r.ignored) != filterOutput(got.Stdout, r.ignored) {
			fmt.Fprintf(&diffs, "%s stdout (-golden +got):\n%s", name, cmp.Diff(want.Stdout, got.Stdout))
		}
		if filterOutput(want.Stderr, r.ignored) != filterOutput(got.Stderr, r.ignored) {
			fmt.Fprintf(&diffs, "%s stderr (-golden +got):\n%s", name, cmp.Diff(want.Stderr, got.Stderr))
		}
	}
	stage("Compile", golden.Compile, target.Compile)
	stage("Run", golden.Run, target.Run)

	res := &Result{File: file, Golden: golden, Target: target}
	if diffs.Len() > 0 {
		res.Status, res.Message, res.Diff = StatusFail, "Output or exit code differs from the golden file", diffs.String()
	} else {
		res.Status, res.Message = StatusPass, "Assembly and program output match"
	}
	return res
}

// execute runs command under ctx, capturing both output streams
func execute(ctx context.Context, command string, args ...string) Execution {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Stdout, cmd.Stderr = &stdout, &stderr

	start := time.Now()
	err := cmd.Run()
	res := Execution{Duration: time.Since(start)}

	var exitErr *exec.ExitError
	switch {
	case ctx.Err() == context.DeadlineExceeded:
		res.TimedOut, res.ExitCode = true, -1
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	case err != nil:
		res.ExitCode = -2
		stderr.WriteString("\nExecution error: " + err.Error())
	}
	res.Stdout, res.Stderr = stdout.String(), stderr.String()
	return res
}

// filterOutput drops the lines that contain any of ignored
func filterOutput(output string, ignored []string) string {
	if len(ignored) == 0 || output == "" {
		return output
	}
	var kept []string
	for _, line := range strings.Split(output, "\n") {
		if !containsAny(line, ignored) {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%6dµs", d.Microseconds())
	}
	return fmt.Sprintf("%6dms", d.Milliseconds())
}

func printSummary(results []*Result, verbose bool) {
	counts := make(map[Status]int)
	var compileTotal time.Duration
	var compiled int

	rule := strings.Repeat("-", 70)
	fmt.Println(rule)
	for _, res := range results {
		counts[res.Status]++
		if res.Target != nil {
			compileTotal += res.Target.Compile.Duration
			compiled++
		}
		if res.Status == StatusPass && !verbose {
			continue
		}

		color := cRed
		switch res.Status {
		case StatusPass:
			color = cGreen
		case StatusSkip:
			color = cYellow
		}
		fmt.Printf("[%s%s%s] %s%s%s: %s\n", color, res.Status, cNone, cCyan, res.File, cNone, res.Message)
		if res.Diff != "" {
			fmt.Print(formatDiff(res.Diff))
		}
		if verbose && res.Target != nil {
			fmt.Printf("    compile %s, run %s\n", formatDuration(res.Target.Compile.Duration), formatDuration(res.Target.Run.Duration))
		}
	}

	fmt.Println(rule)
	fmt.Printf("%sTest Summary:%s %s%d Passed%s, %s%d Failed%s, %s%d Skipped%s, %s%d Errored%s, %d Total\n",
		cBold, cNone, cGreen, counts[StatusPass], cNone, cRed, counts[StatusFail], cNone,
		cYellow, counts[StatusSkip], cNone, cRed, counts[StatusError], cNone, len(results))
	if compiled > 0 {
		fmt.Printf("Average compile time: %s\n", formatDuration(compileTotal/time.Duration(compiled)))
	}
}

// formatDiff indents a diff and colors its removed and added lines
func formatDiff(diff string) string {
	var sb strings.Builder
	sb.WriteString("    --- Diff ---\n")
	for _, line := range strings.Split(strings.TrimRight(diff, "\n"), "\n") {
		color := ""
		switch t := strings.TrimSpace(line); {
		case strings.HasPrefix(t, "-"):
			color = cRed
		case strings.HasPrefix(t, "+"):
			color = cGreen
		}
		fmt.Fprintf(&sb, "%s    %s%s\n", color, line, cNone)
	}
	return sb.String()
}

func writeReport(path string, results []*Result) error {
	byFile := make(map[string]*Result, len(results))
	for _, res := range results {
		byFile[res.File] = res
	}
	data, err := json.MarshalIndent(byFile, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// expandGlobPatterns resolves space-separated patterns to absolute paths of
// regular files, without duplicates. Golden files and reports are dotfiles
// and never count as inputs
func expandGlobPatterns(patterns string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	for _, pattern := range strings.Fields(patterns) {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %s: %w", pattern, err)
		}
		for _, m := range matches {
			if strings.HasPrefix(filepath.Base(m), ".") {
				continue
			}
			abs, err := filepath.Abs(m)
			if err != nil || seen[abs] {
				continue
			}
			if info, err := os.Stat(abs); err == nil && info.Mode().IsRegular() {
				files = append(files, abs)
				seen[abs] = true
			}
		}
	}
	return files, nil
}
