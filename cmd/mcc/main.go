package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/xplshn/mcc/pkg/ast"
	"github.com/xplshn/mcc/pkg/cli"
	"github.com/xplshn/mcc/pkg/codegen"
	"github.com/xplshn/mcc/pkg/config"
	"github.com/xplshn/mcc/pkg/ir"
	"github.com/xplshn/mcc/pkg/mips"
	"github.com/xplshn/mcc/pkg/util"
)

func main() {
	app := cli.NewApp("mcc")
	app.Synopsis = "[options] <input.json>"
	app.Description = "The middle and back end of a small imperative-language compiler. Reads a parsed program as JSON and emits MIPS assembly, or host assembly through QBE."
	app.Authors = []string{"xplshn"}
	app.Repository = "<https://github.com/xplshn/mcc>"

	var (
		outFile  string
		target   string
		dumpAST  bool
		dumpJSON bool
		dumpSyms bool
		dumpTAC  bool
		dumpIR   bool
		run      bool
		quiet    bool
		wall     bool
		wnoall   bool
	)

	fs := app.FlagSet
	fs.String(&outFile, "output", "o", "a.s", "Place the output into <file>. Use '-' for standard output.", "file")
	fs.String(&target, "target", "t", "mips", "Set the backend and target ABI.", "backend/target")
	fs.Bool(&dumpAST, "dump-ast", "", false, "Print the decoded syntax tree.")
	fs.Bool(&dumpJSON, "dump-json", "", false, "Print the decoded syntax tree in its normalized JSON form.")
	fs.Bool(&dumpSyms, "dump-symbols", "", false, "Print the MIPS frame layout and symbol table statistics (mips only).")
	fs.Bool(&dumpTAC, "dump-tac", "", false, "Print the three-address code before and after optimization.")
	fs.Bool(&dumpIR, "dump-ir", "d", false, "Print the backend's intermediate language and exit (qbe only).")
	fs.Bool(&run, "run", "r", false, "Run the generated MIPS assembly on the built-in simulator.")
	fs.Bool(&quiet, "quiet", "q", false, "Do not print progress messages.")
	fs.Bool(&wall, "Wall", "", false, "Enable most warnings.")
	fs.Bool(&wnoall, "Wno-all", "", false, "Disable all warnings.")

	cfg := config.NewConfig()
	toggles := cfg.SetupFlagGroups(fs)

	app.Action = func(args []string) error {
		if len(args) != 1 {
			util.Error("expected exactly one input file, got %d", len(args))
		}
		inputFile := args[0]

		if wall {
			cfg.ApplyFlags("-Wall")
		}
		if wnoall {
			cfg.ApplyFlags("-Wno-all")
		}
		toggles.Apply(cfg)

		if err := cfg.SetTarget(runtime.GOOS, runtime.GOARCH, target); err != nil {
			util.Error("%v", err)
		}

		// Progress lines would interleave with assembly or program output on stdout
		progress := func(format string, args ...interface{}) {
			if !quiet && outFile != "-" && !run {
				fmt.Printf(format+"\n", args...)
			}
		}

		progress("Reading syntax tree from '%s'...", inputFile)
		root, err := readTree(inputFile)
		if err != nil {
			util.Error("%v", err)
		}
		progress("Read %d nodes.", countNodes(root))
		if dumpAST {
			ast.PrintTree(os.Stdout, root)
		}
		if dumpJSON {
			if err := ast.Encode(os.Stdout, root); err != nil {
				util.Error("%v", err)
			}
		}

		progress("Lowering to three-address code...")
		lw := &ir.Lowerer{OnSkip: func(n *ast.Node) {
			util.Warn(cfg, config.WarnTACUnsupported, "%s has no three-address form and was skipped", strings.ToLower(n.Type.String()))
		}}
		raw := lw.Lower(root)
		opt := &ir.Optimizer{OnDivByZero: func(in *ir.Instruction) {
			util.Warn(cfg, config.WarnDivByZero, "'%s' divides by a literal zero and folds to %g", in, ir.DivByZeroResult)
		}}
		optimized := opt.Run(raw)
		if dumpTAC {
			ir.PrintRaw(os.Stdout, raw)
			fmt.Println()
			ir.PrintOptimized(os.Stdout, optimized)
		}

		backend, err := codegen.SelectBackend(cfg)
		if err != nil {
			util.Error("%v", err)
		}

		if dumpIR {
			gen, ok := backend.(codegen.IRGenerator)
			if !ok {
				util.Error("the '%s' backend has no intermediate language to dump", cfg.BackendName)
			}
			il, err := gen.GenerateIR(root, cfg)
			if err != nil {
				util.Report(err)
				return err
			}
			fmt.Print(il)
			return nil
		}

		progress("Generating code with '%s' backend (%s)...", cfg.BackendName, cfg.BackendTarget)
		var asm *bytes.Buffer
		if dumpSyms {
			if cfg.BackendName != "mips" {
				util.Error("--dump-symbols needs the mips backend, not '%s'", cfg.BackendName)
			}
			asm, err = generateWithSymbols(root, cfg, os.Stdout)
		} else {
			asm, err = backend.Generate(root, cfg)
		}
		if err != nil {
			util.Report(err)
			return err
		}

		if run {
			if cfg.BackendName != "mips" {
				util.Error("--run needs the mips backend, not '%s'", cfg.BackendName)
			}
			if err := mips.Exec(asm.String(), os.Stdout); err != nil {
				util.Error("simulation failed: %v", err)
			}
			return nil
		}

		if err := writeOutput(outFile, asm); err != nil {
			util.Error("%v", err)
		}
		progress("Wrote '%s'.", outFile)
		return nil
	}

	if err := app.Run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

// countNodes reports how many nodes the tree holds
func countNodes(root *ast.Node) int {
	n := 0
	ast.Walk(root, func(*ast.Node) { n++ })
	return n
}

// generateWithSymbols runs the MIPS generator and writes its symbol table to w
// once generation succeeds
func generateWithSymbols(root *ast.Node, cfg *config.Config, w io.Writer) (*bytes.Buffer, error) {
	ctx := codegen.NewContext(cfg)
	asm, err := ctx.GenerateProgram(root)
	if err != nil {
		return nil, err
	}
	fmt.Fprint(w, ctx.Symbols())
	fmt.Fprintf(w, "Frame size: %d\n", ctx.FrameSize())
	return asm, nil
}

func readTree(path string) (*ast.Node, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("could not read '%s': %w", path, err)
		}
		defer f.Close()
		r = f
	}
	root, err := ast.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("'%s': %w", path, err)
	}
	return root, nil
}

// writeOutput replaces path with buf through a temporary file in the same
// directory, so a failed write never leaves a truncated file behind
func writeOutput(path string, buf *bytes.Buffer) error {
	if path == "-" {
		_, err := buf.WriteTo(os.Stdout)
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".mcc-*.s")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := buf.WriteTo(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write '%s': %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write '%s': %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write '%s': %w", path, err)
	}
	return nil
}
