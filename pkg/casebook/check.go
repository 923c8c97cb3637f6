package casebook

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/mcc/pkg/ast"
	"github.com/xplshn/mcc/pkg/codegen"
	"github.com/xplshn/mcc/pkg/config"
	"github.com/xplshn/mcc/pkg/ir"
	"github.com/xplshn/mcc/pkg/mips"
)

// Result holds everything a case can be checked against
type Result struct {
	TAC    string
	TACOpt string
	Asm    string
	Output string
	QBE    string
	Err    error
	RunErr error
}

func (c *Case) needs(kind ExpectKind) bool {
	for _, e := range c.Expectations {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

// Compile runs both pipelines over the case input. Input and flag problems are
// returned as an error; compile errors land in Result.Err
func (c *Case) Compile(diag io.Writer) (*Result, error) {
	root, err := ast.Decode(strings.NewReader(c.Input))
	if err != nil {
		return nil, err
	}
	cfg := config.NewConfig()
	cfg.DiagOut = diag
	if err := cfg.ApplyFlags(c.Flags); err != nil {
		return nil, err
	}

	res := &Result{}
	raw := ir.Lower(root)
	res.TAC = joinLines(raw.Lines())
	res.TACOpt = joinLines(ir.Optimize(raw).Lines())

	buf, err := codegen.NewMIPSBackend().Generate(root, cfg)
	if err != nil {
		res.Err = err
		return res, nil
	}
	res.Asm = buf.String()

	if c.needs(ExpectOutput) {
		var out bytes.Buffer
		res.RunErr = mips.Exec(res.Asm, &out)
		res.Output = out.String()
	}
	if c.needs(ExpectQBE) {
		gen := codegen.NewQBEBackend().(codegen.IRGenerator)
		if res.QBE, err = gen.GenerateIR(root, cfg); err != nil {
			res.Err = err
		}
	}
	return res, nil
}

// Verify compiles the case and describes every expectation that does not hold
func (c *Case) Verify(diag io.Writer) []string {
	res, err := c.Compile(diag)
	if err != nil {
		return []string{fmt.Sprintf("bad case: %v", err)}
	}

	var failures []string
	fail := func(e Expectation, format string, args ...interface{}) {
		failures = append(failures, fmt.Sprintf("line %d: %s: ", e.Line, e.Kind)+fmt.Sprintf(format, args...))
	}

	if res.Err != nil && !c.needs(ExpectError) {
		failures = append(failures, fmt.Sprintf("unexpected compile error: %v", res.Err))
		return failures
	}

	for _, e := range c.Expectations {
		var got string
		switch e.Kind {
		case ExpectError:
			if res.Err == nil {
				fail(e, "compiled without errors")
				continue
			}
			for _, want := range strings.Split(strings.TrimSpace(e.Content), "\n") {
				if !strings.Contains(res.Err.Error(), strings.TrimSpace(want)) {
					fail(e, "%q not found in %q", want, res.Err.Error())
				}
			}
			continue
		case ExpectTAC:
			got = res.TAC
		case ExpectTACOpt:
			got = res.TACOpt
		case ExpectAsm:
			got = res.Asm
		case ExpectQBE:
			got = res.QBE
		case ExpectOutput:
			if res.RunErr != nil {
				fail(e, "run failed: %v", res.RunErr)
				continue
			}
			got = res.Output
		}
		if res.Err != nil && e.Kind != ExpectTAC && e.Kind != ExpectTACOpt {
			fail(e, "nothing to compare after compile error")
			continue
		}
		if diff := cmp.Diff(e.Content, got); diff != "" {
			fail(e, "mismatch (-want +got):\n%s", diff)
		}
	}
	return failures
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
