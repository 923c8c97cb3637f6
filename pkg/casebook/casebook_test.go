package casebook

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nalgeon/be"
)

const book = "# Book\n\nSome prose.\n\n```\nplain block\n```\n\n" +
	"## Case: first\n\n```ast-json\n{\"kind\": \"print\", \"expr\": {\"kind\": \"num\", \"value\": 1}}\n```\n\n" +
	"```flags\n-Fno-comments\n```\n\n```output\n1\n```\n\n" +
	"## Notes\n\nNot a case heading.\n\n" +
	"## Case: second\n\n```ast-json\n{\"kind\": \"block\", \"items\": []}\n```\n\n```tac\n```\n"

func TestParse(t *testing.T) {
	cases, err := Parse([]byte(book))
	be.Err(t, err, nil)
	be.Equal(t, 2, len(cases))

	first := cases[0]
	be.Equal(t, "first", first.Name)
	be.Equal(t, 9, first.Line)
	be.Equal(t, "-Fno-comments", first.Flags)
	be.True(t, strings.HasPrefix(first.Input, `{"kind": "print"`))
	be.Equal(t, 1, len(first.Expectations))
	be.Equal(t, ExpectOutput, first.Expectations[0].Kind)
	be.Equal(t, "1\n", first.Expectations[0].Content)

	second := cases[1]
	be.Equal(t, "second", second.Name)
	be.Equal(t, ExpectTAC, second.Expectations[0].Kind)
	be.Equal(t, "", second.Expectations[0].Content)
}

func TestParseErrors(t *testing.T) {
	input := "```ast-json\n{}\n```\n"
	tests := map[string]string{
		"fence outside case": "```output\n1\n```\n",
		"unknown fence":      "## Case: a\n\n" + input + "\n```python\nx\n```\n",
		"no input":           "## Case: a\n\n```output\n1\n```\n",
		"no expectations":    "## Case: a\n\n" + input,
		"two inputs":         "## Case: a\n\n" + input + "\n" + input + "\n```output\n1\n```\n",
		"bad first case":     "## Case: a\n\n" + input + "\n## Case: b\n\n" + input + "\n```tac\n```\n",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(src))
			be.True(t, err != nil)
		})
	}
}

func TestVerifyReportsMismatch(t *testing.T) {
	c := Case{
		Name:  "wrong",
		Input: `{"kind": "print", "expr": {"kind": "num", "value": 2}}`,
		Expectations: []Expectation{
			{Kind: ExpectOutput, Content: "3\n", Line: 7},
			{Kind: ExpectTAC, Content: "PRINT 2\n", Line: 9},
		},
	}
	failures := c.Verify(io.Discard)
	be.Equal(t, 1, len(failures))
	be.True(t, strings.HasPrefix(failures[0], "line 7: output: mismatch"))
}

func TestVerifyRejectsBadInput(t *testing.T) {
	c := Case{Name: "bad", Input: `{"kind": "nope"}`, Expectations: []Expectation{{Kind: ExpectTAC}}}
	failures := c.Verify(io.Discard)
	be.Equal(t, 1, len(failures))
	be.True(t, strings.HasPrefix(failures[0], "bad case:"))

	c = Case{Name: "flags", Input: `{"kind": "block"}`, Flags: "-Wmystery", Expectations: []Expectation{{Kind: ExpectTAC}}}
	be.True(t, strings.Contains(c.Verify(io.Discard)[0], "unknown warning"))
}

func TestVerifyUnexpectedCompileError(t *testing.T) {
	c := Case{
		Name:         "undeclared",
		Input:        `{"kind": "print", "expr": {"kind": "var", "name": "x"}}`,
		Expectations: []Expectation{{Kind: ExpectOutput, Content: "0\n"}},
	}
	failures := c.Verify(io.Discard)
	be.Equal(t, 1, len(failures))
	be.True(t, strings.Contains(failures[0], "unexpected compile error"))
}

func TestBooks(t *testing.T) {
	books, err := filepath.Glob("../../testdata/*.md")
	be.Err(t, err, nil)
	be.True(t, len(books) > 0)

	for _, path := range books {
		t.Run(strings.TrimSuffix(filepath.Base(path), ".md"), func(t *testing.T) {
			src, err := os.ReadFile(path)
			be.Err(t, err, nil)
			cases, err := Parse(src)
			be.Err(t, err, nil)

			for _, c := range cases {
				t.Run(c.Name, func(t *testing.T) {
					for _, f := range c.Verify(io.Discard) {
						t.Error(f)
					}
				})
			}
		})
	}
}
