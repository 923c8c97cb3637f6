// Package casebook reads compiler test cases written as Markdown. A case starts at
// a "Case: <name>" heading and is made of fenced blocks: one ast-json input, an
// optional flags block, and any number of expectation blocks
package casebook

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	gast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const headingPrefix = "Case: "

const (
	FenceInput = "ast-json"
	FenceFlags = "flags"
)

// ExpectKind names an expectation fence
type ExpectKind string

const (
	ExpectTAC    ExpectKind = "tac"
	ExpectTACOpt ExpectKind = "tac-opt"
	ExpectAsm    ExpectKind = "asm"
	ExpectOutput ExpectKind = "output"
	ExpectError  ExpectKind = "compile-error"
	ExpectQBE    ExpectKind = "qbe-il"
)

var expectKinds = map[string]ExpectKind{
	string(ExpectTAC):    ExpectTAC,
	string(ExpectTACOpt): ExpectTACOpt,
	string(ExpectAsm):    ExpectAsm,
	string(ExpectOutput): ExpectOutput,
	string(ExpectError):  ExpectError,
	string(ExpectQBE):    ExpectQBE,
}

type Expectation struct {
	Kind    ExpectKind
	Content string
	Line    int
}

type Case struct {
	Name         string
	Line         int
	Input        string
	Flags        string
	Expectations []Expectation
}

// Parse extracts every case of a Markdown book
func Parse(source []byte) ([]Case, error) {
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	var cases []Case
	var current *Case
	flush := func() error {
		if current == nil {
			return nil
		}
		if current.Input == "" {
			return fmt.Errorf("line %d: case '%s' has no %s block", current.Line, current.Name, FenceInput)
		}
		if len(current.Expectations) == 0 {
			return fmt.Errorf("line %d: case '%s' has no expectations", current.Line, current.Name)
		}
		cases = append(cases, *current)
		current = nil
		return nil
	}

	err := gast.Walk(doc, func(node gast.Node, entering bool) (gast.WalkStatus, error) {
		if !entering {
			return gast.WalkContinue, nil
		}
		switch n := node.(type) {
		case *gast.Heading:
			title := headingText(n, source)
			if !strings.HasPrefix(title, headingPrefix) {
				return gast.WalkContinue, nil
			}
			if err := flush(); err != nil {
				return gast.WalkStop, err
			}
			current = &Case{Name: strings.TrimPrefix(title, headingPrefix), Line: lineOf(n, source)}
			return gast.WalkSkipChildren, nil

		case *gast.FencedCodeBlock:
			lang := string(n.Language(source))
			line := lineOf(n, source)
			if current == nil {
				if lang != "" {
					return gast.WalkStop, fmt.Errorf("line %d: '%s' block outside of a case", line, lang)
				}
				return gast.WalkContinue, nil
			}
			content := blockContent(n, source)
			switch lang {
			case FenceInput:
				if current.Input != "" {
					return gast.WalkStop, fmt.Errorf("line %d: case '%s' has more than one %s block", line, current.Name, FenceInput)
				}
				current.Input = content
			case FenceFlags:
				current.Flags = strings.TrimSpace(content)
			case "":
			default:
				kind, ok := expectKinds[lang]
				if !ok {
					return gast.WalkStop, fmt.Errorf("line %d: unknown block '%s' in case '%s'", line, lang, current.Name)
				}
				current.Expectations = append(current.Expectations, Expectation{Kind: kind, Content: content, Line: line})
			}
		}
		return gast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return cases, nil
}

func headingText(node gast.Node, source []byte) string {
	var buf bytes.Buffer
	gast.Walk(node, func(n gast.Node, entering bool) (gast.WalkStatus, error) {
		if t, ok := n.(*gast.Text); ok && entering {
			buf.Write(t.Segment.Value(source))
		}
		return gast.WalkContinue, nil
	})
	return buf.String()
}

func blockContent(block *gast.FencedCodeBlock, source []byte) string {
	var buf bytes.Buffer
	lines := block.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(source))
	}
	return buf.String()
}

func lineOf(node gast.Node, source []byte) int {
	if node.Lines().Len() == 0 {
		return 1
	}
	pos := min(node.Lines().At(0).Start, len(source))
	return bytes.Count(source[:pos], []byte("\n")) + 1
}
