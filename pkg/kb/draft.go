// Package kb formats and validates knowledge-base article drafts produced
// from a resolved case: a fixed five-section Markdown document rendered to
// HTML for dashboard/Slack preview via goldmark.
package kb

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	caseerrors "github.com/svcdesk/caseintake/pkg/errors"
)

// RequiredSections are the five headings every KB draft must carry, in
// order.
var RequiredSections = []string{"Summary", "Current State", "Latest Activity", "Context", "References"}

// Draft is an in-progress knowledge-base article tied to a case.
type Draft struct {
	CaseNumber string
	Title      string
	Sections   map[string]string // heading -> body, keyed by RequiredSections entries
}

// NewDraft creates an empty draft with all required sections present
// (possibly blank), so Render always emits a structurally valid document.
func NewDraft(caseNumber, title string) *Draft {
	d := &Draft{CaseNumber: caseNumber, Title: title, Sections: make(map[string]string, len(RequiredSections))}
	for _, s := range RequiredSections {
		d.Sections[s] = ""
	}
	return d
}

// Render produces the draft's Markdown body: an H1 title followed by each
// required section as an H2, in RequiredSections order.
func (d *Draft) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", d.Title)
	for _, heading := range RequiredSections {
		body := strings.TrimSpace(d.Sections[heading])
		if body == "" {
			body = "_(not yet provided)_"
		}
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", heading, body)
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// RenderHTML converts the draft's Markdown to HTML for dashboard/Slack
// preview.
func (d *Draft) RenderHTML() (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(d.Render()), &buf); err != nil {
		return "", caseerrors.Parse("failed to render KB draft to HTML", err)
	}
	return buf.String(), nil
}

// Validate parses markdown and confirms every required H2 heading is
// present, in order. It does not check section content, so a section that
// still holds the placeholder text passes. Used before a draft is proposed
// as a ServiceNow KB article.
func Validate(markdown string) error {
	headings, err := headingTexts(markdown)
	if err != nil {
		return err
	}

	idx := 0
	for _, required := range RequiredSections {
		found := false
		for idx < len(headings) {
			if headings[idx] == required {
				found = true
				idx++
				break
			}
			idx++
		}
		if !found {
			return caseerrors.Validation(fmt.Sprintf("KB draft missing required section %q", required), nil)
		}
	}
	return nil
}

func headingTexts(markdown string) ([]string, error) {
	src := []byte(markdown)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var headings []string
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		heading, ok := n.(*ast.Heading)
		if !ok || heading.Level != 2 {
			return ast.WalkContinue, nil
		}
		headings = append(headings, inlineText(heading, src))
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, caseerrors.Parse("failed to parse KB draft markdown", err)
	}
	return headings, nil
}

// inlineText concatenates the raw source text of every *ast.Text leaf under
// n — goldmark's Heading node carries no text of its own, only inline
// children.
func inlineText(n ast.Node, src []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			b.Write(t.Segment.Value(src))
			continue
		}
		b.WriteString(inlineText(c, src))
	}
	return b.String()
}
