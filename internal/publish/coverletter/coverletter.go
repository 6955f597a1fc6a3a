// Package coverletter renders a merge proposal's title and description
// from a campaign-supplied Go text/template, the same way prow/config's
// TideMergeCommitTemplate compiles an org/repo-supplied template string
// with a small function map rather than hand-formatting strings.
package coverletter

import (
	"bytes"
	"fmt"
	"net/mail"
	"strings"
	"text/template"
)

// Context is the data made available to a cover-letter template.
type Context struct {
	Codebase    string
	Campaign    string
	MainBranchRevision string
	Debdiff     string
	Description string
}

var funcMap = template.FuncMap{
	"markdownify_debdiff": markdownifyDebdiff,
	"parseaddr":           parseAddr,
}

// Render compiles templateText against funcMap and executes it with ctx,
// producing the proposal description body.
func Render(templateText string, ctx Context) (string, error) {
	tmpl, err := template.New("cover-letter").Funcs(funcMap).Parse(templateText)
	if err != nil {
		return "", fmt.Errorf("coverletter: parsing template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("coverletter: executing template: %w", err)
	}
	return buf.String(), nil
}

// markdownifyDebdiff wraps a raw debdiff/diffoscope text block as a fenced
// Markdown diff block, with +/- lines left untouched so forges that
// syntax-highlight "diff" code fences render it the same way as a patch.
func markdownifyDebdiff(debdiff string) string {
	var sb strings.Builder
	sb.WriteString("```diff\n")
	sb.WriteString(strings.TrimRight(debdiff, "\n"))
	sb.WriteString("\n```\n")
	return sb.String()
}

// AddrParts is the (name, email) pair extracted from an RFC 5322 address,
// returned to templates as a struct so `{{ (parseaddr .X).Name }}` works.
type AddrParts struct {
	Name  string
	Email string
}

// parseAddr parses a "Name <email>" style address, falling back to an
// empty name if addr is a bare email or fails to parse.
func parseAddr(addr string) AddrParts {
	parsed, err := mail.ParseAddress(addr)
	if err != nil {
		return AddrParts{Email: addr}
	}
	return AddrParts{Name: parsed.Name, Email: parsed.Address}
}
