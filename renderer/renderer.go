// Package renderer renders rule plans and boards as markdown.
//
// Every report is a main template composed of partials, all embedded from
// templates/. Views are built from discipline types by the New* functions.
package renderer

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"text/template"
)

//go:embed templates/*.md
var templates embed.FS

// PlanRenderOptions holds configuration for rendering a rule plan.
type PlanRenderOptions struct {
	SkipRisk bool // Do not render the risk and behavior section.
	ShowRaw  bool // Append the raw JSON document.
}

// RenderPlan renders a rule plan version to a markdown string.
func RenderPlan(p *Plan, opts PlanRenderOptions) string {
	partials := map[string]string{
		"plan_title": "plan_title.md",
		"plan_exits": "plan_exits.md",
		"plan_raw":   "",
	}
	if opts.SkipRisk {
		partials["plan_risk"] = ""
	} else {
		partials["plan_risk"] = "plan_risk.md"
	}
	if opts.ShowRaw {
		partials["plan_raw"] = "plan_raw.md"
	}
	return renderTemplate("plan", "plan.md", partials, p)
}

// RenderVersions renders the version history of a stock.
func RenderVersions(v *Versions) string {
	return renderTemplate("versions", "versions.md", nil, v)
}

// RenderPortfolio renders the portfolio board.
func RenderPortfolio(p *Portfolio) string {
	partials := map[string]string{
		"board_footer": "board_footer.md",
	}
	return renderTemplate("portfolio", "portfolio.md", partials, p)
}

// RenderStatus renders the status board.
func RenderStatus(s *Status) string {
	partials := map[string]string{
		"board_footer": "board_footer.md",
	}
	return renderTemplate("status", "status.md", partials, s)
}

// renderTemplate renders a main template that depends on several partials.
func renderTemplate(templateName, mainFile string, partials map[string]string, data any) string {
	mainContent, err := fs.ReadFile(templates, "templates/"+mainFile)
	if err != nil {
		return fmt.Sprintf("error reading main template %q: %v", mainFile, err)
	}

	tmpl, err := template.New(templateName).Parse(string(mainContent))
	if err != nil {
		return fmt.Sprintf("error parsing main template %q: %v", mainFile, err)
	}

	for name, file := range partials {
		var content []byte
		// An empty file name is a valid case, resulting in an empty template.
		if file != "" {
			content, err = fs.ReadFile(templates, "templates/"+file)
			if err != nil {
				return fmt.Sprintf("error reading partial template %q: %v", file, err)
			}
		}
		if _, err := tmpl.New(name).Parse(string(content)); err != nil {
			return fmt.Sprintf("error parsing partial template %q for %q: %v", file, name, err)
		}
	}

	var b strings.Builder
	if err := tmpl.ExecuteTemplate(&b, templateName, data); err != nil {
		return fmt.Sprintf("error executing template %q: %v", templateName, err)
	}
	return b.String()
}
