package report

import (
	"bytes"
	"fmt"
	"html/template"
)

const pageTitleFormat = "Block list for %s"

type reportPageViewModel struct {
	Title   string
	Summary Summary
	CSS     template.CSS
}

// RenderHTML renders summary as a standalone page with inlined styles.
func RenderHTML(summary Summary) (string, error) {
	cssText, err := embeddedText(embeddedCSSPath)
	if err != nil {
		return "", err
	}
	tmpl, err := parseTemplates(embeddedFS, templateReportFile)
	if err != nil {
		return "", fmt.Errorf("template parse: %w", err)
	}
	viewModel := reportPageViewModel{
		Title:   fmt.Sprintf(pageTitleFormat, summary.Seed),
		Summary: summary,
		CSS:     template.CSS(cssText),
	}
	var buffer bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buffer, templateReportName, viewModel); err != nil {
		return "", fmt.Errorf("template execute: %w", err)
	}
	return buffer.String(), nil
}
