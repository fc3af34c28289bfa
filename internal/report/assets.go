package report

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
)

//go:embed web/static/* web/templates/*
var embeddedFS embed.FS

const (
	templateBaseName     = "base"
	templateReportFile   = "web/templates/report.tmpl"
	templateReportName   = "report.tmpl"
	embeddedCSSPath      = "web/static/report.css"
	embedReadErrorFormat = "embed read %s: %w"
)

func embeddedText(path string) (string, error) {
	content, err := fs.ReadFile(embeddedFS, path)
	if err != nil {
		return "", fmt.Errorf(embedReadErrorFormat, path, err)
	}
	return string(content), nil
}

func parseTemplates(fileSystem fs.FS, files ...string) (*template.Template, error) {
	templateWithFuncs := template.New(templateBaseName).Funcs(template.FuncMap{
		"label":      accountLabel,
		"handle":     handleLabel,
		"profileURL": profileURL,
	})
	return templateWithFuncs.ParseFS(fileSystem, files...)
}
