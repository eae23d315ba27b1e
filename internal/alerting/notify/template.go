package notify

import (
	"bytes"
	"errors"
	"text/template"
)

const DefaultTemplate = `[Drying Cell {{.EventLabel}}]
Cell: {{.Cell}}
Metric: {{.Metric}}
Value: {{.Value}}
{{ if .ZScore }}Z-Score: {{.ZScore}} (threshold {{.Threshold}})
{{ end }}Status: {{.Band}}
Time: {{.At}}
Suggestion: {{.Suggestion}}`

// TemplateData provides fields for rendering alert content.
type TemplateData struct {
	Cell       string
	Metric     string
	Value      string
	ZScore     string
	Threshold  string
	Band       string
	At         string
	Suggestion string
	Event      string
	EventLabel string
}

// Template renders alert content.
type Template struct {
	tpl *template.Template
}

// NewTemplate parses an alert template, falling back to DefaultTemplate.
func NewTemplate(tpl string) (*Template, error) {
	if tpl == "" {
		tpl = DefaultTemplate
	}
	parsed, err := template.New("cell-alert").Parse(tpl)
	if err != nil {
		return nil, err
	}
	return &Template{tpl: parsed}, nil
}

// Render applies the template to data.
func (t *Template) Render(data TemplateData) (string, error) {
	if t == nil || t.tpl == nil {
		return "", errors.New("alert template: nil")
	}
	var buf bytes.Buffer
	if err := t.tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
