package render

import (
	"bytes"
	"embed"
	"html/template"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var planTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
	}

	templateContent, err := templateFS.ReadFile("templates/plan.html")
	if err != nil {
		// Fallback to built-in template if file not found
		planTemplate = template.Must(template.New("plan").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}

	planTemplate = template.Must(template.New("plan").Funcs(funcMap).Parse(string(templateContent)))
}

// TemplateData holds data for plan template rendering
type TemplateData struct {
	Title       string
	GeneratedAt time.Time
	Notes       []NoteSection
	Sections    []TemplateSection
}

// NoteSection is one of the free-text note columns
type NoteSection struct {
	Label string
	Body  string
}

// TemplateSection is one payload concept with user content
type TemplateSection struct {
	Label   string
	Fields  []Field
	Records [][]Field
}

// Field is a single label/value pair
type Field struct {
	Label string
	Value string
}

// RenderPlanHTML renders the plan template with provided data
func RenderPlanHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := planTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fallbackTemplate is used if the embedded template fails to load
const fallbackTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Georgia, serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    h2 { margin-top: 2rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    .record { background: #f5f5f5; padding: 0.75rem; margin: 0.75rem 0; border-left: 3px solid #333; }
    dt { font-weight: bold; }
    dd { margin: 0 0 0.5rem 0; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <div class="meta">Generated {{formatDate .GeneratedAt "Jan 2, 2006"}}</div>
  {{range .Notes}}
  <h2>{{.Label}}</h2>
  <p>{{.Body}}</p>
  {{end}}
  {{range .Sections}}
  <h2>{{.Label}}</h2>
  {{if .Fields}}<dl>{{range .Fields}}<dt>{{.Label}}</dt><dd>{{.Value}}</dd>{{end}}</dl>{{end}}
  {{range .Records}}<div class="record"><dl>{{range .}}<dt>{{.Label}}</dt><dd>{{.Value}}</dd>{{end}}</dl></div>{{end}}
  {{end}}
</body>
</html>`
