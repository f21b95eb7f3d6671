package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var reportTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"title": capitalize,
		"formatDate": func(t time.Time, layout string) string {
			if t.IsZero() {
				return ""
			}
			return t.Format(layout)
		},
	}

	templateContent, err := templateFS.ReadFile("templates/reservas.html")
	if err != nil {
		reportTemplate = template.Must(template.New("reservas").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}

	reportTemplate = template.Must(template.New("reservas").Funcs(funcMap).Parse(string(templateContent)))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// TemplateData holds data for report rendering
type TemplateData struct {
	Title         string
	Estado        string
	GeneratedAt   time.Time
	Rows          []Row
	TotalPersonas int
}

// RenderReportHTML renders the report template with provided data
func RenderReportHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fallbackTemplate is used if the embedded template fails to load
const fallbackTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>{{.Title}}</title></head>
<body>
  <h1>{{.Title}}</h1>
  <ul>{{range .Rows}}<li>{{.Nombre}} ({{.CantidadPersonas}}) {{.Actividad}}</li>{{end}}</ul>
</body>
</html>`
