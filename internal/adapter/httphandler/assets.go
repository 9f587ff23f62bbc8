package httphandler

import (
	"embed"
	"html/template"
)

var (
	//go:embed templates/*.html
	templatesFS embed.FS

	//go:embed static
	staticFS embed.FS
)

func parseTemplates() *template.Template {
	return template.Must(template.ParseFS(templatesFS, "templates/*.html"))
}
