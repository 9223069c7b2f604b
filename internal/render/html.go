package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.New("pages").Funcs(template.FuncMap{
	"percentBar": func(v int) int {
		if v < 0 {
			return 0
		}
		if v > 100 {
			return 100
		}
		return v
	},
}).ParseFS(templateFS, "templates/*.html"))

// WriteHTML writes a standalone HTML page for a *ReportView or *DiffView.
func WriteHTML(w io.Writer, view any) error {
	switch v := view.(type) {
	case *ReportView:
		return pages.ExecuteTemplate(w, "report.html", v)
	case *DiffView:
		return pages.ExecuteTemplate(w, "diff.html", v)
	default:
		return fmt.Errorf("unsupported view type %T", view)
	}
}
