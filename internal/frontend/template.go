package frontend

import (
	"embed"
	"html/template"
	"io"
	"time"

	"github.com/jo-hoe/emotionmirror/internal/core"
	"github.com/labstack/echo/v4"
)

const viewsPattern = "views/*.html"

//go:embed views/*.html
var templateFS embed.FS

//go:embed views/icon.svg static
var assetsFS embed.FS

var templateFuncs = template.FuncMap{
	"downloadName": core.DownloadFilename,
	"localTime": func(t time.Time) string {
		return t.Local().Format("Jan 2, 2006, 3:04 PM")
	},
}

// Template renders the embedded views for echo
type Template struct {
	templates *template.Template
}

func newTemplate() *Template {
	return &Template{
		templates: template.Must(template.New("").Funcs(templateFuncs).ParseFS(templateFS, viewsPattern)),
	}
}

func (t *Template) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	return t.templates.ExecuteTemplate(w, name, data)
}
