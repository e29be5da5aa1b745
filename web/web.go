// Package web holds the browser UI: page templates and static assets.
package web

import (
	"embed"
	"html/template"
	"io/fs"

	"github.com/dustin/go-humanize"
)

//go:embed templates/*.tmpl
var templateFiles embed.FS

//go:embed static
var staticFiles embed.FS

// Templates parses the page templates.
func Templates() (*template.Template, error) {
	funcs := template.FuncMap{
		"bytes": func(n int64) string {
			if n < 0 {
				n = 0
			}
			return humanize.Bytes(uint64(n))
		},
		"plural": func(n int, one, many string) string {
			if n == 1 {
				return one
			}
			return many
		},
	}
	return template.New("").Funcs(funcs).ParseFS(templateFiles, "templates/*.tmpl")
}

// Static returns the static asset tree rooted at static/.
func Static() fs.FS {
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
