// Package web holds the server-rendered screens of the help queue.
package web

import (
	"embed"
	"html/template"
	"time"
)

// StampLayout renders request times on the instructor dashboard.
const StampLayout = "2006-01-02 15:04 UTC"

//go:embed templates/*.tmpl
var templateFS embed.FS

// Templates parses every screen template. It panics on a malformed template,
// which can only happen at build time.
func Templates() *template.Template {
	return template.Must(template.New("").Funcs(template.FuncMap{
		"stamp": func(t time.Time) string {
			return t.UTC().Format(StampLayout)
		},
		"seq": func(from, to int) []int {
			out := make([]int, 0, to-from+1)
			for i := from; i <= to; i++ {
				out = append(out, i)
			}
			return out
		},
	}).ParseFS(templateFS, "templates/*.tmpl"))
}
