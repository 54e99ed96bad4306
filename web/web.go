// Package web embeds the HTML templates served by the API.
package web

import (
	"embed"
	"html/template"
)

//go:embed templates/*.tmpl
var files embed.FS

// Templates parses every embedded template. Each file defines a named
// template ("home", "login", ...) plus the shared "header" and "footer".
func Templates() (*template.Template, error) {
	return template.New("").ParseFS(files, "templates/*.tmpl")
}
