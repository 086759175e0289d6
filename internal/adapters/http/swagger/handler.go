// Package swagger serves the OpenAPI document and a ReDoc viewer for it.
package swagger

import (
	"context"
	_ "embed"
	"net/http"

	"github.com/valyala/fasttemplate"
)

// OpenAPI is the API description served at /openapi.yaml.
//
//go:embed openapi.yaml
var OpenAPI []byte

// RedocURL is the ReDoc bundle loaded by the docs page.
const RedocURL = "https://cdn.redoc.ly/redoc/v2.1.5/bundles/redoc.standalone.js"

const (
	docsPath = "/api-docs"
	specPath = "/openapi.yaml"
)

const pageTemplate = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8">
    <title>[[title]]</title>
    <style>body{margin:0;padding:0}</style>
  </head>
  <body>
    <redoc id="redoc-container"></redoc>
    <script src="[[bundle]]"></script>
    <script>Redoc.init('[[spec]]', { suppressWarnings: true }, document.getElementById('redoc-container'));</script>
  </body>
</html>`

// docsPage renders the viewer once; the values never change at runtime.
func docsPage() []byte {
	return []byte(fasttemplate.ExecuteString(pageTemplate, "[[", "]]", map[string]interface{}{
		"title":  "fitrec API",
		"bundle": RedocURL,
		"spec":   specPath,
	}))
}

// Register mounts GET /api-docs (ReDoc) and GET /openapi.yaml on mux.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("swagger: nil mux")
	}
	page := docsPage()
	mux.HandleFunc(docsPath, static("text/html; charset=utf-8", page))
	mux.HandleFunc(specPath, static("application/yaml; charset=utf-8", OpenAPI))
}

func static(contentType string, body []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write(body)
	}
}
