package service

import (
	"net/http"
	"strings"
	"sync"

	"github.com/maxbolgarin/errm"
	"gopkg.in/yaml.v3"

	docsPkg "github.com/onexay/gitgraph/docs"
)

const swaggerHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>gitgraph API</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.onload = function() {
      SwaggerUIBundle({url: 'openapi.json', dom_id: '#swagger-ui', deepLinking: true});
    };
  </script>
</body>
</html>`

var openAPIJSON = sync.OnceValues(func() ([]byte, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(docsPkg.OpenAPI, &doc); err != nil {
		return nil, errm.Wrap(err, "parse openapi document")
	}
	return json.Marshal(doc)
})

// handleSwagger serves the UI and the API description as YAML or JSON.
func (s *Service) handleSwagger(w http.ResponseWriter, r *http.Request, tail string) {
	switch strings.TrimPrefix(tail, "/") {
	case "", "index.html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(swaggerHTML))
	case "openapi.yaml", "openapi.yml":
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(docsPkg.OpenAPI)
	case "openapi.json":
		doc, err := openAPIJSON()
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(doc)
	default:
		http.NotFound(w, r)
	}
}
