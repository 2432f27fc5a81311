// Package swagger serves the Swagger UI and the OpenAPI document registered
// by the docs package.
package swagger

import (
	"net/http"

	"github.com/swaggo/swag"

	// Registers the OpenAPI document.
	_ "github.com/bher20/wattscope/internal/api/docs"
)

// Handler returns an http.Handler that serves the Swagger UI at "/" and the
// document at "/doc.json".
func Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/doc.json", func(w http.ResponseWriter, r *http.Request) {
		doc, err := swag.ReadDoc()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(doc))
	})

	// Swagger UI from the CDN.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" && r.URL.Path != "" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(swaggerUIHTML))
	})

	return mux
}

const swaggerUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>wattscope API</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css">
  <style>
    body { margin: 0; }
    .swagger-ui .topbar { display: none; }
  </style>
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js"></script>
  <script>
    window.onload = function() {
      window.ui = SwaggerUIBundle({
        url: "/api/docs/doc.json",
        dom_id: '#swagger-ui',
        deepLinking: true,
        docExpansion: "list",
        filter: true
      });
    };
  </script>
</body>
</html>
`
