package handlers

import (
	_ "embed"
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"
)

//go:embed openapi.json
var openAPIDoc []byte

// ServeOpenAPI отдаёт OpenAPI-документ, который читает swagger UI.
func ServeOpenAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(openAPIDoc)
}

// SwaggerUI serves the swagger UI pointed at docURL.
func SwaggerUI(docURL string) http.HandlerFunc {
	return httpSwagger.Handler(httpSwagger.URL(docURL))
}
