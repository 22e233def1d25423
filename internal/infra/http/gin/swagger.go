package ginserver

import (
	_ "embed"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"
)

//go:embed swagger/openapi.json
var openAPISpec []byte

//go:embed swagger/index.html
var swaggerHTML string

const specURL = "/swagger/openapi.json"

func registerSwaggerRoutes(router gin.IRoutes) {
	router.GET(specURL, func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json", openAPISpec)
	})
	router.GET("/swagger", func(c *gin.Context) {
		html := strings.ReplaceAll(swaggerHTML, "{{SPEC_URL}}", specURL)
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
	})
}
