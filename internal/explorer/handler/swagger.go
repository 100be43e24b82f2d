package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger serves the OpenAPI description of the explorer API.
// - GET /swagger/index.html  -> Swagger UI page loading the JSON below
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Header("Content-Type", "application/json")
		c.String(http.StatusOK, swaggerJSON)
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>hospital-data-explorer API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "hospital-data-explorer", "version": "v0.1.0" },
  "paths": {
    "/api/collections": { "get": { "summary": "List browsable collections", "responses": { "200": { "description": "collection names" } } } },
    "/api/collections/{name}/attributes": {
      "get": { "summary": "Attribute names of a collection", "responses": { "200": { "description": "attributes" }, "404": { "description": "unknown collection" } } }
    },
    "/api/collections/{name}/find": {
      "post": {
        "summary": "Exact-match query",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"query":{"type":"object","additionalProperties":{"type":"string"}}}}}}},
        "responses": { "200": { "description": "result table" }, "400": { "description": "invalid identifier" } }
      }
    },
    "/api/collections/{name}/aggregate": {
      "post": {
        "summary": "Run a group/count, group/sum, group/average, match or sort pipeline",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"kind":{"type":"string","enum":["count","sum","average","match","sort"]},"groupBy":{"type":"string"},"field":{"type":"string"},"value":{"type":"string"},"order":{"type":"string","enum":["asc","desc"]}}}}}},
        "responses": { "200": { "description": "result table" }, "422": { "description": "failed" } }
      }
    },
    "/api/collections/{name}/documents": {
      "post": {
        "summary": "Insert a document",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"fields":{"type":"object","additionalProperties":{"type":"string"}}}}}}},
        "responses": { "201": { "description": "inserted" }, "422": { "description": "failed" } }
      }
    },
    "/api/collections/{name}/documents/{id}": {
      "patch": {
        "summary": "Set non-empty fields and clear listed fields",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"fields":{"type":"object","additionalProperties":{"type":"string"}},"clear":{"type":"array","items":{"type":"string"}}}}}}},
        "responses": { "200": { "description": "updated" }, "400": { "description": "invalid identifier" }, "422": { "description": "failed" } }
      },
      "delete": { "summary": "Delete a document", "responses": { "200": { "description": "deleted" }, "400": { "description": "invalid identifier" }, "422": { "description": "failed" } } }
    },
    "/api/collections/{name}/export": {
      "post": { "summary": "Export a query result as CSV to object storage", "responses": { "200": { "description": "presigned download URL" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
