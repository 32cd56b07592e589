// Package openapi serves the connector's OpenAPI 3.1 document and a Swagger
// UI for it. The document is rendered from the routes registered on the
// Huma API, so it never drifts from the handlers.
package openapi

import (
	"encoding/json"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/labstack/echo/v4"
	"gopkg.in/yaml.v3"
)

const swaggerUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>eBay Connector API</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: "/swagger/swagger.json",
      dom_id: "#swagger-ui",
      presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
      layout: "BaseLayout",
    });
  </script>
</body>
</html>`

// RegisterRoutes adds Swagger UI and spec endpoints to the Echo instance.
// Call it after every Huma route is registered.
func RegisterRoutes(e *echo.Echo, api huma.API) {
	e.GET("/swagger/swagger.json", serveJSON(api))
	e.GET("/swagger/swagger.yaml", serveYAML(api))
	e.GET("/swagger/index.html", serveUI)
	e.GET("/swagger", redirectToUI)
	e.GET("/swagger/", redirectToUI)
}

func serveJSON(api huma.API) echo.HandlerFunc {
	return func(c echo.Context) error {
		data, err := json.MarshalIndent(api.OpenAPI(), "", "  ")
		if err != nil {
			return c.String(http.StatusInternalServerError, "rendering spec failed")
		}
		return c.Blob(http.StatusOK, "application/json", data)
	}
}

func serveYAML(api huma.API) echo.HandlerFunc {
	return func(c echo.Context) error {
		data, err := specYAML(api)
		if err != nil {
			return c.String(http.StatusInternalServerError, "rendering spec failed")
		}
		return c.Blob(http.StatusOK, "text/yaml", data)
	}
}

// specYAML re-encodes the JSON document; YAML is a superset of JSON.
func specYAML(api huma.API) ([]byte, error) {
	raw, err := json.Marshal(api.OpenAPI())
	if err != nil {
		return nil, err
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return yaml.Marshal(doc)
}

func serveUI(c echo.Context) error {
	return c.HTML(http.StatusOK, swaggerUIHTML)
}

func redirectToUI(c echo.Context) error {
	return c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
}
