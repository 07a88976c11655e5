package router

import (
	"os"
	"path/filepath"

	"service-desk/backend/pkg/validator"

	"github.com/gin-gonic/gin"
)

// openAPIValidation loads the schema and serves it under /api/docs.
// It returns nil when no usable schema is configured.
func (r *Router) openAPIValidation(schemaPath string) gin.HandlerFunc {
	if schemaPath == "" {
		return nil
	}
	if !fileExists(schemaPath) {
		r.Logger.Warn("OpenAPI schema file not found, skipping validation", "path", schemaPath)
		return nil
	}

	v, err := validator.NewOpenAPIValidator(schemaPath)
	if err != nil {
		r.Logger.Error("Failed to initialize OpenAPI validator", "error", err)
		return nil
	}

	schemaFile := filepath.Base(schemaPath)
	r.Engine.StaticFile("/api/docs/"+schemaFile, schemaPath)
	r.Logger.Info("OpenAPI validation enabled", "schema", schemaPath, "url", "/api/docs/"+schemaFile)

	return v.Middleware()
}

// fileExists checks if a file exists and is not a directory
func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
