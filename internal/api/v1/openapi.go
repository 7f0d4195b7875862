package apiv1

import (
	"context"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// LoadDocument reads and validates the public OpenAPI document.
func LoadDocument(ctx context.Context, path string) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx
	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load openapi document %s: %w", path, err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid openapi document %s: %w", path, err)
	}
	return doc, nil
}

// UndocumentedRoutes returns the mounted routes missing from doc.
func UndocumentedRoutes(doc *openapi3.T) []Route {
	var missing []Route
	for _, r := range Routes {
		item := doc.Paths.Find(r.Path)
		if item == nil || item.GetOperation(strings.ToUpper(r.Method)) == nil {
			missing = append(missing, r)
		}
	}
	return missing
}
