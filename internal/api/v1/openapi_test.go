package apiv1

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const documentPath = "../../../public/docs/v1/openapi.yml"

func TestOpenAPIDocumentIsValid(t *testing.T) {
	doc, err := LoadDocument(context.Background(), documentPath)
	require.NoError(t, err)
	assert.Equal(t, "/api/v1", doc.Servers[0].URL)
}

func TestEveryRouteIsDocumented(t *testing.T) {
	doc, err := LoadDocument(context.Background(), documentPath)
	require.NoError(t, err)
	assert.Empty(t, UndocumentedRoutes(doc))
}
