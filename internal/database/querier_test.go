package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithSearchPath(t *testing.T) {
	dsn, err := WithSearchPath("postgres://u:p@localhost:5432/shop?sslmode=disable", "storefront")
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@localhost:5432/shop?search_path=storefront&sslmode=disable", dsn)

	unchanged, err := WithSearchPath("postgres://localhost/shop", "")
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/shop", unchanged)
}
