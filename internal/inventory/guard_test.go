package inventory

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/storefront/internal/domain"
)

func TestCheckAvailability(t *testing.T) {
	v := domain.Variation{ID: "VAR-1", Quantity: 3}

	assert.NoError(t, CheckAvailability(v, 1))
	assert.NoError(t, CheckAvailability(v, 3))

	err := CheckAvailability(v, 5)
	require.Error(t, err)

	var derr *domain.Error
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, domain.KindItemUnavailable, derr.Kind)
	assert.Equal(t, "VAR-1", derr.VariationID)
	assert.Equal(t, 3, derr.Available)
}

func TestCheckAvailability_OutOfStock(t *testing.T) {
	err := CheckAvailability(domain.Variation{ID: "VAR-2"}, 1)
	assert.Equal(t, domain.KindItemUnavailable, domain.KindOf(err))
}
