package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/storefront/internal/domain"
)

func validBilling() domain.BillingInput {
	return domain.BillingInput{
		Address: domain.Address{
			FullName:   "Ana Souza",
			Line1:      "Rua A, 10",
			City:       "Recife",
			PostalCode: "50000-000",
			Country:    "br",
		},
		Email: " ana@example.com ",
	}
}

func TestNormalizeBilling(t *testing.T) {
	t.Run("copies billing into shipping", func(t *testing.T) {
		out, err := NormalizeBilling(validBilling())
		require.NoError(t, err)
		assert.Equal(t, "BR", out.Country)
		assert.Equal(t, "ana@example.com", out.Email)
		require.NotNil(t, out.Shipping)
		assert.Equal(t, out.Address, *out.Shipping)
	})

	t.Run("shipping copy is independent of billing", func(t *testing.T) {
		out, err := NormalizeBilling(validBilling())
		require.NoError(t, err)
		out.Shipping.City = "Olinda"
		assert.Equal(t, "Recife", out.City)
	})

	t.Run("keeps explicit shipping", func(t *testing.T) {
		in := validBilling()
		in.Shipping = &domain.Address{FullName: "Bia", Line1: "Rua B", City: "Natal", PostalCode: "59000", Country: "BR"}
		out, err := NormalizeBilling(in)
		require.NoError(t, err)
		assert.Equal(t, "Natal", out.Shipping.City)
	})

	t.Run("reports every invalid field", func(t *testing.T) {
		in := domain.BillingInput{Email: "not-an-email", Address: domain.Address{Country: "Brazil"}}
		in.Shipping = &domain.Address{Country: "BR"}

		_, err := NormalizeBilling(in)
		require.Error(t, err)

		var derr *domain.Error
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, domain.KindValidation, derr.Kind)
		for _, field := range []string{"full_name", "address_line1", "city", "postal_code", "country", "email", "shipping.city"} {
			assert.Contains(t, derr.Fields, field)
		}
		assert.NotContains(t, derr.Fields, "shipping.country")
	})
}
