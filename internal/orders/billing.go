package orders

import (
	"net/mail"
	"strings"

	"github.com/joao-fontenele/storefront/internal/domain"
)

// NormalizeBilling trims the checkout form, defaults shipping to the billing address
// and reports every invalid field at once.
func NormalizeBilling(in domain.BillingInput) (domain.BillingInput, error) {
	out := in
	out.Address = normalizeAddress(in.Address)
	out.Email = strings.TrimSpace(in.Email)
	out.Phone = strings.TrimSpace(in.Phone)

	fields := map[string]string{}
	validateAddress(out.Address, "", fields)

	if out.Email == "" {
		fields["email"] = "is required"
	} else if _, err := mail.ParseAddress(out.Email); err != nil {
		fields["email"] = "is not a valid e-mail address"
	}

	if in.Shipping == nil {
		shipping := out.Address
		out.Shipping = &shipping
	} else {
		shipping := normalizeAddress(*in.Shipping)
		validateAddress(shipping, "shipping.", fields)
		out.Shipping = &shipping
	}

	if len(fields) > 0 {
		return domain.BillingInput{}, domain.ValidationError(fields)
	}
	return out, nil
}

func normalizeAddress(a domain.Address) domain.Address {
	return domain.Address{
		FullName:   strings.TrimSpace(a.FullName),
		Line1:      strings.TrimSpace(a.Line1),
		Line2:      strings.TrimSpace(a.Line2),
		City:       strings.TrimSpace(a.City),
		State:      strings.TrimSpace(a.State),
		PostalCode: strings.TrimSpace(a.PostalCode),
		Country:    strings.ToUpper(strings.TrimSpace(a.Country)),
	}
}

func validateAddress(a domain.Address, prefix string, fields map[string]string) {
	required := map[string]string{
		"full_name":     a.FullName,
		"address_line1": a.Line1,
		"city":          a.City,
		"postal_code":   a.PostalCode,
	}
	for name, value := range required {
		if value == "" {
			fields[prefix+name] = "is required"
		}
	}

	if len(a.Country) != 2 || !isLetters(a.Country) {
		fields[prefix+"country"] = "must be a two-letter country code"
	}
}

func isLetters(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
