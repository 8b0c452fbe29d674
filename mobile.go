package claims

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/nyaruka/phonenumbers"
)

// DefaultMobileRegion is the region used when normalizing mobile identifiers
// that carry a country prefix.
var DefaultMobileRegion = "IN"

// ValidateMobile runs the local 10-digit-numeric shape check. Defense in
// depth only: the authoritative check is server-side.
func ValidateMobile(mobile string) error {
	err := validation.Validate(mobile,
		validation.Required,
		validation.Length(10, 10),
		is.Digit,
	)
	if err != nil {
		return withMetadata(ErrInvalidMobile, map[string]any{"error": err.Error()})
	}
	return nil
}

// NormalizeMobile strips formatting and country prefixes down to the national
// significant number, then applies the shape check. Inputs that already look
// like a bare 10-digit number pass through untouched.
func NormalizeMobile(raw string) (string, error) {
	mobile := strings.TrimSpace(raw)

	if ValidateMobile(mobile) != nil {
		if parsed, err := phonenumbers.Parse(mobile, DefaultMobileRegion); err == nil {
			mobile = phonenumbers.GetNationalSignificantNumber(parsed)
		}
	}

	if err := ValidateMobile(mobile); err != nil {
		return "", err
	}

	return mobile, nil
}
