package paymongo

import (
	"fmt"
	"strings"
	"time"

	pkgerrors "github.com/miketere/businesscard-sub000/pkg/errors"
)

const (
	minCardDigits = 13
	maxCardDigits = 19
)

// ValidateCard checks card shape before any network call: digit-only
// number of plausible length and an expiry that is not in the past.
// It does not attempt issuer-side checks; the gateway owns those.
func ValidateCard(card CardDetails, now time.Time) error {
	number := strings.ReplaceAll(strings.TrimSpace(card.Number), " ", "")
	if number == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "card number is required")
	}
	if len(number) < minCardDigits || len(number) > maxCardDigits {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("card number must be %d to %d digits", minCardDigits, maxCardDigits))
	}
	for _, r := range number {
		if r < '0' || r > '9' {
			return pkgerrors.New(pkgerrors.CodeValidation, "card number must contain only digits")
		}
	}
	if card.ExpMonth < 1 || card.ExpMonth > 12 {
		return pkgerrors.New(pkgerrors.CodeValidation, "card expiration month must be between 1 and 12")
	}
	if card.ExpYear < 100 {
		card.ExpYear += 2000
	}
	// Card is valid through the last instant of its expiry month.
	endOfMonth := time.Date(card.ExpYear, time.Month(card.ExpMonth)+1, 1, 0, 0, 0, 0, time.UTC)
	if !now.Before(endOfMonth) {
		return pkgerrors.New(pkgerrors.CodeValidation, "card is expired")
	}
	return nil
}

func normalizedCardNumber(card CardDetails) string {
	return strings.ReplaceAll(strings.TrimSpace(card.Number), " ", "")
}

func cardLast4(card CardDetails) string {
	number := normalizedCardNumber(card)
	if len(number) < 4 {
		return number
	}
	return number[len(number)-4:]
}
