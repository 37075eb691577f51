// Package validate holds the client-local field checks that run before
// any network call. Everything here returns a typed error for inline
// display; nothing touches the database.
package validate

import (
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/LuisNMHN/NetmarketHN-sub000/internal/domain"
)

var (
	ErrNameRequired      = errors.New("full name is required")
	ErrNameHasDigits     = errors.New("full name must not contain digits")
	ErrDNIFormat         = errors.New("DNI must be 13 digits (NNNN-NNNN-NNNNN)")
	ErrPassportFormat    = errors.New("passport must be 8-12 alphanumeric characters")
	ErrBirthDateRequired = errors.New("birth date is required")
	ErrUnderage          = errors.New("you must be at least 18 years old")
	ErrAddressIncomplete = errors.New("department, municipality and address description are required")
	ErrDocTypeUnknown    = errors.New("unknown document type")
)

var passportRe = regexp.MustCompile(`^[A-Za-z0-9]{8,12}$`)

// FullName rejects empty names and names containing digits.
func FullName(s string) error {
	if strings.TrimSpace(s) == "" {
		return ErrNameRequired
	}
	for _, r := range s {
		if unicode.IsDigit(r) {
			return ErrNameHasDigits
		}
	}
	return nil
}

// digits strips every non-digit rune.
func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FormatDNI normalizes a raw input to the display mask NNNN-NNNN-NNNNN.
// Non-digits are stripped and anything past 13 digits is truncated:
// "0801199012345" -> "0801-1990-12345".
func FormatDNI(raw string) string {
	d := digits(raw)
	if len(d) > 13 {
		d = d[:13]
	}
	switch {
	case len(d) <= 4:
		return d
	case len(d) <= 8:
		return d[:4] + "-" + d[4:]
	default:
		return d[:4] + "-" + d[4:8] + "-" + d[8:]
	}
}

// DNI accepts masked or unmasked input and requires exactly 13 digits.
func DNI(s string) error {
	if len(digits(s)) != 13 {
		return ErrDNIFormat
	}
	return nil
}

// Passport requires 8-12 alphanumeric characters.
func Passport(s string) error {
	if !passportRe.MatchString(s) {
		return ErrPassportFormat
	}
	return nil
}

// Age returns full years between birth and now.
func Age(birth, now time.Time) int {
	years := now.Year() - birth.Year()
	anniversary := birth.AddDate(years, 0, 0)
	if anniversary.After(now) {
		years--
	}
	return years
}

// BirthDate requires the subject to be at least 18 on the day of the
// check; exactly 18 years passes, 17y364d does not.
func BirthDate(birth, now time.Time) error {
	if birth.IsZero() {
		return ErrBirthDateRequired
	}
	if Age(birth, now) < 18 {
		return ErrUnderage
	}
	return nil
}

// DocumentNumber dispatches on the identity document type.
func DocumentNumber(dt domain.IdentityDocType, number string) error {
	switch dt {
	case domain.IdentityDocID:
		return DNI(number)
	case domain.IdentityDocPassport:
		return Passport(number)
	}
	return ErrDocTypeUnknown
}

// Draft validates the identity+address fields of a step-1 save.
func Draft(sub *domain.KYCSubmission, now time.Time) error {
	if err := FullName(sub.FullName); err != nil {
		return err
	}
	if err := BirthDate(sub.BirthDate, now); err != nil {
		return err
	}
	if err := DocumentNumber(sub.DocumentType, sub.DocumentNumber); err != nil {
		return err
	}
	if sub.Department == "" || sub.Municipality == "" || sub.AddressDesc == "" {
		return ErrAddressIncomplete
	}
	return nil
}
