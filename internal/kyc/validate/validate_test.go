package validate_test

import (
	"errors"
	"testing"
	"time"

	"github.com/LuisNMHN/NetmarketHN-sub000/internal/domain"
	"github.com/LuisNMHN/NetmarketHN-sub000/internal/kyc/validate"
)

func TestFullName(t *testing.T) {
	if err := validate.FullName("María José Hernández"); err != nil {
		t.Errorf("valid name rejected: %v", err)
	}
	if err := validate.FullName("   "); !errors.Is(err, validate.ErrNameRequired) {
		t.Errorf("blank name = %v, want ErrNameRequired", err)
	}
	if err := validate.FullName("Juan P3rez"); !errors.Is(err, validate.ErrNameHasDigits) {
		t.Errorf("name with digit = %v, want ErrNameHasDigits", err)
	}
}

func TestFormatDNI(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"0801199012345", "0801-1990-12345"},
		{"0801-1990-12345", "0801-1990-12345"},
		{"0801 1990 12345", "0801-1990-12345"},
		{"08011990123456789", "0801-1990-12345"}, // truncated at 13
		{"0801", "0801"},
		{"080119", "0801-19"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := validate.FormatDNI(tc.in); got != tc.want {
			t.Errorf("FormatDNI(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDNI(t *testing.T) {
	if err := validate.DNI("0801-1990-12345"); err != nil {
		t.Errorf("masked DNI rejected: %v", err)
	}
	if err := validate.DNI("0801199012345"); err != nil {
		t.Errorf("unmasked DNI rejected: %v", err)
	}
	if err := validate.DNI("08011990"); !errors.Is(err, validate.ErrDNIFormat) {
		t.Errorf("short DNI = %v, want ErrDNIFormat", err)
	}
}

func TestPassport(t *testing.T) {
	for _, ok := range []string{"E1234567", "AB12345678", "123456789012"} {
		if err := validate.Passport(ok); err != nil {
			t.Errorf("Passport(%q) = %v, want nil", ok, err)
		}
	}
	for _, bad := range []string{"E123", "E12345678901234", "E123-4567", ""} {
		if err := validate.Passport(bad); !errors.Is(err, validate.ErrPassportFormat) {
			t.Errorf("Passport(%q) = %v, want ErrPassportFormat", bad, err)
		}
	}
}

func TestBirthDateBoundary(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	exactly18 := time.Date(2008, 6, 15, 0, 0, 0, 0, time.UTC)
	if err := validate.BirthDate(exactly18, now); err != nil {
		t.Errorf("exactly 18 rejected: %v", err)
	}

	oneDayShort := time.Date(2008, 6, 16, 0, 0, 0, 0, time.UTC)
	if err := validate.BirthDate(oneDayShort, now); !errors.Is(err, validate.ErrUnderage) {
		t.Errorf("17y364d = %v, want ErrUnderage", err)
	}

	if err := validate.BirthDate(time.Time{}, now); !errors.Is(err, validate.ErrBirthDateRequired) {
		t.Errorf("zero birth date = %v, want ErrBirthDateRequired", err)
	}
}

func TestDocumentNumberDispatch(t *testing.T) {
	if err := validate.DocumentNumber(domain.IdentityDocID, "0801-1990-12345"); err != nil {
		t.Errorf("id dispatch failed: %v", err)
	}
	if err := validate.DocumentNumber(domain.IdentityDocPassport, "E1234567"); err != nil {
		t.Errorf("passport dispatch failed: %v", err)
	}
	if err := validate.DocumentNumber("visa", "x"); !errors.Is(err, validate.ErrDocTypeUnknown) {
		t.Errorf("unknown type = %v, want ErrDocTypeUnknown", err)
	}
}

func TestDraft(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	good := &domain.KYCSubmission{
		FullName:       "Carlos Rivera",
		BirthDate:      time.Date(1985, 7, 2, 0, 0, 0, 0, time.UTC),
		DocumentType:   domain.IdentityDocID,
		DocumentNumber: "0801-1985-54321",
		Department:     "Cortés",
		Municipality:   "San Pedro Sula",
		AddressDesc:    "Barrio Los Andes",
	}
	if err := validate.Draft(good, now); err != nil {
		t.Fatalf("valid draft rejected: %v", err)
	}

	noAddr := *good
	noAddr.Municipality = ""
	if err := validate.Draft(&noAddr, now); !errors.Is(err, validate.ErrAddressIncomplete) {
		t.Errorf("missing municipality = %v, want ErrAddressIncomplete", err)
	}
}
