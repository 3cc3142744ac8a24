package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDocumentPathRoundTrip(t *testing.T) {
	d := Document{ID: 12, Name: "contract_v2.pdf", CompanyID: 3}
	if got := d.Path(); got != "3/12_contract_v2.pdf" {
		t.Fatalf("unexpected path %q", got)
	}
	companyID, documentID, name, err := ParseDocumentPath(d.Path())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if companyID != 3 || documentID != 12 || name != "contract_v2.pdf" {
		t.Fatalf("unexpected parts %d %d %q", companyID, documentID, name)
	}
}

func TestParseDocumentPathRejectsMalformed(t *testing.T) {
	for _, p := range []string{"", "3", "3/", "x/1_a", "3/a_b", "3/12", "3/12_"} {
		if _, _, _, err := ParseDocumentPath(p); !errors.Is(err, ErrInvalidValue) {
			t.Fatalf("%q: expected ErrInvalidValue, got %v", p, err)
		}
	}
}

func TestSanitizeFileName(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"report.pdf", true},
		{"  spaced.txt ", true},
		{"", false},
		{"..", false},
		{"../etc/passwd", false},
		{`a\b`, false},
	}
	for _, tc := range cases {
		got, err := SanitizeFileName(tc.in)
		if tc.ok && (err != nil || got != strings.TrimSpace(tc.in)) {
			t.Fatalf("%q expected ok, got %q %v", tc.in, got, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestLedgerFilterMatches(t *testing.T) {
	one, two := int64(1), int64(2)
	cases := []struct {
		f    LedgerFilter
		want bool
	}{
		{LedgerFilter{}, true},
		{LedgerFilter{ActorID: &one}, true},
		{LedgerFilter{ActorID: &two}, false},
		{LedgerFilter{CompanyID: &two}, true},
		{LedgerFilter{ActorID: &one, CompanyID: &one}, false},
	}
	for i, tc := range cases {
		if got := tc.f.Matches(1, 2); got != tc.want {
			t.Fatalf("case %d: got %v want %v", i, got, tc.want)
		}
	}
}

func TestValidate(t *testing.T) {
	if err := (Funder{Name: " "}).Validate(); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue, got %v", err)
	}
	if err := (User{Name: "mina"}).Validate(); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue for empty password, got %v", err)
	}
	if err := (User{Name: "mina", Password: "x"}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestCompanyViewJSONFlattensProfile(t *testing.T) {
	v := CompanyView{
		Company: Company{ID: 7, CompanyProfile: CompanyProfile{
			CommercialFeature: "Nile Trading",
			StartDate:         time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		}},
		Funders: []Funder{{ID: 1, Name: "Fadi", CompanyID: 7}},
	}
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["commercial_feature"] != "Nile Trading" || m["id"] != float64(7) {
		t.Fatalf("profile not flattened: %s", raw)
	}
	if _, ok := m["money_capitals"]; ok {
		t.Fatalf("empty money capitals should be omitted: %s", raw)
	}
}

func TestErrorKinds(t *testing.T) {
	var err error = &InsufficientBalanceError{Requested: NewMoney(5, 0), Available: NewMoney(1, 0)}
	if !errors.Is(err, ErrInsufficientBalance) || !IsDomainError(err) {
		t.Fatalf("insufficient balance not matched: %v", err)
	}
	var ib *InsufficientBalanceError
	if !errors.As(err, &ib) || ib.Available.Cents != 100 {
		t.Fatalf("errors.As failed: %v", err)
	}

	cause := errors.New("connection reset")
	err = &StorageUnavailableError{Op: "create expense", Cause: cause}
	if !errors.Is(err, ErrStorageUnavailable) || !errors.Is(err, cause) || IsDomainError(err) {
		t.Fatalf("storage unavailable not matched: %v", err)
	}

	err = &IOError{Op: "save", Path: "1/2_a", Cause: cause}
	if !errors.Is(err, ErrIO) || !errors.Is(err, cause) {
		t.Fatalf("io error not matched: %v", err)
	}
	if !errors.Is(ErrFunderRequired, ErrInvalidValue) {
		t.Fatal("funder-required should be an invalid value")
	}
}
