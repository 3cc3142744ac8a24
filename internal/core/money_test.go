package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"-1", -100, true},
		{"0", 0, true},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
		{"99999999999999999999", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseMoney(tc.in)
		if tc.ok {
			if err != nil || got.Cents != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got.Cents, err)
			}
		} else if !errors.Is(err, ErrInvalidValue) {
			t.Fatalf("%q expected ErrInvalidValue, got %v", tc.in, err)
		}
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	for _, m := range []Money{{Cents: 0}, {Cents: -5}} {
		if err := m.Validate(); !errors.Is(err, ErrInvalidValue) {
			t.Fatalf("%v: expected ErrInvalidValue, got %v", m, err)
		}
	}
}

func TestMoneyJSON(t *testing.T) {
	var payload struct {
		Value Money `json:"value"`
	}
	for in, want := range map[string]int64{
		`{"value": 40}`:      4000,
		`{"value": 12.345}`:  1235,
		`{"value": "7,5"}`:   750,
		`{"value": null}`:    0,
		`{"value": "0.004"}`: 0,
	} {
		payload.Value = Money{Cents: -1}
		if err := json.Unmarshal([]byte(in), &payload); err != nil {
			t.Fatalf("%s: unmarshal: %v", in, err)
		}
		if payload.Value.Cents != want {
			t.Fatalf("%s: got %d cents, want %d", in, payload.Value.Cents, want)
		}
	}

	out, err := json.Marshal(struct {
		Value Money `json:"value"`
	}{NewMoney(60, 5)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"value":60.05}` {
		t.Fatalf("unexpected json %s", out)
	}

	if err := json.Unmarshal([]byte(`{"value": "ten"}`), &payload); err == nil {
		t.Fatal("expected error for non-numeric value")
	}
}

func TestMoneyIsNegative(t *testing.T) {
	tests := []struct {
		m    Money
		want bool
	}{
		{Money{Cents: -1}, true},
		{Money{}, false},
		{NewMoney(60, 0), false},
	}
	for _, tt := range tests {
		if got := tt.m.IsNegative(); got != tt.want {
			t.Errorf("%v.IsNegative() = %v, want %v", tt.m, got, tt.want)
		}
	}
}
