package types

import (
	"encoding/json"
	"testing"
)

func TestMoneyDisplay(t *testing.T) {
	tests := []struct {
		name    string
		money   Money
		display string
	}{
		{"USD", USD(4900), "$49.00"},
		{"EUR", EUR(19905), "€199.05"},
		{"JPY", New(100, "JPY"), "¥100"},
		{"negative", USD(-250), "$-2.50"},
		{"unknown currency", New(1000, "chf"), "CHF 10.00"},
		{"zero", Zero("USD"), "$0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.money.String(); got != tt.display {
				t.Errorf("got %s, want %s", got, tt.display)
			}
		})
	}
}

func TestMoneyEqual(t *testing.T) {
	tests := []struct {
		name  string
		a, b  Money
		equal bool
	}{
		{"same", USD(100), USD(100), true},
		{"case-insensitive currency", USD(100), Money{Amount: 100, Currency: "USD"}, true},
		{"underpayment", USD(99), USD(100), false},
		{"overpayment", USD(101), USD(100), false},
		{"currency mismatch", USD(100), EUR(100), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.equal {
				t.Errorf("Equal: got %v, want %v", got, tt.equal)
			}
		})
	}
}

func TestMoneyArithmetic(t *testing.T) {
	if got := USD(100).Add(USD(250)); !got.Equal(USD(350)) {
		t.Errorf("Add: got %v", got)
	}
	if got := USD(100).Multiply(12); !got.Equal(USD(1200)) {
		t.Errorf("Multiply: got %v", got)
	}

	defer func() {
		if recover() == nil {
			t.Error("expected panic on currency mismatch")
		}
	}()
	_ = USD(1).Add(EUR(1))
}

func TestMoneyJSON(t *testing.T) {
	data, err := json.Marshal(USD(4900))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"amount":4900,"currency":"usd","display":"$49.00"}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}

	var m Money
	if err := json.Unmarshal([]byte(`{"amount":100,"currency":"EUR"}`), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !m.Equal(EUR(100)) || m.Currency != "eur" {
		t.Errorf("unmarshal: got %+v", m)
	}
}
