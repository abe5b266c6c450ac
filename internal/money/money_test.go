package money

import (
	"errors"
	"testing"
)

func mustMoney(t *testing.T, amount, currency string) Money {
	t.Helper()
	m, err := FromString(amount, currency)
	if err != nil {
		t.Fatalf("FromString(%q, %q): %v", amount, currency, err)
	}
	return m
}

func TestFromString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		amount   string
		currency string
		want     string
		wantErr  bool
	}{
		{name: "plain", amount: "100.00", currency: "USD", want: "100.00 USD"},
		{name: "rounds_half_up", amount: "10.005", currency: "usd", want: "10.01 USD"},
		{name: "truncates_extra_scale", amount: "10.004", currency: "USD", want: "10.00 USD"},
		{name: "lowercase_currency_normalized", amount: "5", currency: "eur", want: "5.00 EUR"},
		{name: "bad_amount", amount: "ten", currency: "USD", wantErr: true},
		{name: "bad_currency", amount: "1.00", currency: "US", wantErr: true},
		{name: "empty_currency", amount: "1.00", currency: "", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m, err := FromString(tt.amount, tt.currency)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", m)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got := m.String(); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestFromMinorUnits(t *testing.T) {
	t.Parallel()

	m, err := FromMinorUnits(12345, "USD")
	if err != nil {
		t.Fatal(err)
	}
	if got := m.String(); got != "123.45 USD" {
		t.Fatalf("got %q", got)
	}
	if got := m.MinorUnits(); got != 12345 {
		t.Fatalf("round-trip minor units: got %d", got)
	}
}

func TestArithmetic(t *testing.T) {
	t.Parallel()

	a := mustMoney(t, "40.00", "USD")
	b := mustMoney(t, "60.00", "USD")

	sum, err := a.Add(b)
	if err != nil {
		t.Fatal(err)
	}
	if !sum.Equal(mustMoney(t, "100.00", "USD")) {
		t.Fatalf("sum: got %s", sum)
	}

	diff, err := b.Sub(a)
	if err != nil {
		t.Fatal(err)
	}
	if !diff.Equal(mustMoney(t, "20.00", "USD")) {
		t.Fatalf("diff: got %s", diff)
	}

	if got := mustMoney(t, "19.99", "USD").Mul(3); !got.Equal(mustMoney(t, "59.97", "USD")) {
		t.Fatalf("mul: got %s", got)
	}
}

func TestCurrencyMismatch(t *testing.T) {
	t.Parallel()

	usd := mustMoney(t, "1.00", "USD")
	eur := mustMoney(t, "1.00", "EUR")

	if _, err := usd.Add(eur); !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("Add: expected ErrCurrencyMismatch, got %v", err)
	}
	if _, err := usd.Cmp(eur); !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("Cmp: expected ErrCurrencyMismatch, got %v", err)
	}
	if usd.Equal(eur) {
		t.Fatal("Equal across currencies must be false")
	}
}

func TestComparisons(t *testing.T) {
	t.Parallel()

	small := mustMoney(t, "40.00", "USD")
	big := mustMoney(t, "70.00", "USD")

	if gt, _ := big.GreaterThan(small); !gt {
		t.Fatal("70 > 40 expected")
	}
	if lt, _ := small.LessThan(big); !lt {
		t.Fatal("40 < 70 expected")
	}
	if !Zero("USD").IsZero() {
		t.Fatal("zero must be zero")
	}
	if !small.IsPositive() {
		t.Fatal("positive expected")
	}
	neg, err := Zero("USD").Sub(small)
	if err != nil {
		t.Fatal(err)
	}
	if !neg.IsNegative() {
		t.Fatal("negative expected")
	}
}
