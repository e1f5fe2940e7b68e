package model

import (
	"encoding/json"
	"testing"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		code    string
		want    string
		wantErr bool
	}{
		{"whole number", "99.0", "USD", "99.00 USD", false},
		{"with cents", "123.45", "USD", "123.45 USD", false},
		{"empty amount", "", "USD", "0.00 USD", false},
		{"no currency", "10", "", "10.00", false},
		{"three decimal currency", "1.234", "KWD", "1.234 KWD", false},
		{"sub-cent amount kept", "0.005", "USD", "0.005 USD", false},
		{"invalid amount", "abc", "USD", "", true},
		{"invalid currency", "1.00", "DOLLARS", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMoney(tt.amount, tt.code)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMoney(%q, %q) error = %v, wantErr %v", tt.amount, tt.code, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.String() != tt.want {
				t.Errorf("String() = %q, want %q", got.String(), tt.want)
			}
		})
	}
}

func TestMoneyJSON(t *testing.T) {
	var m Money
	if err := json.Unmarshal([]byte(`{"amount":"12.5","currencyCode":"USD"}`), &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if m.String() != "12.50 USD" {
		t.Errorf("String() = %q, want %q", m.String(), "12.50 USD")
	}

	out, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"amount":"12.50","currencyCode":"USD"}`
	if string(out) != want {
		t.Errorf("Marshal = %s, want %s", out, want)
	}
}

// Gateway amounts must survive the /cart response and the persisted record
// without rounding.
func TestMoneyJSONRoundTripKeepsPrecision(t *testing.T) {
	tests := []struct {
		amount, code string
		wantJSON     string
	}{
		{"1.234", "KWD", `{"amount":"1.234","currencyCode":"KWD"}`},
		{"0.005", "USD", `{"amount":"0.005","currencyCode":"USD"}`},
		{"19.9", "USD", `{"amount":"19.90","currencyCode":"USD"}`},
		{"7", "JPY", `{"amount":"7.00","currencyCode":"JPY"}`},
	}
	for _, tt := range tests {
		t.Run(tt.amount+" "+tt.code, func(t *testing.T) {
			in := MustMoney(tt.amount, tt.code)
			data, err := json.Marshal(in)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			if string(data) != tt.wantJSON {
				t.Errorf("Marshal = %s, want %s", data, tt.wantJSON)
			}
			var out Money
			if err := json.Unmarshal(data, &out); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if !out.Equal(in) {
				t.Errorf("round trip %v -> %v, want equal", in, out)
			}
		})
	}
}

func TestMoneyJSON_RejectsBadCurrency(t *testing.T) {
	var m Money
	if err := json.Unmarshal([]byte(`{"amount":"1.00","currencyCode":"??"}`), &m); err == nil {
		t.Error("expected error for unknown currency code")
	}
}

func TestMoneyEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Money
		want bool
	}{
		{"same scale", MustMoney("1.50", "USD"), MustMoney("1.50", "USD"), true},
		{"different scale", MustMoney("1.5", "USD"), MustMoney("1.50", "USD"), true},
		{"zero value vs parsed zero", Money{}, MustMoney("0.00", ""), true},
		{"different amount", MustMoney("1.50", "USD"), MustMoney("1.51", "USD"), false},
		{"different currency", MustMoney("1.50", "USD"), MustMoney("1.50", "EUR"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("%v.Equal(%v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
