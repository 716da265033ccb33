package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestValidPrice(t *testing.T) {
	tests := []struct {
		name  string
		price string
		want  bool
	}{
		{"whole dollars", "150", true},
		{"two decimal places", "150.25", true},
		{"one decimal place", "0.5", true},
		{"smallest valid", "0.01", true},
		{"zero", "0", false},
		{"negative", "-1.50", false},
		{"three decimal places", "150.255", false},
		{"sub-cent", "0.001", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidPrice(d(tt.price)); got != tt.want {
				t.Errorf("ValidPrice(%s) = %v, want %v", tt.price, got, tt.want)
			}
		})
	}
}

func TestCost(t *testing.T) {
	got := Cost(d("150.25"), 3)
	if !got.Equal(d("450.75")) {
		t.Errorf("Cost(150.25, 3) = %s, want 450.75", got)
	}

	got = Cost(d("0.01"), 1)
	if !got.Equal(d("0.01")) {
		t.Errorf("Cost(0.01, 1) = %s, want 0.01", got)
	}
}
