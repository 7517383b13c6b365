package converter

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/garyjia/approval-engine/internal/application/port"
)

func TestConvert(t *testing.T) {
	table := New("usd", map[string]float64{"EUR": 1.08, "jpy": 0.0067}, zap.NewNop())

	tests := []struct {
		name    string
		amount  float64
		from    string
		to      string
		want    float64
		wantErr bool
	}{
		{name: "eur to base", amount: 100, from: "EUR", to: "USD", want: 108},
		{name: "base to eur", amount: 108, from: "USD", to: "EUR", want: 100},
		{name: "same currency passthrough", amount: 42, from: "USD", to: "USD", want: 42},
		{name: "case insensitive", amount: 100, from: "eur", to: "usd", want: 108},
		{name: "cross currency via base", amount: 1, from: "EUR", to: "JPY", want: 1.08 / 0.0067},
		{name: "unknown source currency", amount: 1, from: "XYZ", to: "USD", wantErr: true},
		{name: "unknown target currency", amount: 1, from: "USD", to: "XYZ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := table.Convert(context.Background(), tt.amount, tt.from, tt.to)
			if tt.wantErr {
				if !errors.Is(err, port.ErrConversionFailed) {
					t.Errorf("Convert() error = %v, want ErrConversionFailed", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Convert() error = %v", err)
			}
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("Convert() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBaseCurrencyNormalized(t *testing.T) {
	table := New("usd", nil, zap.NewNop())
	if got := table.BaseCurrency(); got != "USD" {
		t.Errorf("BaseCurrency() = %s, want USD", got)
	}
}
