// Package converter provides the currency conversion adapter used on the
// submission path. Rates come from static configuration; the engine itself
// only ever sees base-currency amounts.
package converter

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/approval-engine/internal/application/port"
)

// RateTable converts amounts using configured rates against the base
// currency, e.g. {"USD": 1.0, "EUR": 1.08} with base USD.
type RateTable struct {
	base   string
	rates  map[string]float64
	logger *zap.Logger
}

// New creates a rate table converter. Rates map each currency to its value in
// the base currency per unit.
func New(baseCurrency string, rates map[string]float64, logger *zap.Logger) *RateTable {
	normalized := make(map[string]float64, len(rates)+1)
	for cur, rate := range rates {
		normalized[strings.ToUpper(cur)] = rate
	}
	base := strings.ToUpper(baseCurrency)
	normalized[base] = 1.0
	return &RateTable{base: base, rates: normalized, logger: logger}
}

// BaseCurrency returns the company base currency
func (c *RateTable) BaseCurrency() string {
	return c.base
}

// Convert converts an amount between two configured currencies
func (c *RateTable) Convert(ctx context.Context, amount float64, fromCurrency, toCurrency string) (float64, error) {
	from := strings.ToUpper(fromCurrency)
	to := strings.ToUpper(toCurrency)
	if from == to {
		return amount, nil
	}

	fromRate, ok := c.rates[from]
	if !ok {
		return 0, fmt.Errorf("%w: no rate for %s", port.ErrConversionFailed, from)
	}
	toRate, ok := c.rates[to]
	if !ok {
		return 0, fmt.Errorf("%w: no rate for %s", port.ErrConversionFailed, to)
	}

	converted := amount * fromRate / toRate
	c.logger.Debug("Converted amount",
		zap.Float64("amount", amount),
		zap.String("from", from),
		zap.String("to", to),
		zap.Float64("converted", converted))
	return converted, nil
}
