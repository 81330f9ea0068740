package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	d "github.com/fjod/go_cart/settlement-service/domain"
)

// ChargeCalculator re-prices a client cart from the catalog. Prices sent by
// the client are never looked at.
type ChargeCalculator struct {
	catalog PriceLookup
}

func NewChargeCalculator(catalog PriceLookup) *ChargeCalculator {
	return &ChargeCalculator{catalog: catalog}
}

// ComputeCharge resolves every line to its current catalog price and returns
// the total with the priced lines in cart order. A product listed N times is
// charged N times.
func (c *ChargeCalculator) ComputeCharge(ctx context.Context, lines []d.CartLine) (d.Cents, []d.PricedLine, error) {
	if len(lines) == 0 {
		return 0, nil, d.ErrEmptyCart
	}

	ids := make([]string, 0, len(lines))
	seen := make(map[string]struct{}, len(lines))
	var blank int
	for _, l := range lines {
		if strings.TrimSpace(l.ProductID) == "" {
			blank++
			continue
		}
		if _, ok := seen[l.ProductID]; ok {
			continue
		}
		seen[l.ProductID] = struct{}{}
		ids = append(ids, l.ProductID)
	}
	if blank > 0 {
		return 0, nil, &UnresolvableProductError{IDs: []string{""}}
	}

	prices, err := c.catalog.GetPrices(ctx, ids)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to look up prices: %w", err)
	}

	var missing []string
	for _, id := range ids {
		if _, ok := prices[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return 0, nil, &UnresolvableProductError{IDs: missing}
	}

	priced := make([]d.PricedLine, 0, len(lines))
	var total d.Cents
	for _, l := range lines {
		price := prices[l.ProductID]
		if price < 0 {
			return 0, nil, fmt.Errorf("product %s has negative catalog price %d", l.ProductID, price)
		}
		if total > d.Cents(math.MaxInt64)-price {
			return 0, nil, fmt.Errorf("cart total overflows")
		}
		total += price
		priced = append(priced, d.PricedLine{ProductID: l.ProductID, UnitPrice: price})
	}

	if total == 0 {
		return 0, nil, fmt.Errorf("%w: every item is free", d.ErrEmptyCart)
	}
	return total, priced, nil
}

// UnresolvableProductError names the cart entries the catalog does not know.
type UnresolvableProductError struct {
	IDs []string
}

func (e *UnresolvableProductError) Error() string {
	return fmt.Sprintf("%s: %q", d.ErrUnresolvableProduct, e.IDs)
}

func (e *UnresolvableProductError) Unwrap() error {
	return d.ErrUnresolvableProduct
}
