// Package detector decides whether a new price observation deserves an alert.
package detector

import (
	"github.com/shopspring/decimal"

	"sjsage522/pricewatch/internal/history"
	"sjsage522/pricewatch/internal/product"
)

// DefaultDropThreshold is the fractional price drop that triggers an alert
var DefaultDropThreshold = decimal.RequireFromString("0.08")

// Kind is the type of an alert
type Kind string

const (
	TargetReached Kind = "target_reached"
	PriceDrop     Kind = "price_drop"
)

// Alert is the outcome of a positive decision
type Alert struct {
	Kind     Kind
	Query    string
	Location string
	Name     string
	NewPrice decimal.Decimal

	// PriceDrop only
	OldPrice     decimal.Decimal
	DropFraction decimal.Decimal

	// TargetReached only
	Target decimal.Decimal
}

// TargetTable maps a query to its target price
type TargetTable map[string]decimal.Decimal

// Decide applies, in order: no price means no alert; a price at or below the
// query's target is TargetReached; a drop of at least threshold from a
// positive prior price is PriceDrop. At most one alert is returned.
func Decide(obs product.Observation, prior *history.Entry, targets TargetTable, threshold decimal.Decimal) *Alert {
	if !obs.HasPrice() {
		return nil
	}
	price := obs.Price.Decimal

	if target, ok := targets[obs.Query]; ok && price.LessThanOrEqual(target) {
		return &Alert{
			Kind:     TargetReached,
			Query:    obs.Query,
			Location: obs.Location,
			Name:     obs.Name,
			NewPrice: price,
			Target:   target,
		}
	}

	if prior == nil || !prior.Price.IsPositive() {
		return nil
	}

	drop := prior.Price.Sub(price).Div(prior.Price)
	if drop.LessThan(threshold) {
		return nil
	}
	return &Alert{
		Kind:         PriceDrop,
		Query:        obs.Query,
		Location:     obs.Location,
		Name:         obs.Name,
		NewPrice:     price,
		OldPrice:     prior.Price,
		DropFraction: drop,
	}
}
