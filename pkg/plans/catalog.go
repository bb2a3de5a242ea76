package plans

import (
	"errors"
	"strings"

	"mealmate_backend/internal/model"
)

// ErrUnknownPlan rejects checkout requests whose plan id is not in the
// catalog. Prices are always resolved here, server-side; a price sent by
// the browser is never trusted.
var ErrUnknownPlan = errors.New("plans: unknown plan id")

// Plan is one sellable catalog entry. ProviderPlanID is the billing-plan
// id registered at the payment provider for recurring checkout; empty for
// one-time (lifetime) plans.
type Plan struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	Type           model.PlanType     `json:"type"`
	Duration       model.PlanDuration `json:"duration"`
	Price          float64            `json:"price"`
	Currency       string             `json:"currency"`
	ProviderPlanID string             `json:"-"`
}

var catalog = map[string]Plan{
	"basic-monthly": {
		ID: "basic-monthly", Name: "Basic Monthly",
		Type: model.PlanBasic, Duration: model.DurationMonthly,
		Price: 99000, Currency: "IDR", ProviderPlanID: "P-BASIC-M",
	},
	"basic-yearly": {
		ID: "basic-yearly", Name: "Basic Yearly",
		Type: model.PlanBasic, Duration: model.DurationYearly,
		Price: 990000, Currency: "IDR", ProviderPlanID: "P-BASIC-Y",
	},
	"premium-monthly": {
		ID: "premium-monthly", Name: "Premium Monthly",
		Type: model.PlanPremium, Duration: model.DurationMonthly,
		Price: 199000, Currency: "IDR", ProviderPlanID: "P-PREMIUM-M",
	},
	"premium-yearly": {
		ID: "premium-yearly", Name: "Premium Yearly",
		Type: model.PlanPremium, Duration: model.DurationYearly,
		Price: 1990000, Currency: "IDR", ProviderPlanID: "P-PREMIUM-Y",
	},
	"professional-monthly": {
		ID: "professional-monthly", Name: "Professional Monthly",
		Type: model.PlanProfessional, Duration: model.DurationMonthly,
		Price: 299000, Currency: "IDR", ProviderPlanID: "P-PRO-M",
	},
	"professional-yearly": {
		ID: "professional-yearly", Name: "Professional Yearly",
		Type: model.PlanProfessional, Duration: model.DurationYearly,
		Price: 2990000, Currency: "IDR", ProviderPlanID: "P-PRO-Y",
	},
	"premium-lifetime": {
		ID: "premium-lifetime", Name: "Premium Lifetime",
		Type: model.PlanPremium, Duration: model.DurationLifetime,
		Price: 4990000, Currency: "IDR",
	},
}

// Lookup resolves a plan id against the catalog.
func Lookup(planID string) (Plan, error) {
	p, ok := catalog[strings.TrimSpace(planID)]
	if !ok {
		return Plan{}, ErrUnknownPlan
	}
	return p, nil
}

// All returns the catalog in a stable order for the plans endpoint.
func All() []Plan {
	out := make([]Plan, 0, len(catalog))
	for _, id := range []string{
		"basic-monthly", "basic-yearly",
		"premium-monthly", "premium-yearly",
		"professional-monthly", "professional-yearly",
		"premium-lifetime",
	} {
		out = append(out, catalog[id])
	}
	return out
}

// DeriveType maps a plan id to its plan type by token. Used for ids that
// come back in provider reference data and miss the catalog (legacy
// checkouts); catalog lookup is always preferred.
func DeriveType(planID string) model.PlanType {
	id := strings.ToLower(planID)
	switch {
	case strings.Contains(id, "basic"):
		return model.PlanBasic
	case strings.Contains(id, "premium"):
		return model.PlanPremium
	default:
		return model.PlanProfessional
	}
}

// DeriveDuration maps a plan id to its billing interval by token.
func DeriveDuration(planID string) model.PlanDuration {
	id := strings.ToLower(planID)
	switch {
	case strings.Contains(id, "monthly"):
		return model.DurationMonthly
	case strings.Contains(id, "yearly"):
		return model.DurationYearly
	default:
		return model.DurationLifetime
	}
}

// Resolve returns catalog data when the id is known and falls back to
// token derivation otherwise.
func Resolve(planID string) (model.PlanType, model.PlanDuration) {
	if p, err := Lookup(planID); err == nil {
		return p.Type, p.Duration
	}
	return DeriveType(planID), DeriveDuration(planID)
}
