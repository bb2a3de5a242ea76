package plans

import (
	"errors"
	"testing"

	"mealmate_backend/internal/model"
)

func TestLookup(t *testing.T) {
	plan, err := Lookup("premium-monthly")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.Price != 199000 || plan.Currency != "IDR" {
		t.Fatalf("unexpected price: %.0f %s", plan.Price, plan.Currency)
	}
	if plan.ProviderPlanID == "" {
		t.Fatal("recurring plan must carry a provider plan id")
	}

	if _, err := Lookup("  premium-monthly  "); err != nil {
		t.Fatalf("lookup should trim whitespace: %v", err)
	}

	if _, err := Lookup("enterprise-weekly"); !errors.Is(err, ErrUnknownPlan) {
		t.Fatalf("expected ErrUnknownPlan, got %v", err)
	}
}

func TestLifetimePlanIsNotRecurring(t *testing.T) {
	plan, err := Lookup("premium-lifetime")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.ProviderPlanID != "" {
		t.Fatal("lifetime plan must not have a provider billing plan")
	}
	if plan.Duration != model.DurationLifetime {
		t.Fatalf("expected lifetime duration, got %s", plan.Duration)
	}
}

func TestResolveDerivation(t *testing.T) {
	tests := []struct {
		planID       string
		wantType     model.PlanType
		wantDuration model.PlanDuration
	}{
		// Catalog hits.
		{"basic-monthly", model.PlanBasic, model.DurationMonthly},
		{"professional-yearly", model.PlanProfessional, model.DurationYearly},
		// Legacy ids resolved by token derivation.
		{"premium-yearly-plan", model.PlanPremium, model.DurationYearly},
		{"PREMIUM-MONTHLY-V2", model.PlanPremium, model.DurationMonthly},
		{"lifetime-deal", model.PlanProfessional, model.DurationLifetime},
		{"basic-forever", model.PlanBasic, model.DurationLifetime},
	}

	for _, tt := range tests {
		gotType, gotDuration := Resolve(tt.planID)
		if gotType != tt.wantType || gotDuration != tt.wantDuration {
			t.Errorf("Resolve(%q) = %s/%s, want %s/%s",
				tt.planID, gotType, gotDuration, tt.wantType, tt.wantDuration)
		}
	}
}

func TestAllIsStable(t *testing.T) {
	first := All()
	second := All()
	if len(first) != len(catalog) {
		t.Fatalf("expected %d plans, got %d", len(catalog), len(first))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("plan order is not stable at index %d: %s vs %s", i, first[i].ID, second[i].ID)
		}
	}
}
