package subscription

import (
	"testing"

	"mealmate_backend/internal/model"
)

func TestCanUseFeature(t *testing.T) {
	if !CanUseFeature(model.PlanBasic, MealPlanner) {
		t.Fatal("basic plan should include the meal planner")
	}
	if CanUseFeature(model.PlanBasic, AIRecipes) {
		t.Fatal("basic plan must not include AI recipes")
	}
	if !CanUseFeature(model.PlanPremium, NutritionTracking) {
		t.Fatal("premium plan should include nutrition tracking")
	}
	if CanUseFeature(model.PlanPremium, PrioritySupport) {
		t.Fatal("priority support is professional-only")
	}
	if !CanUseFeature(model.PlanProfessional, PrioritySupport) {
		t.Fatal("professional plan should include priority support")
	}
}

func TestUnknownPlanGetsFreeLimits(t *testing.T) {
	limits := GetPlanLimits(model.PlanType(""))
	if limits.MaxRecipes != freeLimits.MaxRecipes {
		t.Fatalf("expected free recipe limit %d, got %d", freeLimits.MaxRecipes, limits.MaxRecipes)
	}
	if CanUseFeature(model.PlanType(""), AIRecipes) {
		t.Fatal("free tier must not include AI recipes")
	}
}
