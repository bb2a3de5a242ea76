package subscription

import "mealmate_backend/internal/model"

type Feature string

const (
	MealPlanner       Feature = "meal_planner"
	AIRecipes         Feature = "ai_recipes"
	NutritionTracking Feature = "nutrition_tracking"
	GroceryExport     Feature = "grocery_export"
	PrioritySupport   Feature = "priority_support"
)

type PlanLimits struct {
	MaxRecipes      int
	MaxMealPlans    int
	AllowedFeatures map[Feature]bool
}

var PlanFeatures = map[model.PlanType]PlanLimits{
	model.PlanBasic: {
		MaxRecipes:   25,
		MaxMealPlans: 2,
		AllowedFeatures: map[Feature]bool{
			MealPlanner:       true,
			AIRecipes:         false,
			NutritionTracking: false,
			GroceryExport:     false,
			PrioritySupport:   false,
		},
	},
	model.PlanPremium: {
		MaxRecipes:   200,
		MaxMealPlans: 10,
		AllowedFeatures: map[Feature]bool{
			MealPlanner:       true,
			AIRecipes:         true,
			NutritionTracking: true,
			GroceryExport:     true,
			PrioritySupport:   false,
		},
	},
	model.PlanProfessional: {
		MaxRecipes:   1000,
		MaxMealPlans: 50,
		AllowedFeatures: map[Feature]bool{
			MealPlanner:       true,
			AIRecipes:         true,
			NutritionTracking: true,
			GroceryExport:     true,
			PrioritySupport:   true,
		},
	},
}

// freeLimits apply to users without an active subscription.
var freeLimits = PlanLimits{
	MaxRecipes:   5,
	MaxMealPlans: 1,
	AllowedFeatures: map[Feature]bool{
		MealPlanner: true,
	},
}

func CanUseFeature(plan model.PlanType, feature Feature) bool {
	limits, exists := PlanFeatures[plan]
	if !exists {
		limits = freeLimits
	}
	return limits.AllowedFeatures[feature]
}

func GetPlanLimits(plan model.PlanType) PlanLimits {
	limits, exists := PlanFeatures[plan]
	if !exists {
		return freeLimits
	}
	return limits
}
