package middleware

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"mealmate_backend/internal/model"
	"mealmate_backend/pkg/database"
	"mealmate_backend/pkg/subscription"
	"mealmate_backend/pkg/utils/jwt"
)

// activePlanType resolves the user's plan from the Subscription entity,
// not from the denormalized user field.
func activePlanType(userID uint) model.PlanType {
	var sub model.Subscription
	err := database.DB.Where("user_id = ? AND status = ?", userID, model.SubStatusActive).
		First(&sub).Error
	if err != nil {
		return ""
	}
	return sub.PlanType
}

// CheckFeatureAccess gates a route on the user's plan feature set.
func CheckFeatureAccess(feature subscription.Feature) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := c.Locals("user").(*jwt.Claims)

		if !subscription.CanUseFeature(activePlanType(claims.UserID), feature) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "This feature requires a higher subscription plan",
			})
		}

		return c.Next()
	}
}

// CheckRecipeLimit enforces the per-plan recipe cap before creation.
func CheckRecipeLimit() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := c.Locals("user").(*jwt.Claims)

		limits := subscription.GetPlanLimits(activePlanType(claims.UserID))

		var recipeCount int64
		database.DB.Model(&model.Recipe{}).Where("user_id = ?", claims.UserID).Count(&recipeCount)

		if int(recipeCount) >= limits.MaxRecipes {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":         "You have reached your recipe limit. Please upgrade your plan.",
				"current_count": recipeCount,
				"max_limit":     limits.MaxRecipes,
			})
		}

		return c.Next()
	}
}

// CheckRecipeOwnership rejects access to recipes owned by someone else.
func CheckRecipeOwnership() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := c.Locals("user").(*jwt.Claims)
		recipeID := c.Params("id")

		var recipe model.Recipe
		if err := database.DB.First(&recipe, recipeID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "Recipe not found",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Could not fetch recipe",
			})
		}

		if recipe.UserID != claims.UserID {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "You don't have permission to access this recipe",
			})
		}

		return c.Next()
	}
}
