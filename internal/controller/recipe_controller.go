package controller

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"mealmate_backend/internal/model"
	"mealmate_backend/pkg/database"
	"mealmate_backend/pkg/utils/jwt"
)

func toJSON(items []string) datatypes.JSON {
	raw, err := json.Marshal(items)
	if err != nil {
		return datatypes.JSON([]byte("[]"))
	}
	return datatypes.JSON(raw)
}

type RecipeInput struct {
	Title       string                 `json:"title" validate:"required"`
	Description string                 `json:"description"`
	Difficulty  model.RecipeDifficulty `json:"difficulty"`
	PrepMinutes int                    `json:"prep_minutes"`
	CookMinutes int                    `json:"cook_minutes"`
	Servings    int                    `json:"servings"`
	Ingredients []string               `json:"ingredients"`
	Steps       []string               `json:"steps"`
	IsPublished bool                   `json:"is_published"`
}

// ListMyRecipes returns the caller's recipes, newest first.
func ListMyRecipes(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	var recipes []model.Recipe
	if err := database.DB.Where("user_id = ?", claims.UserID).
		Order("created_at DESC").Find(&recipes).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch recipes",
		})
	}

	return c.JSON(recipes)
}

// GetRecipeBySlug serves a published recipe on its public page.
func GetRecipeBySlug(c *fiber.Ctx) error {
	username := c.Params("username")
	recipeSlug := c.Params("recipe_slug")

	var user model.User
	if err := database.DB.Where("username = ?", username).First(&user).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "User not found",
		})
	}

	var recipe model.Recipe
	if err := database.DB.Where("user_id = ? AND slug = ? AND is_published = ?", user.ID, recipeSlug, true).
		First(&recipe).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Recipe not found",
		})
	}

	return c.JSON(recipe)
}

func CreateRecipe(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	input := new(RecipeInput)
	if err := c.BodyParser(input); err != nil || input.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	recipe := model.Recipe{
		Title:       input.Title,
		Description: input.Description,
		Difficulty:  input.Difficulty,
		PrepMinutes: input.PrepMinutes,
		CookMinutes: input.CookMinutes,
		Servings:    input.Servings,
		Ingredients: toJSON(input.Ingredients),
		Steps:       toJSON(input.Steps),
		IsPublished: input.IsPublished,
		UserID:      claims.UserID,
	}

	if err := database.DB.Create(&recipe).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create recipe",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(recipe)
}

func UpdateRecipe(c *fiber.Ctx) error {
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

	input := new(RecipeInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	recipe.Title = input.Title
	recipe.Description = input.Description
	recipe.Difficulty = input.Difficulty
	recipe.PrepMinutes = input.PrepMinutes
	recipe.CookMinutes = input.CookMinutes
	recipe.Servings = input.Servings
	recipe.Ingredients = toJSON(input.Ingredients)
	recipe.Steps = toJSON(input.Steps)
	recipe.IsPublished = input.IsPublished

	if err := database.DB.Save(&recipe).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not update recipe",
		})
	}

	return c.JSON(recipe)
}

func DeleteRecipe(c *fiber.Ctx) error {
	recipeID := c.Params("id")

	if err := database.DB.Delete(&model.Recipe{}, recipeID).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not delete recipe",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Recipe deleted successfully",
	})
}
