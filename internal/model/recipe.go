package model

import (
	"github.com/gosimple/slug"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Recipe Difficulty
type RecipeDifficulty string

const (
	DifficultyEasy   RecipeDifficulty = "easy"
	DifficultyMedium RecipeDifficulty = "medium"
	DifficultyHard   RecipeDifficulty = "hard"
)

type Recipe struct {
	gorm.Model
	Title       string           `json:"title" gorm:"not null"`
	Slug        string           `json:"slug" gorm:"uniqueIndex:idx_user_recipe_slug;not null"`
	Description string           `json:"description" gorm:"type:text"`
	Difficulty  RecipeDifficulty `json:"difficulty" gorm:"size:16"`
	PrepMinutes int              `json:"prep_minutes"`
	CookMinutes int              `json:"cook_minutes"`
	Servings    int              `json:"servings"`
	Ingredients datatypes.JSON   `json:"ingredients"`
	Steps       datatypes.JSON   `json:"steps"`
	IsPublished bool             `json:"is_published" gorm:"default:false"`

	UserID uint `json:"user_id" gorm:"uniqueIndex:idx_user_recipe_slug"`

	User User `json:"-" gorm:"foreignKey:UserID"`
}

// BeforeCreate fills the slug from the title, suffixing on collision.
func (r *Recipe) BeforeCreate(tx *gorm.DB) error {
	if r.Slug == "" {
		s := slug.Make(r.Title)

		var count int64
		tx.Model(&Recipe{}).Where("user_id = ? AND slug = ?", r.UserID, s).Count(&count)
		if count > 0 {
			s = s + "-" + r.CreatedAt.Format("20060102")
		}

		r.Slug = s
	}
	return nil
}
