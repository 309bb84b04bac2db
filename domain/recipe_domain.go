package domain

import (
	"errors"
	"time"
)

var (
	MessageSuccessGetRecipes      = "success get recipes"
	MessageSuccessGetRecipeDetail = "success get recipe detail"
	MessageSuccessCreateRecipe    = "recipe created successfully"
	MessageSuccessUpdateRecipe    = "recipe updated successfully"
	MessageSuccessDeleteRecipe    = "recipe deleted successfully"
	MessageSuccessFavorite        = "recipe added to favorites"
	MessageSuccessUnfavorite      = "recipe removed from favorites"
	MessageSuccessAddToCart       = "recipe added to shopping cart"
	MessageSuccessRemoveFromCart  = "recipe removed from shopping cart"
	MessageSuccessDownloadCart    = "success download shopping cart"

	MessageFailedGetRecipes      = "failed to get recipes"
	MessageFailedGetRecipeDetail = "failed to get recipe detail"
	MessageFailedCreateRecipe    = "failed to create recipe"
	MessageFailedUpdateRecipe    = "failed to update recipe"
	MessageFailedDeleteRecipe    = "failed to delete recipe"
	MessageFailedFavorite        = "failed to add recipe to favorites"
	MessageFailedUnfavorite      = "failed to remove recipe from favorites"
	MessageFailedAddToCart       = "failed to add recipe to shopping cart"
	MessageFailedRemoveFromCart  = "failed to remove recipe from shopping cart"
	MessageFailedDownloadCart    = "failed to download shopping cart"

	ErrRecipeNotFound      = errors.New("recipe not found")
	ErrNotRecipeAuthor     = errors.New("only the author can modify this recipe")
	ErrCookingTimeTooShort = errors.New("cooking time below minimum")
	ErrAmountTooSmall      = errors.New("ingredient amount below minimum")
	ErrDuplicateIngredient = errors.New("duplicate ingredient in recipe")
	ErrAlreadyFavorited    = errors.New("recipe already in favorites")
	ErrNotFavorited        = errors.New("recipe not in favorites")
	ErrAlreadyInCart       = errors.New("recipe already in shopping cart")
	ErrNotInCart           = errors.New("recipe not in shopping cart")
	ErrInvalidImage        = errors.New("invalid image data")
)

type (
	RecipeIngredientRequest struct {
		ID     string `json:"id" validate:"required,uuid"`
		Amount int    `json:"amount" validate:"required,min=1"`
	}

	CreateRecipeRequest struct {
		Name        string                    `json:"name" validate:"required,max=200"`
		Image       string                    `json:"image" validate:"required"`
		Text        string                    `json:"text" validate:"required"`
		CookingTime int                       `json:"cooking_time" validate:"required,min=1"`
		Tags        []string                  `json:"tags" validate:"required,min=1,dive,uuid"`
		Ingredients []RecipeIngredientRequest `json:"ingredients" validate:"required,min=1,dive"`
	}

	UpdateRecipeRequest struct {
		Name        string                    `json:"name" validate:"omitempty,max=200"`
		Image       string                    `json:"image" validate:"omitempty"`
		Text        string                    `json:"text" validate:"omitempty"`
		CookingTime int                       `json:"cooking_time" validate:"omitempty,min=1"`
		Tags        []string                  `json:"tags" validate:"omitempty,dive,uuid"`
		Ingredients []RecipeIngredientRequest `json:"ingredients" validate:"omitempty,dive"`
	}

	// RecipeFilter carries the list query parameters. RequesterID is empty
	// for anonymous requests, which disables the favorited/in-cart filters.
	RecipeFilter struct {
		Tags             []string
		AuthorID         string
		IsFavorited      bool
		IsInShoppingCart bool
		RequesterID      string
		Page             int
		Limit            int
	}

	RecipeIngredientResponse struct {
		ID              string `json:"id"`
		Name            string `json:"name"`
		MeasurementUnit string `json:"measurement_unit"`
		Amount          int    `json:"amount"`
	}

	RecipeResponse struct {
		ID               string                     `json:"id"`
		Author           UserResponse               `json:"author"`
		Tags             []TagResponse              `json:"tags"`
		Ingredients      []RecipeIngredientResponse `json:"ingredients"`
		Name             string                     `json:"name"`
		Image            string                     `json:"image,omitempty"`
		Text             string                     `json:"text"`
		CookingTime      int                        `json:"cooking_time"`
		IsFavorited      bool                       `json:"is_favorited"`
		IsInShoppingCart bool                       `json:"is_in_shopping_cart"`
		CreatedAt        time.Time                  `json:"created_at"`
	}

	// RecipeShortResponse is the compact shape nested in subscription and
	// membership responses.
	RecipeShortResponse struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Image       string `json:"image,omitempty"`
		CookingTime int    `json:"cooking_time"`
	}

	// ShoppingListLine is one aggregated ingredient across the cart.
	ShoppingListLine struct {
		Name            string
		MeasurementUnit string
		Total           int
	}
)
