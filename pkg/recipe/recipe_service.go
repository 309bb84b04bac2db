package recipe

import (
	"Foodgram-Backend/domain"
	"Foodgram-Backend/entities"
	"Foodgram-Backend/internal/utils/storage"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type (
	RecipeService interface {
		CreateRecipe(ctx context.Context, req domain.CreateRecipeRequest, userID string) (domain.RecipeResponse, error)
		UpdateRecipe(ctx context.Context, recipeID string, req domain.UpdateRecipeRequest, userID string) (domain.RecipeResponse, error)
		DeleteRecipe(ctx context.Context, recipeID string, userID string) error
		GetRecipeDetail(ctx context.Context, recipeID string, requesterID string) (domain.RecipeResponse, error)
		GetRecipes(ctx context.Context, filter domain.RecipeFilter) ([]domain.RecipeResponse, int64, error)

		FavoriteRecipe(ctx context.Context, recipeID string, userID string) (domain.RecipeShortResponse, error)
		UnfavoriteRecipe(ctx context.Context, recipeID string, userID string) error
		AddToShoppingCart(ctx context.Context, recipeID string, userID string) (domain.RecipeShortResponse, error)
		RemoveFromShoppingCart(ctx context.Context, recipeID string, userID string) error
		DownloadShoppingCart(ctx context.Context, userID string) (string, error)
	}

	// Config carries the validation minimums so they are injected rather
	// than read from globals inside the service.
	Config struct {
		MinCookingTime int
		MinAmount      int
	}

	recipeService struct {
		recipeRepository RecipeRepository
		s3               storage.AwsS3
		config           Config
	}
)

func NewRecipeService(recipeRepository RecipeRepository, s3 storage.AwsS3, config Config) RecipeService {
	if config.MinCookingTime < 1 {
		config.MinCookingTime = 1
	}
	if config.MinAmount < 1 {
		config.MinAmount = 1
	}
	return &recipeService{
		recipeRepository: recipeRepository,
		s3:               s3,
		config:           config,
	}
}

// validateIngredients rejects duplicate ingredient ids and too-small amounts
// before anything is written.
func (s *recipeService) validateIngredients(reqs []domain.RecipeIngredientRequest) ([]*entities.RecipeIngredient, error) {
	seen := make(map[uuid.UUID]bool, len(reqs))
	ingredients := make([]*entities.RecipeIngredient, 0, len(reqs))

	for _, req := range reqs {
		ingredientID, err := uuid.Parse(req.ID)
		if err != nil {
			return nil, domain.ErrParseUUID
		}
		if seen[ingredientID] {
			return nil, domain.ErrDuplicateIngredient
		}
		seen[ingredientID] = true

		if req.Amount < s.config.MinAmount {
			return nil, domain.ErrAmountTooSmall
		}

		ingredients = append(ingredients, &entities.RecipeIngredient{
			IngredientID: ingredientID,
			Amount:       req.Amount,
		})
	}

	return ingredients, nil
}

// dedupeTags keeps the first occurrence of each tag id.
func dedupeTags(ids []string) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]bool, len(ids))
	tagIDs := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		tagID, err := uuid.Parse(id)
		if err != nil {
			return nil, domain.ErrParseUUID
		}
		if seen[tagID] {
			continue
		}
		seen[tagID] = true
		tagIDs = append(tagIDs, tagID)
	}
	return tagIDs, nil
}

func (s *recipeService) checkTagsExist(ctx context.Context, tagIDs []uuid.UUID) error {
	tags, err := s.recipeRepository.GetTagsByIDs(ctx, tagIDs)
	if err != nil {
		return err
	}
	if len(tags) != len(tagIDs) {
		return domain.ErrTagNotFound
	}
	return nil
}

func (s *recipeService) checkIngredientsExist(ctx context.Context, ingredients []*entities.RecipeIngredient) error {
	ids := make([]uuid.UUID, 0, len(ingredients))
	for _, ingredient := range ingredients {
		ids = append(ids, ingredient.IngredientID)
	}
	found, err := s.recipeRepository.GetIngredientsByIDs(ctx, ids)
	if err != nil {
		return err
	}
	if len(found) != len(ids) {
		return domain.ErrIngredientNotFound
	}
	return nil
}

func (s *recipeService) CreateRecipe(ctx context.Context, req domain.CreateRecipeRequest, userID string) (domain.RecipeResponse, error) {
	authorID, err := uuid.Parse(userID)
	if err != nil {
		return domain.RecipeResponse{}, domain.ErrParseUUID
	}

	if req.CookingTime < s.config.MinCookingTime {
		return domain.RecipeResponse{}, domain.ErrCookingTimeTooShort
	}

	ingredients, err := s.validateIngredients(req.Ingredients)
	if err != nil {
		return domain.RecipeResponse{}, err
	}

	tagIDs, err := dedupeTags(req.Tags)
	if err != nil {
		return domain.RecipeResponse{}, err
	}

	if err := s.checkTagsExist(ctx, tagIDs); err != nil {
		return domain.RecipeResponse{}, err
	}
	if err := s.checkIngredientsExist(ctx, ingredients); err != nil {
		return domain.RecipeResponse{}, err
	}

	imageURL, err := s.s3.UploadBase64Image(ctx, req.Image, "recipes/images")
	if err != nil {
		return domain.RecipeResponse{}, err
	}

	recipe := entities.Recipe{
		AuthorID:    authorID,
		Name:        req.Name,
		ImageURL:    imageURL,
		Text:        req.Text,
		CookingTime: req.CookingTime,
	}

	if err := s.recipeRepository.CreateRecipe(ctx, &recipe, tagIDs, ingredients); err != nil {
		return domain.RecipeResponse{}, err
	}

	created, err := s.recipeRepository.GetRecipeByID(ctx, recipe.ID.String())
	if err != nil {
		return domain.RecipeResponse{}, err
	}

	return s.toRecipeResponse(ctx, created, userID)
}

func (s *recipeService) UpdateRecipe(ctx context.Context, recipeID string, req domain.UpdateRecipeRequest, userID string) (domain.RecipeResponse, error) {
	recipe, err := s.recipeRepository.GetRecipeByID(ctx, recipeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.RecipeResponse{}, domain.ErrRecipeNotFound
		}
		return domain.RecipeResponse{}, err
	}

	if recipe.AuthorID.String() != userID {
		return domain.RecipeResponse{}, domain.ErrNotRecipeAuthor
	}

	if req.Name != "" {
		recipe.Name = req.Name
	}
	if req.Text != "" {
		recipe.Text = req.Text
	}
	if req.CookingTime != 0 {
		if req.CookingTime < s.config.MinCookingTime {
			return domain.RecipeResponse{}, domain.ErrCookingTimeTooShort
		}
		recipe.CookingTime = req.CookingTime
	}
	if req.Image != "" {
		imageURL, err := s.s3.UploadBase64Image(ctx, req.Image, "recipes/images")
		if err != nil {
			return domain.RecipeResponse{}, err
		}
		recipe.ImageURL = imageURL
	}

	// nil means "leave that association set alone"; a present list replaces
	// the whole set.
	var tagIDs []uuid.UUID
	if req.Tags != nil {
		tagIDs, err = dedupeTags(req.Tags)
		if err != nil {
			return domain.RecipeResponse{}, err
		}
		if err := s.checkTagsExist(ctx, tagIDs); err != nil {
			return domain.RecipeResponse{}, err
		}
	}

	var ingredients []*entities.RecipeIngredient
	if req.Ingredients != nil {
		ingredients, err = s.validateIngredients(req.Ingredients)
		if err != nil {
			return domain.RecipeResponse{}, err
		}
		if err := s.checkIngredientsExist(ctx, ingredients); err != nil {
			return domain.RecipeResponse{}, err
		}
	}

	if err := s.recipeRepository.UpdateRecipe(ctx, recipe, tagIDs, ingredients); err != nil {
		return domain.RecipeResponse{}, err
	}

	updated, err := s.recipeRepository.GetRecipeByID(ctx, recipeID)
	if err != nil {
		return domain.RecipeResponse{}, err
	}

	return s.toRecipeResponse(ctx, updated, userID)
}

func (s *recipeService) DeleteRecipe(ctx context.Context, recipeID string, userID string) error {
	recipe, err := s.recipeRepository.GetRecipeByID(ctx, recipeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrRecipeNotFound
		}
		return err
	}

	if recipe.AuthorID.String() != userID {
		return domain.ErrNotRecipeAuthor
	}

	return s.recipeRepository.DeleteRecipe(ctx, recipeID)
}

func (s *recipeService) GetRecipeDetail(ctx context.Context, recipeID string, requesterID string) (domain.RecipeResponse, error) {
	recipe, err := s.recipeRepository.GetRecipeByID(ctx, recipeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.RecipeResponse{}, domain.ErrRecipeNotFound
		}
		return domain.RecipeResponse{}, err
	}

	return s.toRecipeResponse(ctx, recipe, requesterID)
}

func (s *recipeService) GetRecipes(ctx context.Context, filter domain.RecipeFilter) ([]domain.RecipeResponse, int64, error) {
	// favorited/in-cart filters only make sense for an authenticated
	// requester; anonymous requests with these flags get an empty page.
	if filter.RequesterID == "" && (filter.IsFavorited || filter.IsInShoppingCart) {
		return []domain.RecipeResponse{}, 0, nil
	}

	recipes, count, err := s.recipeRepository.GetRecipes(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	result := make([]domain.RecipeResponse, 0, len(recipes))
	for _, recipe := range recipes {
		res, err := s.toRecipeResponse(ctx, recipe, filter.RequesterID)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, res)
	}

	return result, count, nil
}

func (s *recipeService) FavoriteRecipe(ctx context.Context, recipeID string, userID string) (domain.RecipeShortResponse, error) {
	recipe, err := s.recipeRepository.GetRecipeByID(ctx, recipeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.RecipeShortResponse{}, domain.ErrRecipeNotFound
		}
		return domain.RecipeShortResponse{}, err
	}

	favorited, err := s.recipeRepository.IsFavorited(ctx, userID, recipeID)
	if err != nil {
		return domain.RecipeShortResponse{}, err
	}
	if favorited {
		return domain.RecipeShortResponse{}, domain.ErrAlreadyFavorited
	}

	if err := s.recipeRepository.AddFavorite(ctx, userID, recipeID); err != nil {
		// a concurrent add can still hit the unique index
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.RecipeShortResponse{}, domain.ErrAlreadyFavorited
		}
		return domain.RecipeShortResponse{}, err
	}

	return toRecipeShortResponse(recipe), nil
}

func (s *recipeService) UnfavoriteRecipe(ctx context.Context, recipeID string, userID string) error {
	if err := s.recipeRepository.RemoveFavorite(ctx, userID, recipeID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotFavorited
		}
		return err
	}
	return nil
}

func (s *recipeService) AddToShoppingCart(ctx context.Context, recipeID string, userID string) (domain.RecipeShortResponse, error) {
	recipe, err := s.recipeRepository.GetRecipeByID(ctx, recipeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.RecipeShortResponse{}, domain.ErrRecipeNotFound
		}
		return domain.RecipeShortResponse{}, err
	}

	inCart, err := s.recipeRepository.IsInShoppingCart(ctx, userID, recipeID)
	if err != nil {
		return domain.RecipeShortResponse{}, err
	}
	if inCart {
		return domain.RecipeShortResponse{}, domain.ErrAlreadyInCart
	}

	if err := s.recipeRepository.AddShoppingCartItem(ctx, userID, recipeID); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.RecipeShortResponse{}, domain.ErrAlreadyInCart
		}
		return domain.RecipeShortResponse{}, err
	}

	return toRecipeShortResponse(recipe), nil
}

func (s *recipeService) RemoveFromShoppingCart(ctx context.Context, recipeID string, userID string) error {
	if err := s.recipeRepository.RemoveShoppingCartItem(ctx, userID, recipeID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotInCart
		}
		return err
	}
	return nil
}

// DownloadShoppingCart aggregates the ingredient rows of every recipe in the
// user's cart into one line per distinct ingredient, amounts summed.
func (s *recipeService) DownloadShoppingCart(ctx context.Context, userID string) (string, error) {
	rows, err := s.recipeRepository.GetShoppingCartIngredients(ctx, userID)
	if err != nil {
		return "", err
	}

	lines := buildShoppingList(rows)

	var sb strings.Builder
	for _, line := range lines {
		sb.WriteString(fmt.Sprintf("%s - %d %s\n", line.Name, line.Total, line.MeasurementUnit))
	}
	return sb.String(), nil
}

// buildShoppingList groups by ingredient and sums amounts. Rows arrive
// ordered by ingredient id, so first-occurrence order is ingredient-id order.
func buildShoppingList(rows []*entities.RecipeIngredient) []domain.ShoppingListLine {
	totals := make(map[uuid.UUID]int, len(rows))
	order := make([]uuid.UUID, 0, len(rows))
	names := make(map[uuid.UUID]*entities.Ingredient, len(rows))

	for _, row := range rows {
		if _, ok := totals[row.IngredientID]; !ok {
			order = append(order, row.IngredientID)
			names[row.IngredientID] = row.Ingredient
		}
		totals[row.IngredientID] += row.Amount
	}

	lines := make([]domain.ShoppingListLine, 0, len(order))
	for _, id := range order {
		ingredient := names[id]
		if ingredient == nil {
			continue
		}
		lines = append(lines, domain.ShoppingListLine{
			Name:            ingredient.Name,
			MeasurementUnit: ingredient.MeasurementUnit,
			Total:           totals[id],
		})
	}
	return lines
}

func toRecipeShortResponse(recipe *entities.Recipe) domain.RecipeShortResponse {
	return domain.RecipeShortResponse{
		ID:          recipe.ID.String(),
		Name:        recipe.Name,
		Image:       recipe.ImageURL,
		CookingTime: recipe.CookingTime,
	}
}

func (s *recipeService) toRecipeResponse(ctx context.Context, recipe *entities.Recipe, requesterID string) (domain.RecipeResponse, error) {
	isFavorited := false
	isInCart := false
	isSubscribed := false
	if requesterID != "" {
		var err error
		if isFavorited, err = s.recipeRepository.IsFavorited(ctx, requesterID, recipe.ID.String()); err != nil {
			return domain.RecipeResponse{}, err
		}
		if isInCart, err = s.recipeRepository.IsInShoppingCart(ctx, requesterID, recipe.ID.String()); err != nil {
			return domain.RecipeResponse{}, err
		}
		if isSubscribed, err = s.recipeRepository.IsSubscribed(ctx, requesterID, recipe.AuthorID.String()); err != nil {
			return domain.RecipeResponse{}, err
		}
	}

	tags := make([]domain.TagResponse, 0, len(recipe.Tags))
	for _, tag := range recipe.Tags {
		tags = append(tags, domain.TagResponse{
			ID:    tag.ID.String(),
			Name:  tag.Name,
			Color: tag.Color,
			Slug:  tag.Slug,
		})
	}

	ingredients := make([]domain.RecipeIngredientResponse, 0, len(recipe.RecipeIngredients))
	for _, row := range recipe.RecipeIngredients {
		res := domain.RecipeIngredientResponse{
			ID:     row.IngredientID.String(),
			Amount: row.Amount,
		}
		if row.Ingredient != nil {
			res.Name = row.Ingredient.Name
			res.MeasurementUnit = row.Ingredient.MeasurementUnit
		}
		ingredients = append(ingredients, res)
	}

	author := domain.UserResponse{
		ID:           recipe.AuthorID.String(),
		IsSubscribed: isSubscribed,
	}
	if recipe.Author != nil {
		author.Email = recipe.Author.Email
		author.Username = recipe.Author.Username
		author.FirstName = recipe.Author.FirstName
		author.LastName = recipe.Author.LastName
	}

	return domain.RecipeResponse{
		ID:               recipe.ID.String(),
		Author:           author,
		Tags:             tags,
		Ingredients:      ingredients,
		Name:             recipe.Name,
		Image:            recipe.ImageURL,
		Text:             recipe.Text,
		CookingTime:      recipe.CookingTime,
		IsFavorited:      isFavorited,
		IsInShoppingCart: isInCart,
		CreatedAt:        recipe.CreatedAt,
	}, nil
}
