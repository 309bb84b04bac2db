package recipe

import (
	"Foodgram-Backend/domain"
	"Foodgram-Backend/entities"
	"Foodgram-Backend/internal/utils/storage"
	"context"
	"encoding/base64"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeRecipeRepository struct {
	recipes           map[uuid.UUID]*entities.Recipe
	recipeTags        map[uuid.UUID][]uuid.UUID
	recipeIngredients map[uuid.UUID][]*entities.RecipeIngredient
	tags              map[uuid.UUID]*entities.Tag
	ingredients       map[uuid.UUID]*entities.Ingredient
	favorites         map[string]bool
	cart              map[string]bool
	follows           map[string]bool
}

func newFakeRecipeRepository() *fakeRecipeRepository {
	return &fakeRecipeRepository{
		recipes:           make(map[uuid.UUID]*entities.Recipe),
		recipeTags:        make(map[uuid.UUID][]uuid.UUID),
		recipeIngredients: make(map[uuid.UUID][]*entities.RecipeIngredient),
		tags:              make(map[uuid.UUID]*entities.Tag),
		ingredients:       make(map[uuid.UUID]*entities.Ingredient),
		favorites:         make(map[string]bool),
		cart:              make(map[string]bool),
		follows:           make(map[string]bool),
	}
}

func pairKey(userID, recipeID string) string {
	return userID + "|" + recipeID
}

func (f *fakeRecipeRepository) CreateRecipe(_ context.Context, recipe *entities.Recipe, tagIDs []uuid.UUID, ingredients []*entities.RecipeIngredient) error {
	recipe.ID = uuid.New()
	stored := *recipe
	f.recipes[recipe.ID] = &stored
	f.recipeTags[recipe.ID] = append([]uuid.UUID{}, tagIDs...)
	for _, ingredient := range ingredients {
		row := *ingredient
		row.RecipeID = recipe.ID
		f.recipeIngredients[recipe.ID] = append(f.recipeIngredients[recipe.ID], &row)
	}
	return nil
}

func (f *fakeRecipeRepository) UpdateRecipe(_ context.Context, recipe *entities.Recipe, tagIDs []uuid.UUID, ingredients []*entities.RecipeIngredient) error {
	stored := *recipe
	stored.Tags = nil
	stored.RecipeIngredients = nil
	f.recipes[recipe.ID] = &stored
	if tagIDs != nil {
		f.recipeTags[recipe.ID] = append([]uuid.UUID{}, tagIDs...)
	}
	if ingredients != nil {
		rows := make([]*entities.RecipeIngredient, 0, len(ingredients))
		for _, ingredient := range ingredients {
			row := *ingredient
			row.RecipeID = recipe.ID
			rows = append(rows, &row)
		}
		f.recipeIngredients[recipe.ID] = rows
	}
	return nil
}

func (f *fakeRecipeRepository) DeleteRecipe(_ context.Context, id string) error {
	recipeID, err := uuid.Parse(id)
	if err != nil {
		return err
	}
	delete(f.recipes, recipeID)
	delete(f.recipeTags, recipeID)
	delete(f.recipeIngredients, recipeID)
	for key := range f.favorites {
		if key[len(key)-len(id):] == id {
			delete(f.favorites, key)
		}
	}
	for key := range f.cart {
		if key[len(key)-len(id):] == id {
			delete(f.cart, key)
		}
	}
	return nil
}

func (f *fakeRecipeRepository) GetRecipeByID(_ context.Context, id string) (*entities.Recipe, error) {
	recipeID, err := uuid.Parse(id)
	if err != nil {
		return nil, gorm.ErrRecordNotFound
	}
	stored, ok := f.recipes[recipeID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}

	recipe := *stored
	recipe.Tags = nil
	for _, tagID := range f.recipeTags[recipeID] {
		recipe.Tags = append(recipe.Tags, f.tags[tagID])
	}
	recipe.RecipeIngredients = nil
	for _, row := range f.recipeIngredients[recipeID] {
		withIngredient := *row
		withIngredient.Ingredient = f.ingredients[row.IngredientID]
		recipe.RecipeIngredients = append(recipe.RecipeIngredients, &withIngredient)
	}
	return &recipe, nil
}

func (f *fakeRecipeRepository) GetRecipes(ctx context.Context, filter domain.RecipeFilter) ([]*entities.Recipe, int64, error) {
	var result []*entities.Recipe
	for id := range f.recipes {
		recipe, err := f.GetRecipeByID(ctx, id.String())
		if err != nil {
			return nil, 0, err
		}
		if filter.AuthorID != "" && recipe.AuthorID.String() != filter.AuthorID {
			continue
		}
		result = append(result, recipe)
	}
	return result, int64(len(result)), nil
}

func (f *fakeRecipeRepository) GetTagsByIDs(_ context.Context, ids []uuid.UUID) ([]*entities.Tag, error) {
	var tags []*entities.Tag
	for _, id := range ids {
		if tag, ok := f.tags[id]; ok {
			tags = append(tags, tag)
		}
	}
	return tags, nil
}

func (f *fakeRecipeRepository) GetIngredientsByIDs(_ context.Context, ids []uuid.UUID) ([]*entities.Ingredient, error) {
	var ingredients []*entities.Ingredient
	for _, id := range ids {
		if ingredient, ok := f.ingredients[id]; ok {
			ingredients = append(ingredients, ingredient)
		}
	}
	return ingredients, nil
}

func (f *fakeRecipeRepository) IsFavorited(_ context.Context, userID, recipeID string) (bool, error) {
	return f.favorites[pairKey(userID, recipeID)], nil
}

func (f *fakeRecipeRepository) AddFavorite(_ context.Context, userID, recipeID string) error {
	key := pairKey(userID, recipeID)
	if f.favorites[key] {
		return gorm.ErrDuplicatedKey
	}
	f.favorites[key] = true
	return nil
}

func (f *fakeRecipeRepository) RemoveFavorite(_ context.Context, userID, recipeID string) error {
	key := pairKey(userID, recipeID)
	if !f.favorites[key] {
		return gorm.ErrRecordNotFound
	}
	delete(f.favorites, key)
	return nil
}

func (f *fakeRecipeRepository) IsInShoppingCart(_ context.Context, userID, recipeID string) (bool, error) {
	return f.cart[pairKey(userID, recipeID)], nil
}

func (f *fakeRecipeRepository) AddShoppingCartItem(_ context.Context, userID, recipeID string) error {
	key := pairKey(userID, recipeID)
	if f.cart[key] {
		return gorm.ErrDuplicatedKey
	}
	f.cart[key] = true
	return nil
}

func (f *fakeRecipeRepository) RemoveShoppingCartItem(_ context.Context, userID, recipeID string) error {
	key := pairKey(userID, recipeID)
	if !f.cart[key] {
		return gorm.ErrRecordNotFound
	}
	delete(f.cart, key)
	return nil
}

func (f *fakeRecipeRepository) GetShoppingCartIngredients(_ context.Context, userID string) ([]*entities.RecipeIngredient, error) {
	var rows []*entities.RecipeIngredient
	for recipeID, ingredients := range f.recipeIngredients {
		if !f.cart[pairKey(userID, recipeID.String())] {
			continue
		}
		for _, row := range ingredients {
			withIngredient := *row
			withIngredient.Ingredient = f.ingredients[row.IngredientID]
			rows = append(rows, &withIngredient)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].IngredientID.String() < rows[j].IngredientID.String()
	})
	return rows, nil
}

func (f *fakeRecipeRepository) IsSubscribed(_ context.Context, userID, authorID string) (bool, error) {
	return f.follows[pairKey(userID, authorID)], nil
}

type fakeS3 struct{}

func (fakeS3) UploadBase64Image(_ context.Context, dataURI string, folder string) (string, error) {
	_, ext, err := storage.DecodeBase64Image(dataURI)
	if err != nil {
		return "", err
	}
	return "https://cdn.test/" + folder + "/image." + ext, nil
}

func testDataURI() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("png-bytes"))
}

func (f *fakeRecipeRepository) addTag(name string) *entities.Tag {
	tag := &entities.Tag{ID: uuid.New(), Name: name, Color: "#" + name, Slug: name}
	f.tags[tag.ID] = tag
	return tag
}

func (f *fakeRecipeRepository) addIngredient(name, unit string) *entities.Ingredient {
	ingredient := &entities.Ingredient{ID: uuid.New(), Name: name, MeasurementUnit: unit}
	f.ingredients[ingredient.ID] = ingredient
	return ingredient
}

func newTestService(repo *fakeRecipeRepository) RecipeService {
	return NewRecipeService(repo, fakeS3{}, Config{MinCookingTime: 1, MinAmount: 1})
}

func validCreateRequest(repo *fakeRecipeRepository) domain.CreateRecipeRequest {
	tag := repo.addTag("breakfast")
	ingredient := repo.addIngredient("Flour", "g")
	return domain.CreateRecipeRequest{
		Name:        "Pancakes",
		Image:       testDataURI(),
		Text:        "Mix and fry.",
		CookingTime: 20,
		Tags:        []string{tag.ID.String()},
		Ingredients: []domain.RecipeIngredientRequest{
			{ID: ingredient.ID.String(), Amount: 200},
		},
	}
}

func TestCreateRecipe(t *testing.T) {
	repo := newFakeRecipeRepository()
	service := newTestService(repo)
	userID := uuid.New().String()

	res, err := service.CreateRecipe(context.Background(), validCreateRequest(repo), userID)
	require.NoError(t, err)

	assert.Equal(t, "Pancakes", res.Name)
	assert.Len(t, res.Tags, 1)
	assert.Len(t, res.Ingredients, 1)
	assert.Equal(t, 200, res.Ingredients[0].Amount)
	assert.Equal(t, "Flour", res.Ingredients[0].Name)
	assert.Contains(t, res.Image, "https://cdn.test/")
}

func TestCreateRecipeRejectsShortCookingTime(t *testing.T) {
	repo := newFakeRecipeRepository()
	service := NewRecipeService(repo, fakeS3{}, Config{MinCookingTime: 5, MinAmount: 1})

	req := validCreateRequest(repo)
	req.CookingTime = 4

	_, err := service.CreateRecipe(context.Background(), req, uuid.New().String())
	require.ErrorIs(t, err, domain.ErrCookingTimeTooShort)
	assert.Empty(t, repo.recipes)
}

func TestCreateRecipeRejectsDuplicateIngredient(t *testing.T) {
	repo := newFakeRecipeRepository()
	service := newTestService(repo)

	req := validCreateRequest(repo)
	req.Ingredients = append(req.Ingredients, domain.RecipeIngredientRequest{
		ID:     req.Ingredients[0].ID,
		Amount: 50,
	})

	_, err := service.CreateRecipe(context.Background(), req, uuid.New().String())
	require.ErrorIs(t, err, domain.ErrDuplicateIngredient)

	// rejected create must leave nothing behind
	assert.Empty(t, repo.recipes)
	assert.Empty(t, repo.recipeIngredients)
}

func TestCreateRecipeRejectsSmallAmount(t *testing.T) {
	repo := newFakeRecipeRepository()
	service := NewRecipeService(repo, fakeS3{}, Config{MinCookingTime: 1, MinAmount: 10})

	req := validCreateRequest(repo)
	req.Ingredients[0].Amount = 9

	_, err := service.CreateRecipe(context.Background(), req, uuid.New().String())
	require.ErrorIs(t, err, domain.ErrAmountTooSmall)
	assert.Empty(t, repo.recipes)
}

func TestCreateRecipeRejectsUnknownTag(t *testing.T) {
	repo := newFakeRecipeRepository()
	service := newTestService(repo)

	req := validCreateRequest(repo)
	req.Tags = []string{uuid.New().String()}

	_, err := service.CreateRecipe(context.Background(), req, uuid.New().String())
	require.ErrorIs(t, err, domain.ErrTagNotFound)
}

func TestCreateRecipeDedupesTags(t *testing.T) {
	repo := newFakeRecipeRepository()
	service := newTestService(repo)

	req := validCreateRequest(repo)
	req.Tags = append(req.Tags, req.Tags[0])

	res, err := service.CreateRecipe(context.Background(), req, uuid.New().String())
	require.NoError(t, err)
	assert.Len(t, res.Tags, 1)
}

func TestUpdateRecipeReplacesTagSet(t *testing.T) {
	repo := newFakeRecipeRepository()
	service := newTestService(repo)
	userID := uuid.New().String()

	tag1 := repo.addTag("breakfast")
	tag2 := repo.addTag("lunch")
	tag3 := repo.addTag("dinner")
	ingredient := repo.addIngredient("Flour", "g")

	created, err := service.CreateRecipe(context.Background(), domain.CreateRecipeRequest{
		Name:        "Pancakes",
		Image:       testDataURI(),
		Text:        "Mix and fry.",
		CookingTime: 20,
		Tags:        []string{tag1.ID.String(), tag2.ID.String()},
		Ingredients: []domain.RecipeIngredientRequest{
			{ID: ingredient.ID.String(), Amount: 200},
		},
	}, userID)
	require.NoError(t, err)

	updated, err := service.UpdateRecipe(context.Background(), created.ID, domain.UpdateRecipeRequest{
		Tags: []string{tag2.ID.String(), tag3.ID.String()},
	}, userID)
	require.NoError(t, err)

	got := make([]string, 0, len(updated.Tags))
	for _, tag := range updated.Tags {
		got = append(got, tag.Name)
	}
	assert.ElementsMatch(t, []string{"lunch", "dinner"}, got)
}

func TestUpdateRecipeReplacesIngredients(t *testing.T) {
	repo := newFakeRecipeRepository()
	service := newTestService(repo)
	userID := uuid.New().String()

	created, err := service.CreateRecipe(context.Background(), validCreateRequest(repo), userID)
	require.NoError(t, err)

	milk := repo.addIngredient("Milk", "ml")
	updated, err := service.UpdateRecipe(context.Background(), created.ID, domain.UpdateRecipeRequest{
		Ingredients: []domain.RecipeIngredientRequest{
			{ID: milk.ID.String(), Amount: 300},
		},
	}, userID)
	require.NoError(t, err)

	require.Len(t, updated.Ingredients, 1)
	assert.Equal(t, "Milk", updated.Ingredients[0].Name)
	assert.Equal(t, 300, updated.Ingredients[0].Amount)
}

func TestUpdateRecipeKeepsFieldsWhenAbsent(t *testing.T) {
	repo := newFakeRecipeRepository()
	service := newTestService(repo)
	userID := uuid.New().String()

	created, err := service.CreateRecipe(context.Background(), validCreateRequest(repo), userID)
	require.NoError(t, err)

	updated, err := service.UpdateRecipe(context.Background(), created.ID, domain.UpdateRecipeRequest{
		Name: "Crepes",
	}, userID)
	require.NoError(t, err)

	assert.Equal(t, "Crepes", updated.Name)
	assert.Equal(t, created.Text, updated.Text)
	assert.Equal(t, created.CookingTime, updated.CookingTime)
	assert.Len(t, updated.Tags, 1)
	assert.Len(t, updated.Ingredients, 1)
}

func TestUpdateRecipeRejectsNonAuthor(t *testing.T) {
	repo := newFakeRecipeRepository()
	service := newTestService(repo)

	created, err := service.CreateRecipe(context.Background(), validCreateRequest(repo), uuid.New().String())
	require.NoError(t, err)

	_, err = service.UpdateRecipe(context.Background(), created.ID, domain.UpdateRecipeRequest{
		Name: "Stolen",
	}, uuid.New().String())
	require.ErrorIs(t, err, domain.ErrNotRecipeAuthor)
}

func TestDeleteRecipeRejectsNonAuthor(t *testing.T) {
	repo := newFakeRecipeRepository()
	service := newTestService(repo)

	created, err := service.CreateRecipe(context.Background(), validCreateRequest(repo), uuid.New().String())
	require.NoError(t, err)

	err = service.DeleteRecipe(context.Background(), created.ID, uuid.New().String())
	require.ErrorIs(t, err, domain.ErrNotRecipeAuthor)
}

func TestFavoriteLifecycle(t *testing.T) {
	repo := newFakeRecipeRepository()
	service := newTestService(repo)
	author := uuid.New().String()
	reader := uuid.New().String()

	created, err := service.CreateRecipe(context.Background(), validCreateRequest(repo), author)
	require.NoError(t, err)

	_, err = service.FavoriteRecipe(context.Background(), created.ID, reader)
	require.NoError(t, err)

	_, err = service.FavoriteRecipe(context.Background(), created.ID, reader)
	require.ErrorIs(t, err, domain.ErrAlreadyFavorited)

	require.NoError(t, service.UnfavoriteRecipe(context.Background(), created.ID, reader))

	err = service.UnfavoriteRecipe(context.Background(), created.ID, reader)
	require.ErrorIs(t, err, domain.ErrNotFavorited)
}

func TestFavoriteUnknownRecipe(t *testing.T) {
	repo := newFakeRecipeRepository()
	service := newTestService(repo)

	_, err := service.FavoriteRecipe(context.Background(), uuid.New().String(), uuid.New().String())
	require.ErrorIs(t, err, domain.ErrRecipeNotFound)
}

func TestShoppingCartLifecycle(t *testing.T) {
	repo := newFakeRecipeRepository()
	service := newTestService(repo)
	reader := uuid.New().String()

	created, err := service.CreateRecipe(context.Background(), validCreateRequest(repo), uuid.New().String())
	require.NoError(t, err)

	_, err = service.AddToShoppingCart(context.Background(), created.ID, reader)
	require.NoError(t, err)

	_, err = service.AddToShoppingCart(context.Background(), created.ID, reader)
	require.ErrorIs(t, err, domain.ErrAlreadyInCart)

	require.NoError(t, service.RemoveFromShoppingCart(context.Background(), created.ID, reader))

	err = service.RemoveFromShoppingCart(context.Background(), created.ID, reader)
	require.ErrorIs(t, err, domain.ErrNotInCart)
}

func TestDownloadShoppingCartSumsAmounts(t *testing.T) {
	repo := newFakeRecipeRepository()
	service := newTestService(repo)
	author := uuid.New().String()
	reader := uuid.New().String()

	tag := repo.addTag("dinner")
	flour := repo.addIngredient("Flour", "g")
	egg := repo.addIngredient("Egg", "pcs")
	milk := repo.addIngredient("Milk", "ml")

	recipeA, err := service.CreateRecipe(context.Background(), domain.CreateRecipeRequest{
		Name:        "Recipe A",
		Image:       testDataURI(),
		Text:        "A",
		CookingTime: 10,
		Tags:        []string{tag.ID.String()},
		Ingredients: []domain.RecipeIngredientRequest{
			{ID: flour.ID.String(), Amount: 200},
			{ID: egg.ID.String(), Amount: 2},
		},
	}, author)
	require.NoError(t, err)

	recipeB, err := service.CreateRecipe(context.Background(), domain.CreateRecipeRequest{
		Name:        "Recipe B",
		Image:       testDataURI(),
		Text:        "B",
		CookingTime: 10,
		Tags:        []string{tag.ID.String()},
		Ingredients: []domain.RecipeIngredientRequest{
			{ID: flour.ID.String(), Amount: 100},
			{ID: milk.ID.String(), Amount: 50},
		},
	}, author)
	require.NoError(t, err)

	_, err = service.AddToShoppingCart(context.Background(), recipeA.ID, reader)
	require.NoError(t, err)
	_, err = service.AddToShoppingCart(context.Background(), recipeB.ID, reader)
	require.NoError(t, err)

	list, err := service.DownloadShoppingCart(context.Background(), reader)
	require.NoError(t, err)

	assert.Contains(t, list, "Flour - 300 g\n")
	assert.Contains(t, list, "Egg - 2 pcs\n")
	assert.Contains(t, list, "Milk - 50 ml\n")
	// one line per distinct ingredient
	assert.Equal(t, 3, len(splitLines(list)))
}

func TestDownloadShoppingCartEmptyCart(t *testing.T) {
	repo := newFakeRecipeRepository()
	service := newTestService(repo)

	list, err := service.DownloadShoppingCart(context.Background(), uuid.New().String())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestBuildShoppingListOrderIndependent(t *testing.T) {
	flour := &entities.Ingredient{ID: uuid.New(), Name: "Flour", MeasurementUnit: "g"}

	forward := []*entities.RecipeIngredient{
		{IngredientID: flour.ID, Ingredient: flour, Amount: 200},
		{IngredientID: flour.ID, Ingredient: flour, Amount: 100},
	}
	backward := []*entities.RecipeIngredient{
		{IngredientID: flour.ID, Ingredient: flour, Amount: 100},
		{IngredientID: flour.ID, Ingredient: flour, Amount: 200},
	}

	assert.Equal(t, buildShoppingList(forward), buildShoppingList(backward))
	require.Len(t, buildShoppingList(forward), 1)
	assert.Equal(t, 300, buildShoppingList(forward)[0].Total)
}

func TestGetRecipesAnonymousMembershipFilter(t *testing.T) {
	repo := newFakeRecipeRepository()
	service := newTestService(repo)

	_, err := service.CreateRecipe(context.Background(), validCreateRequest(repo), uuid.New().String())
	require.NoError(t, err)

	// anonymous requester with a membership filter gets an empty page
	recipes, count, err := service.GetRecipes(context.Background(), domain.RecipeFilter{
		IsFavorited: true,
		Page:        1,
		Limit:       20,
	})
	require.NoError(t, err)
	assert.Empty(t, recipes)
	assert.Zero(t, count)
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	return lines
}
