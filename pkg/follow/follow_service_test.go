package follow

import (
	"Foodgram-Backend/domain"
	"Foodgram-Backend/entities"
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeFollowRepository struct {
	users   map[uuid.UUID]*entities.User
	follows map[string]bool
	recipes []*entities.Recipe
}

func newFakeFollowRepository() *fakeFollowRepository {
	return &fakeFollowRepository{
		users:   make(map[uuid.UUID]*entities.User),
		follows: make(map[string]bool),
	}
}

func followKey(userID, followingID string) string {
	return userID + "|" + followingID
}

func (f *fakeFollowRepository) addUser(username string) *entities.User {
	user := &entities.User{
		ID:       uuid.New(),
		Email:    username + "@example.com",
		Username: username,
	}
	f.users[user.ID] = user
	return user
}

func (f *fakeFollowRepository) addRecipe(authorID uuid.UUID, name string) {
	f.recipes = append(f.recipes, &entities.Recipe{
		ID:          uuid.New(),
		AuthorID:    authorID,
		Name:        name,
		CookingTime: 10,
	})
}

func (f *fakeFollowRepository) GetUserByID(_ context.Context, id string) (*entities.User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return nil, gorm.ErrRecordNotFound
	}
	user, ok := f.users[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (f *fakeFollowRepository) IsFollowing(_ context.Context, userID, followingID string) (bool, error) {
	return f.follows[followKey(userID, followingID)], nil
}

func (f *fakeFollowRepository) CreateFollow(_ context.Context, userID, followingID string) error {
	key := followKey(userID, followingID)
	if f.follows[key] {
		return gorm.ErrDuplicatedKey
	}
	f.follows[key] = true
	return nil
}

func (f *fakeFollowRepository) DeleteFollow(_ context.Context, userID, followingID string) error {
	key := followKey(userID, followingID)
	if !f.follows[key] {
		return gorm.ErrRecordNotFound
	}
	delete(f.follows, key)
	return nil
}

func (f *fakeFollowRepository) GetFollowing(_ context.Context, userID string) ([]*entities.User, error) {
	var users []*entities.User
	for _, user := range f.users {
		if f.follows[followKey(userID, user.ID.String())] {
			users = append(users, user)
		}
	}
	return users, nil
}

func (f *fakeFollowRepository) GetRecipesByAuthor(_ context.Context, authorID string, limit int) ([]*entities.Recipe, error) {
	var recipes []*entities.Recipe
	for _, recipe := range f.recipes {
		if recipe.AuthorID.String() != authorID {
			continue
		}
		recipes = append(recipes, recipe)
		if limit > 0 && len(recipes) == limit {
			break
		}
	}
	return recipes, nil
}

func (f *fakeFollowRepository) CountRecipesByAuthor(_ context.Context, authorID string) (int64, error) {
	var count int64
	for _, recipe := range f.recipes {
		if recipe.AuthorID.String() == authorID {
			count++
		}
	}
	return count, nil
}

func TestFollow(t *testing.T) {
	repo := newFakeFollowRepository()
	service := NewFollowService(repo)

	follower := repo.addUser("alice")
	author := repo.addUser("bob")
	repo.addRecipe(author.ID, "Soup")

	res, err := service.Follow(context.Background(), follower.ID.String(), author.ID.String())
	require.NoError(t, err)

	assert.Equal(t, author.ID.String(), res.ID)
	assert.True(t, res.IsSubscribed)
	assert.Equal(t, int64(1), res.RecipesCount)
}

func TestFollowRejectsSelf(t *testing.T) {
	repo := newFakeFollowRepository()
	service := NewFollowService(repo)

	user := repo.addUser("alice")

	_, err := service.Follow(context.Background(), user.ID.String(), user.ID.String())
	require.ErrorIs(t, err, domain.ErrSelfFollow)
}

func TestFollowRejectsUnknownUser(t *testing.T) {
	repo := newFakeFollowRepository()
	service := NewFollowService(repo)

	follower := repo.addUser("alice")

	_, err := service.Follow(context.Background(), follower.ID.String(), uuid.New().String())
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestFollowRejectsDuplicate(t *testing.T) {
	repo := newFakeFollowRepository()
	service := NewFollowService(repo)

	follower := repo.addUser("alice")
	author := repo.addUser("bob")

	_, err := service.Follow(context.Background(), follower.ID.String(), author.ID.String())
	require.NoError(t, err)

	_, err = service.Follow(context.Background(), follower.ID.String(), author.ID.String())
	require.ErrorIs(t, err, domain.ErrAlreadyFollowing)
}

func TestUnfollow(t *testing.T) {
	repo := newFakeFollowRepository()
	service := NewFollowService(repo)

	follower := repo.addUser("alice")
	author := repo.addUser("bob")

	_, err := service.Follow(context.Background(), follower.ID.String(), author.ID.String())
	require.NoError(t, err)

	require.NoError(t, service.Unfollow(context.Background(), follower.ID.String(), author.ID.String()))

	err = service.Unfollow(context.Background(), follower.ID.String(), author.ID.String())
	require.ErrorIs(t, err, domain.ErrNotFollowing)
}

func TestGetSubscriptionsRecipesLimit(t *testing.T) {
	repo := newFakeFollowRepository()
	service := NewFollowService(repo)

	follower := repo.addUser("alice")
	author := repo.addUser("bob")
	for i := 0; i < 5; i++ {
		repo.addRecipe(author.ID, fmt.Sprintf("Recipe %d", i))
	}

	_, err := service.Follow(context.Background(), follower.ID.String(), author.ID.String())
	require.NoError(t, err)

	limited, err := service.GetSubscriptions(context.Background(), follower.ID.String(), 3)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Len(t, limited[0].Recipes, 3)
	assert.Equal(t, int64(5), limited[0].RecipesCount)

	// zero limit means all recipes
	all, err := service.GetSubscriptions(context.Background(), follower.ID.String(), 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Len(t, all[0].Recipes, 5)
}
