package follow

import (
	"Foodgram-Backend/domain"
	"Foodgram-Backend/entities"
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type (
	FollowRepository interface {
		GetUserByID(ctx context.Context, id string) (*entities.User, error)
		IsFollowing(ctx context.Context, userID, followingID string) (bool, error)
		CreateFollow(ctx context.Context, userID, followingID string) error
		DeleteFollow(ctx context.Context, userID, followingID string) error
		GetFollowing(ctx context.Context, userID string) ([]*entities.User, error)
		GetRecipesByAuthor(ctx context.Context, authorID string, limit int) ([]*entities.Recipe, error)
		CountRecipesByAuthor(ctx context.Context, authorID string) (int64, error)
	}

	followRepository struct {
		db *gorm.DB
	}
)

func NewFollowRepository(db *gorm.DB) FollowRepository {
	return &followRepository{db: db}
}

func (r *followRepository) GetUserByID(ctx context.Context, id string) (*entities.User, error) {
	var user entities.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *followRepository) IsFollowing(ctx context.Context, userID, followingID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&entities.Follow{}).
		Where("user_id = ? AND following_id = ?", userID, followingID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *followRepository) CreateFollow(ctx context.Context, userID, followingID string) error {
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return domain.ErrParseUUID
	}
	followingUUID, err := uuid.Parse(followingID)
	if err != nil {
		return domain.ErrParseUUID
	}

	follow := entities.Follow{
		UserID:      userUUID,
		FollowingID: followingUUID,
	}
	return r.db.WithContext(ctx).Create(&follow).Error
}

func (r *followRepository) DeleteFollow(ctx context.Context, userID, followingID string) error {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND following_id = ?", userID, followingID).
		Delete(&entities.Follow{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *followRepository) GetFollowing(ctx context.Context, userID string) ([]*entities.User, error) {
	var users []*entities.User
	if err := r.db.WithContext(ctx).
		Joins("JOIN follows ON follows.following_id = users.id").
		Where("follows.user_id = ?", userID).
		Order("follows.created_at desc").
		Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// GetRecipesByAuthor returns the author's most recent recipes, all of them
// when limit is zero.
func (r *followRepository) GetRecipesByAuthor(ctx context.Context, authorID string, limit int) ([]*entities.Recipe, error) {
	var recipes []*entities.Recipe
	query := r.db.WithContext(ctx).
		Where("author_id = ?", authorID).
		Order("created_at desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&recipes).Error; err != nil {
		return nil, err
	}
	return recipes, nil
}

func (r *followRepository) CountRecipesByAuthor(ctx context.Context, authorID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&entities.Recipe{}).
		Where("author_id = ?", authorID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
