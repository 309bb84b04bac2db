package follow

import (
	"Foodgram-Backend/domain"
	"Foodgram-Backend/entities"
	"context"
	"errors"

	"gorm.io/gorm"
)

type (
	FollowService interface {
		Follow(ctx context.Context, userID, targetID string) (domain.SubscriptionResponse, error)
		Unfollow(ctx context.Context, userID, targetID string) error
		GetSubscriptions(ctx context.Context, userID string, recipesLimit int) ([]domain.SubscriptionResponse, error)
	}

	followService struct {
		followRepository FollowRepository
	}
)

func NewFollowService(followRepository FollowRepository) FollowService {
	return &followService{followRepository: followRepository}
}

func (s *followService) Follow(ctx context.Context, userID, targetID string) (domain.SubscriptionResponse, error) {
	if userID == targetID {
		return domain.SubscriptionResponse{}, domain.ErrSelfFollow
	}

	target, err := s.followRepository.GetUserByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.SubscriptionResponse{}, domain.ErrUserNotFound
		}
		return domain.SubscriptionResponse{}, err
	}

	following, err := s.followRepository.IsFollowing(ctx, userID, targetID)
	if err != nil {
		return domain.SubscriptionResponse{}, err
	}
	if following {
		return domain.SubscriptionResponse{}, domain.ErrAlreadyFollowing
	}

	if err := s.followRepository.CreateFollow(ctx, userID, targetID); err != nil {
		// a concurrent follow can still hit the unique index
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.SubscriptionResponse{}, domain.ErrAlreadyFollowing
		}
		return domain.SubscriptionResponse{}, err
	}

	return s.toSubscriptionResponse(ctx, target, 0)
}

func (s *followService) Unfollow(ctx context.Context, userID, targetID string) error {
	if err := s.followRepository.DeleteFollow(ctx, userID, targetID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotFollowing
		}
		return err
	}
	return nil
}

func (s *followService) GetSubscriptions(ctx context.Context, userID string, recipesLimit int) ([]domain.SubscriptionResponse, error) {
	authors, err := s.followRepository.GetFollowing(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := make([]domain.SubscriptionResponse, 0, len(authors))
	for _, author := range authors {
		res, err := s.toSubscriptionResponse(ctx, author, recipesLimit)
		if err != nil {
			return nil, err
		}
		result = append(result, res)
	}

	return result, nil
}

func (s *followService) toSubscriptionResponse(ctx context.Context, author *entities.User, recipesLimit int) (domain.SubscriptionResponse, error) {
	recipes, err := s.followRepository.GetRecipesByAuthor(ctx, author.ID.String(), recipesLimit)
	if err != nil {
		return domain.SubscriptionResponse{}, err
	}

	count, err := s.followRepository.CountRecipesByAuthor(ctx, author.ID.String())
	if err != nil {
		return domain.SubscriptionResponse{}, err
	}

	short := make([]domain.RecipeShortResponse, 0, len(recipes))
	for _, recipe := range recipes {
		short = append(short, domain.RecipeShortResponse{
			ID:          recipe.ID.String(),
			Name:        recipe.Name,
			Image:       recipe.ImageURL,
			CookingTime: recipe.CookingTime,
		})
	}

	return domain.SubscriptionResponse{
		ID:           author.ID.String(),
		Email:        author.Email,
		Username:     author.Username,
		FirstName:    author.FirstName,
		LastName:     author.LastName,
		IsSubscribed: true,
		Recipes:      short,
		RecipesCount: count,
	}, nil
}
