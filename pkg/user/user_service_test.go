package user

import (
	"Foodgram-Backend/domain"
	"Foodgram-Backend/entities"
	"context"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type fakeUserRepository struct {
	users   map[uuid.UUID]*entities.User
	follows map[string]bool
}

func newFakeUserRepository() *fakeUserRepository {
	return &fakeUserRepository{
		users:   make(map[uuid.UUID]*entities.User),
		follows: make(map[string]bool),
	}
}

func (f *fakeUserRepository) CreateUser(_ context.Context, user *entities.User) error {
	for _, existing := range f.users {
		if existing.Email == user.Email || existing.Username == user.Username {
			return gorm.ErrDuplicatedKey
		}
	}
	user.ID = uuid.New()
	stored := *user
	f.users[user.ID] = &stored
	return nil
}

func (f *fakeUserRepository) UpdateUser(_ context.Context, user *entities.User) error {
	stored := *user
	f.users[user.ID] = &stored
	return nil
}

func (f *fakeUserRepository) GetUserByID(_ context.Context, id string) (*entities.User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return nil, gorm.ErrRecordNotFound
	}
	user, ok := f.users[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *user
	return &copied, nil
}

func (f *fakeUserRepository) GetUserByEmail(_ context.Context, email string) (*entities.User, error) {
	for _, user := range f.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepository) GetUserByUsername(_ context.Context, username string) (*entities.User, error) {
	for _, user := range f.users {
		if user.Username == username {
			copied := *user
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepository) GetUsers(_ context.Context, page, limit int) ([]*entities.User, int64, error) {
	var users []*entities.User
	for _, user := range f.users {
		users = append(users, user)
	}
	return users, int64(len(users)), nil
}

func (f *fakeUserRepository) IsSubscribed(_ context.Context, userID, targetID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	return f.follows[userID+"|"+targetID], nil
}

// fakeJWTService hands out fixed tokens and replays whatever claims were
// put into the last verify-email token.
type fakeJWTService struct {
	verifyClaims map[string]any
}

func (f *fakeJWTService) GenerateTokenUser(userId string, role string) string {
	return "user-token-" + userId
}

func (f *fakeJWTService) ValidateTokenUser(token string) (*jwtlib.Token, error) {
	return nil, domain.ErrTokenInvalid
}

func (f *fakeJWTService) GetUserIDByToken(token string) (string, string, error) {
	return "", "", domain.ErrTokenInvalid
}

func (f *fakeJWTService) GenerateTokenVerifyEmail(data map[string]any, _ time.Duration) (string, error) {
	f.verifyClaims = data
	return "verify-token", nil
}

func (f *fakeJWTService) ValidateTokenVerifyEmail(token string) (jwtlib.MapClaims, error) {
	if token != "verify-token" {
		return jwtlib.MapClaims{}, domain.ErrTokenInvalid
	}
	claims := jwtlib.MapClaims{}
	for key, value := range f.verifyClaims {
		claims[key] = value
	}
	return claims, nil
}

func registerRequest(email, username string) domain.RegisterRequest {
	return domain.RegisterRequest{
		Email:     email,
		Username:  username,
		FirstName: "Test",
		LastName:  "User",
		Password:  "s3cretpwd",
	}
}

func TestRegister(t *testing.T) {
	repo := newFakeUserRepository()
	service := NewUserService(repo, &fakeJWTService{})

	res, err := service.Register(context.Background(), registerRequest("alice@example.com", "alice"))
	require.NoError(t, err)

	assert.Equal(t, "alice@example.com", res.Email)
	assert.Equal(t, domain.RoleUser, res.Role)

	stored, err := repo.GetUserByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cretpwd", stored.Password)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("s3cretpwd")))
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	repo := newFakeUserRepository()
	service := NewUserService(repo, &fakeJWTService{})

	_, err := service.Register(context.Background(), registerRequest("alice@example.com", "alice"))
	require.NoError(t, err)

	_, err = service.Register(context.Background(), registerRequest("alice@example.com", "alice2"))
	require.ErrorIs(t, err, domain.ErrEmailAlreadyExists)
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	repo := newFakeUserRepository()
	service := NewUserService(repo, &fakeJWTService{})

	_, err := service.Register(context.Background(), registerRequest("alice@example.com", "alice"))
	require.NoError(t, err)

	_, err = service.Register(context.Background(), registerRequest("other@example.com", "alice"))
	require.ErrorIs(t, err, domain.ErrUsernameTaken)
}

func TestLogin(t *testing.T) {
	repo := newFakeUserRepository()
	service := NewUserService(repo, &fakeJWTService{})

	_, err := service.Register(context.Background(), registerRequest("alice@example.com", "alice"))
	require.NoError(t, err)

	res, err := service.Login(context.Background(), domain.LoginRequest{
		Email:    "alice@example.com",
		Password: "s3cretpwd",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, domain.RoleUser, res.Role)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	repo := newFakeUserRepository()
	service := NewUserService(repo, &fakeJWTService{})

	_, err := service.Register(context.Background(), registerRequest("alice@example.com", "alice"))
	require.NoError(t, err)

	_, err = service.Login(context.Background(), domain.LoginRequest{
		Email:    "alice@example.com",
		Password: "wrong",
	})
	require.ErrorIs(t, err, domain.ErrWrongCredentials)
}

func TestLoginRejectsUnknownEmail(t *testing.T) {
	repo := newFakeUserRepository()
	service := NewUserService(repo, &fakeJWTService{})

	_, err := service.Login(context.Background(), domain.LoginRequest{
		Email:    "ghost@example.com",
		Password: "whatever",
	})
	require.ErrorIs(t, err, domain.ErrWrongCredentials)
}

func TestVerifyEmail(t *testing.T) {
	repo := newFakeUserRepository()
	jwtService := &fakeJWTService{}
	service := NewUserService(repo, jwtService)

	res, err := service.Register(context.Background(), registerRequest("alice@example.com", "alice"))
	require.NoError(t, err)

	// Register issued the verify token as a side effect
	require.NoError(t, service.VerifyEmail(context.Background(), "verify-token"))

	stored, err := repo.GetUserByID(context.Background(), res.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsVerified)

	err = service.VerifyEmail(context.Background(), "verify-token")
	require.ErrorIs(t, err, domain.ErrAlreadyVerified)
}

func TestVerifyEmailRejectsBadToken(t *testing.T) {
	repo := newFakeUserRepository()
	service := NewUserService(repo, &fakeJWTService{})

	err := service.VerifyEmail(context.Background(), "forged")
	require.ErrorIs(t, err, domain.ErrTokenInvalid)
}

func TestGetUserReportsSubscription(t *testing.T) {
	repo := newFakeUserRepository()
	service := NewUserService(repo, &fakeJWTService{})

	alice, err := service.Register(context.Background(), registerRequest("alice@example.com", "alice"))
	require.NoError(t, err)
	bob, err := service.Register(context.Background(), registerRequest("bob@example.com", "bob"))
	require.NoError(t, err)

	repo.follows[alice.ID+"|"+bob.ID] = true

	res, err := service.GetUser(context.Background(), bob.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, res.IsSubscribed)

	// anonymous requester never sees a subscription
	res, err = service.GetUser(context.Background(), bob.ID, "")
	require.NoError(t, err)
	assert.False(t, res.IsSubscribed)
}
