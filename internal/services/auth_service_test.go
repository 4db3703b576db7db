package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/antigravity/s3keeper/internal/models"
	"github.com/antigravity/s3keeper/internal/repository"
	"github.com/antigravity/s3keeper/internal/services"
)

const testJWTSecret = "test-secret"

// MockUserRepository - мок репозитория пользователей.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) CreateUser(ctx context.Context, user *models.User) (int64, error) {
	args := m.Called(ctx, user)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUserRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *MockUserRepository) UpsertUser(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// hashPassword хеширует пароль так же, как это делает SeedUsers.
func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("Успешный вход возвращает валидный JWT", func(t *testing.T) {
		userRepo := new(MockUserRepository)
		userRepo.On("GetUserByUsername", ctx, "admin").Return(&models.User{
			ID:           1,
			Username:     "admin",
			PasswordHash: hashPassword(t, "password"),
		}, nil)
		authService := services.NewAuthService(userRepo, testJWTSecret, time.Hour)

		tokenString, err := authService.Login(ctx, "admin", "password")
		require.NoError(t, err)
		require.NotEmpty(t, tokenString)

		// Токен подписан нашим секретом и несет имя пользователя
		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			require.Equal(t, jwt.SigningMethodHS256, token.Method)
			return []byte(testJWTSecret), nil
		})
		require.NoError(t, err)
		assert.True(t, token.Valid)
		assert.Equal(t, "admin", claims["username"])
		assert.Equal(t, "s3keeper-server", claims["iss"])

		userRepo.AssertExpectations(t)
	})

	t.Run("Неверный пароль", func(t *testing.T) {
		userRepo := new(MockUserRepository)
		userRepo.On("GetUserByUsername", ctx, "admin").Return(&models.User{
			Username:     "admin",
			PasswordHash: hashPassword(t, "password"),
		}, nil)
		authService := services.NewAuthService(userRepo, testJWTSecret, time.Hour)

		_, err := authService.Login(ctx, "admin", "wrong")
		require.ErrorIs(t, err, services.ErrInvalidCredentials)
	})

	t.Run("Несуществующий пользователь дает ту же ошибку", func(t *testing.T) {
		userRepo := new(MockUserRepository)
		userRepo.On("GetUserByUsername", ctx, "ghost").Return(nil, repository.ErrUserNotFound)
		authService := services.NewAuthService(userRepo, testJWTSecret, time.Hour)

		_, err := authService.Login(ctx, "ghost", "password")
		require.ErrorIs(t, err, services.ErrInvalidCredentials,
			"Ответ не раскрывает, существует ли пользователь")
	})

	t.Run("Ошибка репозитория не превращается в ErrInvalidCredentials", func(t *testing.T) {
		userRepo := new(MockUserRepository)
		userRepo.On("GetUserByUsername", ctx, "admin").Return(nil, errors.New("connection error"))
		authService := services.NewAuthService(userRepo, testJWTSecret, time.Hour)

		_, err := authService.Login(ctx, "admin", "password")
		require.Error(t, err)
		assert.NotErrorIs(t, err, services.ErrInvalidCredentials)
	})
}

func TestAuthService_TokenExpiry(t *testing.T) {
	ctx := context.Background()
	userRepo := new(MockUserRepository)
	userRepo.On("GetUserByUsername", ctx, "admin").Return(&models.User{
		Username:     "admin",
		PasswordHash: hashPassword(t, "password"),
	}, nil)

	// TTL уже истек к моменту проверки
	authService := services.NewAuthService(userRepo, testJWTSecret, -time.Minute)
	tokenString, err := authService.Login(ctx, "admin", "password")
	require.NoError(t, err)

	_, err = jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(testJWTSecret), nil
	})
	require.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestAuthService_SeedUsers(t *testing.T) {
	ctx := context.Background()

	t.Run("Учетные записи загружаются с bcrypt-хешами", func(t *testing.T) {
		userRepo := new(MockUserRepository)
		userRepo.On("UpsertUser", ctx, mock.MatchedBy(func(user *models.User) bool {
			if user.Username != "admin" {
				return false
			}
			// Хеш соответствует исходному паролю
			return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("password")) == nil
		})).Return(nil).Once()
		authService := services.NewAuthService(userRepo, testJWTSecret, time.Hour)

		err := authService.SeedUsers(ctx, map[string]string{"admin": "password"})
		require.NoError(t, err)
		userRepo.AssertExpectations(t)
	})

	t.Run("Пустая конфигурация — no-op", func(t *testing.T) {
		userRepo := new(MockUserRepository)
		authService := services.NewAuthService(userRepo, testJWTSecret, time.Hour)

		require.NoError(t, authService.SeedUsers(ctx, nil))
		userRepo.AssertNotCalled(t, "UpsertUser")
	})

	t.Run("Ошибка репозитория прерывает загрузку", func(t *testing.T) {
		userRepo := new(MockUserRepository)
		userRepo.On("UpsertUser", ctx, mock.Anything).Return(errors.New("connection error"))
		authService := services.NewAuthService(userRepo, testJWTSecret, time.Hour)

		err := authService.SeedUsers(ctx, map[string]string{"admin": "password"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ошибка загрузки учетной записи")
	})
}
