package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/antigravity/s3keeper/internal/models"
	"github.com/antigravity/s3keeper/internal/repository"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// AuthService определяет интерфейс для сервиса аутентификации UI-консоли.
// Вместо глобальной таблицы сессий используется подписанный токен (JWT):
// сервер не хранит состояние сессии и переживает перезапуск.
type AuthService interface {
	Login(ctx context.Context, username, password string) (string, error) // Возвращает JWT токен или ошибку
	// SeedUsers загружает учетные записи из конфигурации в таблицу
	// пользователей, хешируя пароли bcrypt. Вызывается при старте сервера.
	SeedUsers(ctx context.Context, credentials map[string]string) error
}

// Структура для пользовательских данных в JWT (claims).
type jwtClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Убедимся, что authService удовлетворяет интерфейсу AuthService.
var _ AuthService = (*authService)(nil)

type authService struct {
	userRepo  repository.UserRepository // Зависимость от репозитория пользователей
	jwtSecret []byte
	tokenTTL  time.Duration
}

// NewAuthService создает новый экземпляр сервиса аутентификации.
func NewAuthService(userRepo repository.UserRepository, jwtSecret string, tokenTTL time.Duration) AuthService {
	return &authService{
		userRepo:  userRepo,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
	}
}

// Login аутентифицирует пользователя и возвращает JWT токен.
func (s *authService) Login(ctx context.Context, username, password string) (string, error) {
	// Получаем пользователя по имени пользователя
	user, err := s.userRepo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			log.Printf("[AuthService] Попытка входа несуществующего пользователя: %s", username)
			return "", ErrInvalidCredentials // Общая ошибка для несуществующего пользователя и неверного пароля
		}
		log.Printf("[AuthService] Ошибка репозитория при поиске '%s': %v", username, err)
		return "", errors.New("внутренняя ошибка сервера при поиске пользователя")
	}

	// Сравниваем предоставленный пароль с хешем из базы данных
	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	if err != nil {
		log.Printf("[AuthService] Неверный пароль для пользователя: %s", username)
		return "", ErrInvalidCredentials // Общая ошибка
	}

	// Генерируем JWT токен
	token, err := s.generateJWT(user.Username)
	if err != nil {
		log.Printf("[AuthService] Ошибка генерации JWT для '%s': %v", username, err)
		return "", errors.New("внутренняя ошибка сервера при генерации токена")
	}

	log.Printf("[AuthService] Пользователь '%s' успешно аутентифицирован", username)
	return token, nil
}

// SeedUsers создает или обновляет учетные записи из конфигурации.
func (s *authService) SeedUsers(ctx context.Context, credentials map[string]string) error {
	for username, password := range credentials {
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("ошибка хеширования пароля для '%s': %w", username, err)
		}

		user := &models.User{
			Username:     username,
			PasswordHash: string(hashedPassword),
			CreatedAt:    time.Now().UTC(),
		}
		if err = s.userRepo.UpsertUser(ctx, user); err != nil {
			return fmt.Errorf("ошибка загрузки учетной записи '%s': %w", username, err)
		}
		log.Printf("[AuthService] Учетная запись '%s' загружена из конфигурации", username)
	}
	return nil
}

// generateJWT создает и подписывает JWT токен для пользователя.
func (s *authService) generateJWT(username string) (string, error) {
	// Создаем claims (полезную нагрузку)
	claims := jwtClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.tokenTTL)), // Время истечения
			IssuedAt:  jwt.NewNumericDate(time.Now()),                 // Время выдачи
			NotBefore: jwt.NewNumericDate(time.Now()),                 // Время, с которого токен валиден
			Issuer:    "s3keeper-server",                              // Источник токена
		},
	}

	// Создаем токен с нашими claims и методом подписи HS256
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	// Подписываем токен секретным ключом
	signedToken, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("ошибка подписи JWT: %w", err)
	}

	return signedToken, nil
}

// Кастомные ошибки сервиса аутентификации.
var (
	ErrInvalidCredentials = errors.New("неверное имя пользователя или пароль")
)
