package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/antigravity/s3keeper/internal/models"
	"github.com/jmoiron/sqlx"
)

// UserRepository определяет методы для работы с учетными записями UI-консоли.
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) (int64, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	// UpsertUser создает пользователя или обновляет хеш пароля существующего.
	// Используется для загрузки учетных записей из конфигурации при старте.
	UpsertUser(ctx context.Context, user *models.User) error
}

// sqlUserRepository реализует UserRepository поверх sqlx.
type sqlUserRepository struct {
	db *sqlx.DB
}

// NewUserRepository создает новый экземпляр репозитория пользователей.
func NewUserRepository(db *sqlx.DB) UserRepository {
	return &sqlUserRepository{db: db}
}

// CreateUser создает нового пользователя в базе данных.
// Возвращает ID созданного пользователя или ошибку.
func (r *sqlUserRepository) CreateUser(ctx context.Context, user *models.User) (int64, error) {
	query := r.db.Rebind(`INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)`)

	res, err := r.db.ExecContext(ctx, query, user.Username, user.PasswordHash, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			log.Printf("[UserRepo] Ошибка создания пользователя: имя '%s' уже занято", user.Username)
			return 0, ErrUsernameTaken
		}
		log.Printf("[UserRepo] Непредвиденная ошибка при создании пользователя '%s': %v", user.Username, err)
		return 0, fmt.Errorf("ошибка выполнения запроса на создание пользователя: %w", err)
	}

	userID, err := res.LastInsertId()
	if err != nil {
		// Драйвер postgres не поддерживает LastInsertId; id нужен только
		// для логов, дочитываем его отдельным запросом.
		row := r.db.QueryRowxContext(ctx, r.db.Rebind(`SELECT id FROM users WHERE username=?`), user.Username)
		if scanErr := row.Scan(&userID); scanErr != nil {
			return 0, fmt.Errorf("ошибка получения id созданного пользователя: %w", scanErr)
		}
	}

	log.Printf("[UserRepo] Пользователь '%s' успешно создан с ID %d", user.Username, userID)
	return userID, nil
}

// GetUserByUsername находит пользователя по его имени.
// Возвращает ErrUserNotFound, если пользователь отсутствует.
func (r *sqlUserRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := r.db.Rebind(`SELECT id, username, password_hash, created_at FROM users WHERE username=?`)
	var user models.User

	err := r.db.GetContext(ctx, &user, query, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Printf("[UserRepo] Пользователь с именем '%s' не найден", username)
			return nil, ErrUserNotFound
		}
		log.Printf("[UserRepo] Ошибка при поиске пользователя '%s': %v", username, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение пользователя: %w", err)
	}

	return &user, nil
}

// UpsertUser создает или обновляет пользователя.
// Синтаксис ON CONFLICT поддерживается и PostgreSQL, и SQLite.
func (r *sqlUserRepository) UpsertUser(ctx context.Context, user *models.User) error {
	query := r.db.Rebind(`INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)
		ON CONFLICT (username) DO UPDATE SET password_hash=excluded.password_hash`)

	if _, err := r.db.ExecContext(ctx, query, user.Username, user.PasswordHash, user.CreatedAt); err != nil {
		log.Printf("[UserRepo] Ошибка при создании/обновлении пользователя '%s': %v", user.Username, err)
		return fmt.Errorf("ошибка выполнения запроса на создание/обновление пользователя: %w", err)
	}
	return nil
}

// Кастомные ошибки репозитория.
var (
	ErrUserNotFound  = errors.New("пользователь не найден")
	ErrUsernameTaken = errors.New("имя пользователя уже занято")
)
