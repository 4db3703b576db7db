package main

import (
	"errors"
	"net/http"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antigravity/s3keeper/internal/config"
	"github.com/antigravity/s3keeper/internal/handlers"
)

func TestSetupRouter(t *testing.T) {
	// Тестируем только роутинг, поэтому зависимости обработчиков — nil
	deps := &dependencies{
		authHandler: handlers.NewAuthHandler(nil),
		s3Handler:   handlers.NewS3Handler(nil),
		uiHandler:   handlers.NewUIHandler(nil),
		jwtSecret:   "test-secret",
	}

	r := setupRouter(deps)
	require.NotNil(t, r)

	// Служебные маршруты и UI-консоль
	assert.True(t, hasRoute(r, http.MethodGet, "/ping"))
	assert.True(t, hasRoute(r, http.MethodPost, "/api/login"))
	assert.True(t, hasRoute(r, http.MethodGet, "/api/ui/buckets"))
	assert.True(t, hasRoute(r, http.MethodGet, "/api/ui/{bucket}/objects"))
	assert.True(t, hasRoute(r, http.MethodPost, "/api/ui/{bucket}/rollback"))

	// S3-совместимые маршруты
	assert.True(t, hasRoute(r, http.MethodPut, "/{bucket}"))
	assert.True(t, hasRoute(r, http.MethodGet, "/{bucket}"))
	assert.True(t, hasRoute(r, http.MethodPut, "/{bucket}/*"))
	assert.True(t, hasRoute(r, http.MethodGet, "/{bucket}/*"))
	assert.True(t, hasRoute(r, http.MethodDelete, "/{bucket}/*"))
}

// Вспомогательная функция для проверки наличия маршрута.
func hasRoute(r chi.Router, method, pattern string) bool {
	found := false
	// Ошибка от chi.Walk используется только для прерывания обхода
	_ = chi.Walk(r, func(m, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		if m == method && route == pattern {
			found = true
			return errors.New("found")
		}
		return nil
	})
	return found
}

func TestSetupStorage(t *testing.T) {
	t.Run("Файловая система по умолчанию", func(t *testing.T) {
		cfg := &config.Config{}
		cfg.Storage.Backend = ""
		cfg.Storage.Root = t.TempDir()

		fs, err := setupStorage(cfg)
		require.NoError(t, err)
		assert.NotNil(t, fs)
	})

	t.Run("Неизвестный бэкенд", func(t *testing.T) {
		cfg := &config.Config{}
		cfg.Storage.Backend = "tape"

		_, err := setupStorage(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "неизвестный бэкенд хранилища")
	})
}

func TestSetupDependencies(t *testing.T) {
	// Сохраняем оригинальную функцию и восстанавливаем после тестов
	originalNewDB := newDB
	defer func() { newDB = originalNewDB }()

	t.Run("Ошибка инициализации БД", func(t *testing.T) {
		newDB = func(_, _ string) (*sqlx.DB, error) {
			return nil, errors.New("нет соединения")
		}

		cfg := &config.Config{}
		_, err := setupDependencies(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ошибка инициализации БД")
	})

	t.Run("Успешная инициализация с файловым хранилищем", func(t *testing.T) {
		// Мокируем newDB, чтобы не требовать реальной БД
		newDB = func(_, _ string) (*sqlx.DB, error) {
			mockDB, _, err := sqlmock.New()
			require.NoError(t, err)
			return sqlx.NewDb(mockDB, "sqlmock"), nil
		}

		cfg := &config.Config{}
		cfg.Storage.Backend = "fs"
		cfg.Storage.Root = t.TempDir()
		cfg.Auth.JWTSecret = "test-secret"
		cfg.Auth.TokenTTLHours = 1
		// Пустой набор учетных записей: SeedUsers не трогает БД
		cfg.Auth.Credentials = map[string]string{}

		deps, err := setupDependencies(cfg)
		require.NoError(t, err)
		require.NotNil(t, deps)
		assert.NotNil(t, deps.db)
		assert.NotNil(t, deps.fileStorage)
		assert.NotNil(t, deps.authHandler)
		assert.NotNil(t, deps.s3Handler)
		assert.NotNil(t, deps.uiHandler)
		assert.Equal(t, "test-secret", deps.jwtSecret)

		_ = deps.db.Close()
	})

	t.Run("Ошибка неизвестного бэкенда хранилища закрывает БД", func(t *testing.T) {
		newDB = func(_, _ string) (*sqlx.DB, error) {
			mockDB, mockSQL, err := sqlmock.New()
			require.NoError(t, err)
			mockSQL.ExpectClose()
			return sqlx.NewDb(mockDB, "sqlmock"), nil
		}

		cfg := &config.Config{}
		cfg.Storage.Backend = "tape"

		_, err := setupDependencies(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ошибка инициализации хранилища блобов")
	})
}
