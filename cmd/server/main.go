package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"

	"github.com/antigravity/s3keeper/internal/config"
	"github.com/antigravity/s3keeper/internal/handlers"
	appmiddleware "github.com/antigravity/s3keeper/internal/middleware"
	"github.com/antigravity/s3keeper/internal/repository"
	"github.com/antigravity/s3keeper/internal/services"
	"github.com/antigravity/s3keeper/internal/storage"
)

const (
	defaultReadTimeout = 10 * time.Second
	// WriteTimeout больше ReadTimeout: скачивание крупного объекта — это
	// долгая запись в ответ.
	defaultWriteTimeout = 60 * time.Second
	defaultIdleTimeout  = 30 * time.Second
)

// Подменяется в тестах, чтобы не требовать реальной БД.
var newDB = repository.NewDB

// Структура для хранения инициализированных зависимостей.
type dependencies struct {
	db          *sqlx.DB
	fileStorage storage.FileStorage
	authHandler *handlers.AuthHandler
	s3Handler   *handlers.S3Handler
	uiHandler   *handlers.UIHandler
	jwtSecret   string
}

// main - точка входа. Вызывает run и обрабатывает ошибку.
func main() {
	if err := run(); err != nil {
		log.Printf("Ошибка выполнения сервера: %v", err)
		os.Exit(1)
	}
}

// run содержит основную логику запуска сервера и возвращает ошибку.
func run() error {
	log.Println("Запуск сервера s3keeper...")

	flags := parseFlags()

	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}
	flags.apply(cfg)

	// Инициализация зависимостей
	deps, err := setupDependencies(cfg)
	if err != nil {
		return fmt.Errorf("ошибка инициализации зависимостей: %w", err)
	}
	// Отложенное закрытие соединения с БД
	defer func() {
		if deps.db != nil {
			if closeErr := deps.db.Close(); closeErr != nil {
				log.Printf("Ошибка закрытия соединения с БД: %v", closeErr)
			}
		}
	}()

	// Настройка роутера
	r := setupRouter(deps)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}

	// TLS включается, только если заданы и сертификат, и ключ.
	if cfg.TLS.CertFile != "" && cfg.TLS.KeyFile != "" {
		log.Printf("Запуск HTTPS-сервера на порту %s...", cfg.Port)
		log.Printf("Используется сертификат: %s", cfg.TLS.CertFile)
		log.Printf("Используется ключ: %s", cfg.TLS.KeyFile)
		err = server.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
	} else {
		log.Printf("Запуск HTTP-сервера на порту %s...", cfg.Port)
		err = server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("ошибка запуска сервера: %w", err)
	}
	return nil
}

// setupDependencies инициализирует и возвращает все необходимые зависимости сервера.
func setupDependencies(cfg *config.Config) (*dependencies, error) {
	deps := &dependencies{jwtSecret: cfg.Auth.JWTSecret}
	var err error

	// 1. Подключение к БД метаданных (схема разворачивается при подключении)
	deps.db, err = newDB(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации БД: %w", err)
	}

	// 2. Инициализация физического хранилища блобов
	deps.fileStorage, err = setupStorage(cfg)
	if err != nil {
		if dbCloseErr := deps.db.Close(); dbCloseErr != nil {
			log.Printf("Ошибка закрытия соединения с БД при ошибке хранилища: %v", dbCloseErr)
		}
		return nil, fmt.Errorf("ошибка инициализации хранилища блобов: %w", err)
	}

	// 3. Создание репозиториев
	bucketRepo := repository.NewBucketRepository(deps.db)
	versionRepo := repository.NewObjectVersionRepository(deps.db)
	userRepo := repository.NewUserRepository(deps.db)

	// 4. Создание сервисов
	authService := services.NewAuthService(userRepo, cfg.Auth.JWTSecret, cfg.TokenTTL())
	objectService := services.NewObjectService(deps.db, bucketRepo, versionRepo, deps.fileStorage)

	// Загружаем учетные записи UI-консоли из конфигурации
	if err = authService.SeedUsers(context.Background(), cfg.Auth.Credentials); err != nil {
		if dbCloseErr := deps.db.Close(); dbCloseErr != nil {
			log.Printf("Ошибка закрытия соединения с БД при ошибке загрузки учетных записей: %v", dbCloseErr)
		}
		return nil, fmt.Errorf("ошибка загрузки учетных записей: %w", err)
	}

	// 5. Создание обработчиков
	deps.authHandler = handlers.NewAuthHandler(authService)
	deps.s3Handler = handlers.NewS3Handler(objectService)
	deps.uiHandler = handlers.NewUIHandler(objectService)

	return deps, nil
}

// setupStorage создает бэкенд физического хранилища по конфигурации.
func setupStorage(cfg *config.Config) (storage.FileStorage, error) {
	switch cfg.Storage.Backend {
	case "minio":
		return storage.NewMinioClient(storage.MinioConfig{
			Endpoint:        cfg.Storage.Minio.Endpoint,
			AccessKeyID:     cfg.Storage.Minio.AccessKeyID,
			SecretAccessKey: cfg.Storage.Minio.SecretAccessKey,
			UseSSL:          cfg.Storage.Minio.UseSSL,
			BucketName:      cfg.Storage.Minio.BucketName,
			Region:          cfg.Storage.Minio.Region,
		})
	case "", "fs":
		return storage.NewFileSystemStorage(cfg.Storage.Root, cfg.Storage.Compress)
	default:
		return nil, fmt.Errorf("неизвестный бэкенд хранилища: '%s'", cfg.Storage.Backend)
	}
}

// setupRouter настраивает и возвращает роутер chi.
func setupRouter(deps *dependencies) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// --- Маршруты --- //
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("pong\n"))
	})

	// UI-консоль: вход и приватные JSON-проекции метаданных
	r.Route("/api", func(r chi.Router) {
		r.Post("/login", deps.authHandler.Login)

		r.Route("/ui", func(r chi.Router) {
			// Применяем middleware аутентификации ко всей группе
			r.Use(appmiddleware.NewAuthenticator(deps.jwtSecret))

			r.Get("/buckets", deps.uiHandler.ListBuckets)
			r.Get("/{bucket}/objects", deps.uiHandler.ListBucketObjects)
			r.Post("/{bucket}/rollback", deps.uiHandler.Rollback)
		})
	})

	// S3-совместимые маршруты в корне. Ключ объекта может содержать '/',
	// поэтому объектные маршруты используют wildcard.
	r.Put("/{bucket}", deps.s3Handler.CreateBucket)
	r.Get("/{bucket}", deps.s3Handler.ListObjects)
	r.Put("/{bucket}/*", deps.s3Handler.PutObject)
	r.Get("/{bucket}/*", deps.s3Handler.GetObject)
	r.Delete("/{bucket}/*", deps.s3Handler.DeleteObject)

	return r
}
