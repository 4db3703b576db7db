package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioClient реализует FileStorage поверх MinIO/S3-совместимого бэкенда.
// Все блобы лежат в одном служебном бакете; путь блоба используется как
// ключ объекта.
type MinioClient struct {
	client     *minio.Client
	bucketName string
}

// MinioConfig содержит параметры для подключения к MinIO.
type MinioConfig struct {
	Endpoint        string // Адрес MinIO (например, "localhost:9000")
	AccessKeyID     string // Логин
	SecretAccessKey string // Пароль
	UseSSL          bool   // Использовать SSL (обычно false для локальной разработки)
	BucketName      string // Имя служебного бакета для хранения блобов
	Region          string // Регион (не обязательно для MinIO, но может требоваться)
}

// NewMinioClient создает новый клиент MinIO.
func NewMinioClient(cfg MinioConfig) (*MinioClient, error) {
	log.Printf("Инициализация клиента MinIO для эндпоинта %s...", cfg.Endpoint)

	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации клиента MinIO: %w", err)
	}

	// Проверка существования служебного бакета и создание при необходимости.
	ctx := context.Background()
	exists, err := minioClient.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("ошибка проверки существования бакета '%s': %w", cfg.BucketName, err)
	}
	if !exists {
		log.Printf("Бакет '%s' не найден, попытка создания...", cfg.BucketName)
		err = minioClient.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{Region: cfg.Region})
		if err != nil {
			return nil, fmt.Errorf("ошибка создания бакета '%s': %w", cfg.BucketName, err)
		}
		log.Printf("Бакет '%s' успешно создан.", cfg.BucketName)
	}

	log.Printf("Клиент MinIO успешно инициализирован для бакета '%s'.", cfg.BucketName)
	return &MinioClient{
		client:     minioClient,
		bucketName: cfg.BucketName,
	}, nil
}

// Save загружает контент версии в MinIO.
func (c *MinioClient) Save(
	ctx context.Context,
	bucket, key, versionID string,
	reader io.Reader,
) (string, error) {
	storagePath := ObjectStoragePath(bucket, key, versionID)
	log.Printf("[Minio] Загрузка блоба '%s' в бакет '%s'...", storagePath, c.bucketName)

	// Размер неизвестен заранее, используем потоковую загрузку (-1).
	uploadInfo, err := c.client.PutObject(ctx, c.bucketName, storagePath, reader, -1, minio.PutObjectOptions{})
	if err != nil {
		log.Printf("[Minio] Ошибка загрузки блоба '%s': %v", storagePath, err)
		return "", fmt.Errorf("ошибка загрузки блоба в MinIO: %w", err)
	}

	log.Printf("[Minio] Блоб '%s' успешно загружен, размер: %d", storagePath, uploadInfo.Size)
	return storagePath, nil
}

// Load скачивает блоб из MinIO.
// Возвращает io.ReadCloser, который нужно закрыть после использования.
func (c *MinioClient) Load(ctx context.Context, storagePath string) (io.ReadCloser, error) {
	log.Printf("[Minio] Скачивание блоба '%s' из бакета '%s'...", storagePath, c.bucketName)

	object, err := c.client.GetObject(ctx, c.bucketName, storagePath, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("ошибка получения блоба из MinIO: %w", err)
	}

	// GetObject ленив: отсутствие объекта проявляется только при чтении,
	// поэтому проверяем метаданные сразу.
	if _, err = object.Stat(); err != nil {
		_ = object.Close()
		var minioErr minio.ErrorResponse
		if errors.As(err, &minioErr) && minioErr.Code == "NoSuchKey" {
			log.Printf("[Minio] Блоб '%s' не найден в бакете '%s'", storagePath, c.bucketName)
			return nil, ErrObjectNotFound
		}
		log.Printf("[Minio] Ошибка получения метаданных блоба '%s': %v", storagePath, err)
		return nil, fmt.Errorf("ошибка получения метаданных блоба из MinIO: %w", err)
	}

	return object, nil
}

// Delete удаляет блоб из MinIO. Удаление отсутствующего блоба — успех.
func (c *MinioClient) Delete(ctx context.Context, storagePath string) error {
	if err := c.client.RemoveObject(ctx, c.bucketName, storagePath, minio.RemoveObjectOptions{}); err != nil {
		log.Printf("[Minio] Ошибка удаления блоба '%s': %v", storagePath, err)
		return fmt.Errorf("ошибка удаления блоба из MinIO: %w", err)
	}
	log.Printf("[Minio] Блоб '%s' удален", storagePath)
	return nil
}
