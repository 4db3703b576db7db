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

// BucketRepository определяет методы для работы с бакетами.
// Операций обновления и удаления бакета в текущем объеме нет.
type BucketRepository interface {
	CreateBucket(ctx context.Context, bucket *models.Bucket) error
	GetBucketByName(ctx context.Context, name string) (*models.Bucket, error)
	ListBuckets(ctx context.Context) ([]models.Bucket, error)
}

// sqlBucketRepository реализует BucketRepository поверх sqlx.
type sqlBucketRepository struct {
	db *sqlx.DB
}

// NewBucketRepository создает новый экземпляр репозитория бакетов.
func NewBucketRepository(db *sqlx.DB) BucketRepository {
	return &sqlBucketRepository{db: db}
}

// CreateBucket создает новый бакет.
// Возвращает ErrBucketExists, если бакет с таким именем уже есть.
func (r *sqlBucketRepository) CreateBucket(ctx context.Context, bucket *models.Bucket) error {
	query := r.db.Rebind(`INSERT INTO buckets (name, creation_date, versioning_enabled) VALUES (?, ?, ?)`)

	_, err := r.db.ExecContext(ctx, query, bucket.Name, bucket.CreationDate, bucket.VersioningEnabled)
	if err != nil {
		if isUniqueViolation(err) {
			log.Printf("[BucketRepo] Бакет '%s' уже существует", bucket.Name)
			return ErrBucketExists
		}
		log.Printf("[BucketRepo] Непредвиденная ошибка при создании бакета '%s': %v", bucket.Name, err)
		return fmt.Errorf("ошибка выполнения запроса на создание бакета: %w", err)
	}

	log.Printf("[BucketRepo] Бакет '%s' успешно создан", bucket.Name)
	return nil
}

// GetBucketByName находит бакет по имени.
// Возвращает ErrBucketNotFound, если бакет отсутствует.
func (r *sqlBucketRepository) GetBucketByName(ctx context.Context, name string) (*models.Bucket, error) {
	query := r.db.Rebind(`SELECT name, creation_date, versioning_enabled FROM buckets WHERE name=?`)
	var bucket models.Bucket

	err := r.db.GetContext(ctx, &bucket, query, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBucketNotFound
		}
		log.Printf("[BucketRepo] Ошибка при поиске бакета '%s': %v", name, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение бакета: %w", err)
	}

	return &bucket, nil
}

// ListBuckets возвращает все бакеты, отсортированные по имени.
func (r *sqlBucketRepository) ListBuckets(ctx context.Context) ([]models.Bucket, error) {
	query := `SELECT name, creation_date, versioning_enabled FROM buckets ORDER BY name`

	buckets := make([]models.Bucket, 0)
	err := r.db.SelectContext(ctx, &buckets, query)
	if err != nil {
		log.Printf("[BucketRepo] Ошибка при получении списка бакетов: %v", err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение списка бакетов: %w", err)
	}

	return buckets, nil
}

// Кастомные ошибки репозитория бакетов.
var (
	ErrBucketNotFound = errors.New("бакет не найден")
	ErrBucketExists   = errors.New("бакет уже существует")
)
