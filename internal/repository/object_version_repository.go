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

// Поля версии в порядке колонок таблицы object_versions.
const objectVersionColumns = `id, bucket_name, key, version_id, is_latest, is_delete_marker,
	size, etag, last_modified, content_type, storage_path`

// ObjectVersionRepository определяет методы для работы с версиями объектов.
// Методы с суффиксом Tx выполняются внутри переданной транзакции: движок
// цепочек версий использует их, чтобы переходы demote/insert/promote
// коммитились атомарно.
type ObjectVersionRepository interface {
	GetVersion(ctx context.Context, bucket, key, versionID string) (*models.ObjectVersion, error)
	GetLatest(ctx context.Context, bucket, key string) (*models.ObjectVersion, error)
	ListChain(ctx context.Context, bucket, key string) ([]models.ObjectVersion, error)
	ListCurrent(ctx context.Context, bucket string) ([]models.ObjectVersion, error)
	ListAllVersions(ctx context.Context, bucket string) ([]models.ObjectVersion, error)

	ListChainTx(ctx context.Context, tx *sqlx.Tx, bucket, key string) ([]models.ObjectVersion, error)
	CreateVersionTx(ctx context.Context, tx *sqlx.Tx, version *models.ObjectVersion) (int64, error)
	DemoteLatestTx(ctx context.Context, tx *sqlx.Tx, bucket, key string) error
	SetLatestTx(ctx context.Context, tx *sqlx.Tx, id int64, latest bool) error
	DeleteVersionTx(ctx context.Context, tx *sqlx.Tx, id int64) error
}

// sqlObjectVersionRepository реализует ObjectVersionRepository поверх sqlx.
type sqlObjectVersionRepository struct {
	db *sqlx.DB
}

// NewObjectVersionRepository создает новый экземпляр репозитория версий.
func NewObjectVersionRepository(db *sqlx.DB) ObjectVersionRepository {
	return &sqlObjectVersionRepository{db: db}
}

// GetVersion находит конкретную версию в цепочке (bucket, key).
// Возвращает ErrVersionNotFound, если такой версии нет.
func (r *sqlObjectVersionRepository) GetVersion(
	ctx context.Context,
	bucket, key, versionID string,
) (*models.ObjectVersion, error) {
	query := r.db.Rebind(`SELECT ` + objectVersionColumns +
		` FROM object_versions WHERE bucket_name=? AND key=? AND version_id=?`)
	var version models.ObjectVersion

	err := r.db.GetContext(ctx, &version, query, bucket, key, versionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVersionNotFound
		}
		log.Printf("[ObjectVerRepo] Ошибка при поиске версии '%s' (%s/%s): %v", versionID, bucket, key, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение версии: %w", err)
	}

	return &version, nil
}

// GetLatest находит текущую версию цепочки (bucket, key).
// Возвращает ErrVersionNotFound для пустой цепочки.
func (r *sqlObjectVersionRepository) GetLatest(
	ctx context.Context,
	bucket, key string,
) (*models.ObjectVersion, error) {
	query := r.db.Rebind(`SELECT ` + objectVersionColumns +
		` FROM object_versions WHERE bucket_name=? AND key=? AND is_latest=?`)
	var version models.ObjectVersion

	err := r.db.GetContext(ctx, &version, query, bucket, key, true)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVersionNotFound
		}
		log.Printf("[ObjectVerRepo] Ошибка при поиске текущей версии (%s/%s): %v", bucket, key, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение текущей версии: %w", err)
	}

	return &version, nil
}

// ListChain возвращает все версии цепочки (bucket, key), сначала новые.
// При равных last_modified порядок фиксируется убыванием id.
func (r *sqlObjectVersionRepository) ListChain(
	ctx context.Context,
	bucket, key string,
) ([]models.ObjectVersion, error) {
	query := r.db.Rebind(`SELECT ` + objectVersionColumns +
		` FROM object_versions WHERE bucket_name=? AND key=?
		ORDER BY last_modified DESC, id DESC`)

	versions := make([]models.ObjectVersion, 0)
	err := r.db.SelectContext(ctx, &versions, query, bucket, key)
	if err != nil {
		log.Printf("[ObjectVerRepo] Ошибка при получении цепочки версий (%s/%s): %v", bucket, key, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение цепочки версий: %w", err)
	}

	return versions, nil
}

// ListCurrent возвращает по одной строке на ключ: текущие версии бакета
// без маркеров удаления, отсортированные по ключу.
func (r *sqlObjectVersionRepository) ListCurrent(
	ctx context.Context,
	bucket string,
) ([]models.ObjectVersion, error) {
	query := r.db.Rebind(`SELECT ` + objectVersionColumns +
		` FROM object_versions WHERE bucket_name=? AND is_latest=? AND is_delete_marker=?
		ORDER BY key`)

	versions := make([]models.ObjectVersion, 0)
	err := r.db.SelectContext(ctx, &versions, query, bucket, true, false)
	if err != nil {
		log.Printf("[ObjectVerRepo] Ошибка при получении списка объектов бакета '%s': %v", bucket, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение списка объектов: %w", err)
	}

	return versions, nil
}

// ListAllVersions возвращает полную историю бакета: все версии всех ключей,
// по ключу и убыванию last_modified.
func (r *sqlObjectVersionRepository) ListAllVersions(
	ctx context.Context,
	bucket string,
) ([]models.ObjectVersion, error) {
	query := r.db.Rebind(`SELECT ` + objectVersionColumns +
		` FROM object_versions WHERE bucket_name=?
		ORDER BY key, last_modified DESC, id DESC`)

	versions := make([]models.ObjectVersion, 0)
	err := r.db.SelectContext(ctx, &versions, query, bucket)
	if err != nil {
		log.Printf("[ObjectVerRepo] Ошибка при получении истории бакета '%s': %v", bucket, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение истории бакета: %w", err)
	}

	return versions, nil
}

// ListChainTx — как ListChain, но внутри транзакции.
func (r *sqlObjectVersionRepository) ListChainTx(
	ctx context.Context,
	tx *sqlx.Tx,
	bucket, key string,
) ([]models.ObjectVersion, error) {
	query := tx.Rebind(`SELECT ` + objectVersionColumns +
		` FROM object_versions WHERE bucket_name=? AND key=?
		ORDER BY last_modified DESC, id DESC`)

	versions := make([]models.ObjectVersion, 0)
	err := tx.SelectContext(ctx, &versions, query, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса на получение цепочки версий: %w", err)
	}

	return versions, nil
}

// CreateVersionTx вставляет новую версию и возвращает ее суррогатный id.
func (r *sqlObjectVersionRepository) CreateVersionTx(
	ctx context.Context,
	tx *sqlx.Tx,
	version *models.ObjectVersion,
) (int64, error) {
	query := tx.Rebind(`INSERT INTO object_versions
		(bucket_name, key, version_id, is_latest, is_delete_marker, size, etag, last_modified, content_type, storage_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	res, err := tx.ExecContext(ctx, query,
		version.BucketName, version.Key, version.VersionID,
		version.IsLatest, version.IsDeleteMarker,
		version.Size, version.ETag, version.LastModified,
		version.ContentType, version.StoragePath,
	)
	if err != nil {
		if isUniqueViolation(err) {
			log.Printf("[ObjectVerRepo] Ошибка создания версии: version_id '%s' уже существует", version.VersionID)
			return 0, fmt.Errorf("версия '%s' уже существует: %w", version.VersionID, err)
		}
		log.Printf("[ObjectVerRepo] Непредвиденная ошибка при создании версии '%s': %v", version.VersionID, err)
		return 0, fmt.Errorf("ошибка выполнения запроса на создание версии: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		// Драйвер postgres не поддерживает LastInsertId; суррогатный id
		// нужен движку только внутри транзакции, поэтому дочитываем его.
		row := tx.QueryRowxContext(ctx, tx.Rebind(`SELECT id FROM object_versions WHERE version_id=?`), version.VersionID)
		if scanErr := row.Scan(&id); scanErr != nil {
			return 0, fmt.Errorf("ошибка получения id созданной версии: %w", scanErr)
		}
	}

	version.ID = id
	return id, nil
}

// DemoteLatestTx снимает флаг is_latest с текущей версии цепочки (если есть).
func (r *sqlObjectVersionRepository) DemoteLatestTx(
	ctx context.Context,
	tx *sqlx.Tx,
	bucket, key string,
) error {
	query := tx.Rebind(`UPDATE object_versions SET is_latest=? WHERE bucket_name=? AND key=? AND is_latest=?`)

	if _, err := tx.ExecContext(ctx, query, false, bucket, key, true); err != nil {
		log.Printf("[ObjectVerRepo] Ошибка снятия флага is_latest (%s/%s): %v", bucket, key, err)
		return fmt.Errorf("ошибка выполнения запроса на снятие флага текущей версии: %w", err)
	}
	return nil
}

// SetLatestTx выставляет флаг is_latest у версии с указанным id.
func (r *sqlObjectVersionRepository) SetLatestTx(
	ctx context.Context,
	tx *sqlx.Tx,
	id int64,
	latest bool,
) error {
	query := tx.Rebind(`UPDATE object_versions SET is_latest=? WHERE id=?`)

	if _, err := tx.ExecContext(ctx, query, latest, id); err != nil {
		log.Printf("[ObjectVerRepo] Ошибка установки is_latest=%v для версии id=%d: %v", latest, id, err)
		return fmt.Errorf("ошибка выполнения запроса на смену текущей версии: %w", err)
	}
	return nil
}

// DeleteVersionTx удаляет строку версии по суррогатному id.
func (r *sqlObjectVersionRepository) DeleteVersionTx(
	ctx context.Context,
	tx *sqlx.Tx,
	id int64,
) error {
	query := tx.Rebind(`DELETE FROM object_versions WHERE id=?`)

	if _, err := tx.ExecContext(ctx, query, id); err != nil {
		log.Printf("[ObjectVerRepo] Ошибка удаления версии id=%d: %v", id, err)
		return fmt.Errorf("ошибка выполнения запроса на удаление версии: %w", err)
	}
	return nil
}

// Кастомные ошибки репозитория версий.
var (
	ErrVersionNotFound = errors.New("версия объекта не найдена")
)
