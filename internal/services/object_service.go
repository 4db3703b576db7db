package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/antigravity/s3keeper/internal/digest"
	"github.com/antigravity/s3keeper/internal/models"
	"github.com/antigravity/s3keeper/internal/repository"
	"github.com/antigravity/s3keeper/internal/storage"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ObjectService определяет интерфейс движка цепочек версий.
// Для каждой пары (bucket, key) движок поддерживает упорядоченную историю
// версий, гарантирует ровно одну текущую версию в непустой цепочке и
// согласует метаданные с жизненным циклом физических блобов.
type ObjectService interface {
	CreateBucket(ctx context.Context, name string) error
	ListBuckets(ctx context.Context) ([]models.Bucket, error)

	PutObject(ctx context.Context, bucket, key string, content io.Reader, contentType string) (*models.ObjectVersion, error)
	// GetObject возвращает контент и метаданные версии. Пустой versionID
	// означает текущую версию. Возвращаемый ReadCloser обязан быть закрыт.
	GetObject(ctx context.Context, bucket, key, versionID string) (io.ReadCloser, *models.ObjectVersion, error)
	// DeleteObject выполняет "мягкое" удаление: добавляет маркер удаления
	// как новую текущую версию. Возвращает созданный маркер.
	DeleteObject(ctx context.Context, bucket, key string) (*models.ObjectVersion, error)
	// DeleteVersion физически удаляет конкретную версию и ее блоб.
	// Идемпотентна: удаление отсутствующей версии — успешный no-op.
	DeleteVersion(ctx context.Context, bucket, key, versionID string) error
	// Rollback уничтожает все версии новее целевой и делает целевую текущей.
	// Все-или-ничего: при отсутствии цели история не меняется.
	Rollback(ctx context.Context, bucket, key, versionID string) error

	ListObjects(ctx context.Context, bucket string) ([]models.ObjectVersion, error)
	ListObjectVersions(ctx context.Context, bucket string) ([]models.ObjectVersion, error)
	ListObjectsGrouped(ctx context.Context, bucket string) (map[string][]models.ObjectVersionSummary, error)
}

// objectService реализует движок цепочек версий.
var _ ObjectService = (*objectService)(nil)

type objectService struct {
	db       *sqlx.DB
	buckets  repository.BucketRepository
	versions repository.ObjectVersionRepository
	storage  storage.FileStorage
	locks    *chainLocker
}

// NewObjectService создает новый экземпляр движка.
func NewObjectService(
	db *sqlx.DB,
	buckets repository.BucketRepository,
	versions repository.ObjectVersionRepository,
	fileStorage storage.FileStorage,
) ObjectService {
	return &objectService{
		db:       db,
		buckets:  buckets,
		versions: versions,
		storage:  fileStorage,
		locks:    newChainLocker(),
	}
}

// CreateBucket создает бакет. Версионирование включено с момента создания.
func (s *objectService) CreateBucket(ctx context.Context, name string) error {
	bucket := &models.Bucket{
		Name:              name,
		CreationDate:      time.Now().UTC(),
		VersioningEnabled: true,
	}

	if err := s.buckets.CreateBucket(ctx, bucket); err != nil {
		if errors.Is(err, repository.ErrBucketExists) {
			return ErrBucketExists
		}
		log.Printf("[ObjectService] Ошибка репозитория при создании бакета '%s': %v", name, err)
		return fmt.Errorf("ошибка создания бакета: %w", err)
	}

	log.Printf("[ObjectService] Бакет '%s' создан", name)
	return nil
}

// ListBuckets возвращает все бакеты.
func (s *objectService) ListBuckets(ctx context.Context) ([]models.Bucket, error) {
	buckets, err := s.buckets.ListBuckets(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка бакетов: %w", err)
	}
	return buckets, nil
}

// PutObject сохраняет новую версию объекта и делает ее текущей.
// Блоб записывается до коммита метаданных; снятие флага с прежней текущей
// версии и вставка новой коммитятся одной транзакцией.
func (s *objectService) PutObject(
	ctx context.Context,
	bucket, key string,
	content io.Reader,
	contentType string,
) (*models.ObjectVersion, error) {
	if err := s.ensureBucket(ctx, bucket); err != nil {
		return nil, err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	s.locks.Lock(bucket, key)
	defer s.locks.Unlock(bucket, key)

	data, err := io.ReadAll(content)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения контента объекта: %w", err)
	}

	etag, size, err := digest.Compute(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	versionID := uuid.NewString()

	storagePath, err := s.storage.Save(ctx, bucket, key, versionID, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("ошибка сохранения блоба: %w", err)
	}

	version := &models.ObjectVersion{
		BucketName:   bucket,
		Key:          key,
		VersionID:    versionID,
		IsLatest:     true,
		Size:         size,
		ETag:         etag,
		LastModified: time.Now().UTC(),
		ContentType:  contentType,
		StoragePath:  &storagePath,
	}

	err = s.withTx(ctx, func(tx *sqlx.Tx) error {
		if txErr := s.versions.DemoteLatestTx(ctx, tx, bucket, key); txErr != nil {
			return txErr
		}
		_, txErr := s.versions.CreateVersionTx(ctx, tx, version)
		return txErr
	})
	if err != nil {
		// Метаданные не закоммичены, блоб осиротел. Пробуем убрать сразу,
		// в худшем случае его подберет офлайн-уборка.
		if delErr := s.storage.Delete(ctx, storagePath); delErr != nil {
			log.Printf("[ObjectService] Не удалось удалить осиротевший блоб '%s': %v", storagePath, delErr)
		}
		return nil, fmt.Errorf("ошибка фиксации новой версии: %w", err)
	}

	log.Printf("[ObjectService] Создана версия '%s' объекта %s/%s (размер %d)", versionID, bucket, key, size)
	return version, nil
}

// GetObject возвращает контент и метаданные версии объекта.
// Маркер удаления неотличим от отсутствующего ключа: в обоих случаях
// возвращается ErrObjectNotFound.
func (s *objectService) GetObject(
	ctx context.Context,
	bucket, key, versionID string,
) (io.ReadCloser, *models.ObjectVersion, error) {
	var version *models.ObjectVersion
	var err error
	if versionID != "" {
		version, err = s.versions.GetVersion(ctx, bucket, key, versionID)
	} else {
		version, err = s.versions.GetLatest(ctx, bucket, key)
	}
	if err != nil {
		if errors.Is(err, repository.ErrVersionNotFound) {
			return nil, nil, ErrObjectNotFound
		}
		log.Printf("[ObjectService] Ошибка репозитория при поиске версии %s/%s: %v", bucket, key, err)
		return nil, nil, fmt.Errorf("ошибка поиска версии объекта: %w", err)
	}

	if version.IsDeleteMarker {
		return nil, nil, ErrObjectNotFound
	}

	if version.StoragePath == nil {
		// Версия с контентом обязана ссылаться на блоб (инвариант).
		log.Printf("[ObjectService] Нарушение целостности: версия '%s' (%s/%s) без storage_path",
			version.VersionID, bucket, key)
		return nil, nil, ErrBlobMissing
	}

	reader, err := s.storage.Load(ctx, *version.StoragePath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			// Метаданные ссылаются на отсутствующий блоб — при нормальной
			// работе такого не бывает.
			log.Printf("[ObjectService] Нарушение целостности: блоб '%s' версии '%s' отсутствует",
				*version.StoragePath, version.VersionID)
			return nil, nil, ErrBlobMissing
		}
		return nil, nil, fmt.Errorf("ошибка открытия блоба: %w", err)
	}

	return reader, version, nil
}

// DeleteObject добавляет маркер удаления как новую текущую версию цепочки.
// Физически ничего не удаляется: операция обратима через Rollback.
func (s *objectService) DeleteObject(ctx context.Context, bucket, key string) (*models.ObjectVersion, error) {
	if err := s.ensureBucket(ctx, bucket); err != nil {
		return nil, err
	}

	s.locks.Lock(bucket, key)
	defer s.locks.Unlock(bucket, key)

	marker := &models.ObjectVersion{
		BucketName:     bucket,
		Key:            key,
		VersionID:      uuid.NewString(),
		IsLatest:       true,
		IsDeleteMarker: true,
		LastModified:   time.Now().UTC(),
		ContentType:    "application/octet-stream",
	}

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if txErr := s.versions.DemoteLatestTx(ctx, tx, bucket, key); txErr != nil {
			return txErr
		}
		_, txErr := s.versions.CreateVersionTx(ctx, tx, marker)
		return txErr
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка фиксации маркера удаления: %w", err)
	}

	log.Printf("[ObjectService] Добавлен маркер удаления '%s' для %s/%s", marker.VersionID, bucket, key)
	return marker, nil
}

// DeleteVersion физически удаляет конкретную версию.
// Если удалена текущая версия, текущей становится самая свежая из
// оставшихся; если цепочка опустела, ключ перестает существовать.
func (s *objectService) DeleteVersion(ctx context.Context, bucket, key, versionID string) error {
	s.locks.Lock(bucket, key)
	defer s.locks.Unlock(bucket, key)

	var removed *models.ObjectVersion

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		chain, txErr := s.versions.ListChainTx(ctx, tx, bucket, key)
		if txErr != nil {
			return txErr
		}

		var target *models.ObjectVersion
		for i := range chain {
			if chain[i].VersionID == versionID {
				target = &chain[i]
				break
			}
		}
		if target == nil {
			// Идемпотентность: версии нет — удалять нечего.
			return nil
		}

		if target.IsLatest {
			// Цепочка отсортирована по убыванию новизны: первая не
			// удаляемая строка — новая текущая версия.
			for i := range chain {
				if chain[i].ID != target.ID {
					if txErr = s.versions.SetLatestTx(ctx, tx, chain[i].ID, true); txErr != nil {
						return txErr
					}
					break
				}
			}
		}

		if txErr = s.versions.DeleteVersionTx(ctx, tx, target.ID); txErr != nil {
			return txErr
		}
		removed = target
		return nil
	})
	if err != nil {
		return fmt.Errorf("ошибка удаления версии: %w", err)
	}

	// Блоб удаляется только после коммита: метаданные — источник истины,
	// осиротевший блоб допустим, висячая ссылка — нет.
	if removed != nil && removed.StoragePath != nil {
		if delErr := s.storage.Delete(ctx, *removed.StoragePath); delErr != nil {
			log.Printf("[ObjectService] Не удалось удалить блоб '%s' версии '%s': %v",
				*removed.StoragePath, versionID, delErr)
		}
	}

	if removed != nil {
		log.Printf("[ObjectService] Версия '%s' объекта %s/%s удалена", versionID, bucket, key)
	}
	return nil
}

// Rollback откатывает историю ключа к целевой версии.
// Сканируя цепочку от новых к старым: все версии новее цели уничтожаются
// (строка и блоб), цель становится текущей, у более старых версий
// принудительно снимается флаг текущей (нормализация на случай, если
// прежний сбой оставил лишние флаги).
func (s *objectService) Rollback(ctx context.Context, bucket, key, versionID string) error {
	s.locks.Lock(bucket, key)
	defer s.locks.Unlock(bucket, key)

	var doomed []models.ObjectVersion

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		chain, txErr := s.versions.ListChainTx(ctx, tx, bucket, key)
		if txErr != nil {
			return txErr
		}

		targetFound := false
		for i := range chain {
			ver := chain[i]
			switch {
			case ver.VersionID == versionID:
				targetFound = true
				if txErr = s.versions.SetLatestTx(ctx, tx, ver.ID, true); txErr != nil {
					return txErr
				}
			case !targetFound:
				// Версии новее цели (идут до нее при обходе по убыванию).
				if txErr = s.versions.DeleteVersionTx(ctx, tx, ver.ID); txErr != nil {
					return txErr
				}
				doomed = append(doomed, ver)
			case ver.IsLatest:
				if txErr = s.versions.SetLatestTx(ctx, tx, ver.ID, false); txErr != nil {
					return txErr
				}
			}
		}

		if !targetFound {
			// Откат транзакции: история остается нетронутой.
			return ErrVersionNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrVersionNotFound) {
			return ErrVersionNotFound
		}
		return fmt.Errorf("ошибка отката к версии '%s': %w", versionID, err)
	}

	// Блобы уничтоженных версий удаляются после коммита.
	for i := range doomed {
		if doomed[i].StoragePath == nil {
			continue
		}
		if delErr := s.storage.Delete(ctx, *doomed[i].StoragePath); delErr != nil {
			log.Printf("[ObjectService] Не удалось удалить блоб '%s' при откате: %v",
				*doomed[i].StoragePath, delErr)
		}
	}

	log.Printf("[ObjectService] Откат %s/%s к версии '%s': уничтожено %d более новых версий",
		bucket, key, versionID, len(doomed))
	return nil
}

// ListObjects возвращает текущие версии бакета без маркеров удаления
// (ключ с маркером в качестве текущей версии в списке не появляется).
func (s *objectService) ListObjects(ctx context.Context, bucket string) ([]models.ObjectVersion, error) {
	if err := s.ensureBucket(ctx, bucket); err != nil {
		return nil, err
	}

	versions, err := s.versions.ListCurrent(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка объектов: %w", err)
	}
	return versions, nil
}

// ListObjectVersions возвращает полную историю бакета: каждую версию каждого
// ключа, по ключу и убыванию last_modified.
func (s *objectService) ListObjectVersions(ctx context.Context, bucket string) ([]models.ObjectVersion, error) {
	if err := s.ensureBucket(ctx, bucket); err != nil {
		return nil, err
	}

	versions, err := s.versions.ListAllVersions(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истории бакета: %w", err)
	}
	return versions, nil
}

// ListObjectsGrouped возвращает историю бакета, сгруппированную по ключам,
// для UI-консоли. Версии каждого ключа идут от новых к старым.
func (s *objectService) ListObjectsGrouped(
	ctx context.Context,
	bucket string,
) (map[string][]models.ObjectVersionSummary, error) {
	versions, err := s.versions.ListAllVersions(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истории бакета: %w", err)
	}

	grouped := make(map[string][]models.ObjectVersionSummary)
	for _, v := range versions {
		grouped[v.Key] = append(grouped[v.Key], models.ObjectVersionSummary{
			VersionID:      v.VersionID,
			IsLatest:       v.IsLatest,
			IsDeleteMarker: v.IsDeleteMarker,
			LastModified:   v.LastModified,
			Size:           v.Size,
			ETag:           v.ETag,
		})
	}
	return grouped, nil
}

// ensureBucket проверяет существование бакета.
func (s *objectService) ensureBucket(ctx context.Context, bucket string) error {
	if _, err := s.buckets.GetBucketByName(ctx, bucket); err != nil {
		if errors.Is(err, repository.ErrBucketNotFound) {
			return ErrBucketNotFound
		}
		log.Printf("[ObjectService] Ошибка репозитория при проверке бакета '%s': %v", bucket, err)
		return fmt.Errorf("ошибка проверки бакета: %w", err)
	}
	return nil
}

// withTx выполняет fn внутри транзакции с гарантированным Rollback при ошибке.
func (s *objectService) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка открытия транзакции: %w", err)
	}

	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Printf("[ObjectService] Ошибка отката транзакции: %v", rbErr)
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("ошибка коммита транзакции: %w", err)
	}
	return nil
}

// Кастомные ошибки сервиса.
var (
	ErrBucketNotFound  = errors.New("бакет не найден")
	ErrBucketExists    = errors.New("бакет уже существует")
	ErrObjectNotFound  = errors.New("объект не найден")
	ErrVersionNotFound = errors.New("версия не найдена в истории ключа")
	ErrBlobMissing     = errors.New("метаданные ссылаются на отсутствующий блоб")
)
