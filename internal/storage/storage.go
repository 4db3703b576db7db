package storage

import (
	"context"
	"crypto/md5" //nolint:gosec // MD5 хеширует ключ для имени каталога, не для криптографии
	"errors"
	"fmt"
	"io"
	"path"
)

// FileStorage определяет интерфейс физического хранилища блобов.
// Метаданные (БД) — источник истины: блоб записывается до коммита
// метаданных, удаляется после него.
type FileStorage interface {
	// Save сохраняет контент версии и возвращает путь к блобу
	// относительно корня хранилища.
	Save(ctx context.Context, bucket, key, versionID string, reader io.Reader) (string, error)
	// Load открывает блоб по пути, возвращенному Save.
	// Возвращает ErrObjectNotFound, если блоб отсутствует.
	// Возвращаемый ReadCloser обязан быть закрыт вызывающим.
	Load(ctx context.Context, storagePath string) (io.ReadCloser, error)
	// Delete удаляет блоб. Идемпотентна: удаление отсутствующего
	// блоба завершается успешно.
	Delete(ctx context.Context, storagePath string) error
}

// ObjectStoragePath строит путь блоба: bucket/md5(key)/version_id.
// Хешируется ключ (не версия): все версии одного ключа лежат в одном
// каталоге, а произвольные символы ключа не попадают в имена файлов.
// version_id уникален, поэтому коллизий внутри каталога нет.
func ObjectStoragePath(bucket, key, versionID string) string {
	keyHash := fmt.Sprintf("%x", md5.Sum([]byte(key))) //nolint:gosec // см. выше
	return path.Join(bucket, keyHash, versionID)
}

// Кастомная ошибка хранилища.
var (
	ErrObjectNotFound = errors.New("объект не найден в хранилище")
)
