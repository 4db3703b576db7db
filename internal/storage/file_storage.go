package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Расширение файла для блобов, сжатых zstd.
const zstdExt = ".zst"

// FileSystemStorage реализует FileStorage поверх локальной файловой системы.
// Запись идет во временный файл с последующим атомарным rename, поэтому
// читатель никогда не видит частично записанный блоб.
type FileSystemStorage struct {
	root     string
	compress bool
}

// NewFileSystemStorage создает хранилище с корнем root.
// При compress=true блобы сжимаются zstd на диске; для вызывающих
// сжатие прозрачно, размер и ETag всегда описывают исходный контент.
func NewFileSystemStorage(root string, compress bool) (*FileSystemStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("ошибка создания корневого каталога хранилища '%s': %w", root, err)
	}
	log.Printf("[FileStorage] Хранилище блобов инициализировано: root=%s, compress=%v", root, compress)
	return &FileSystemStorage{root: root, compress: compress}, nil
}

// Save сохраняет контент версии на диск.
// Схема каталогов: root/bucket/md5(key)/version_id[.zst].
func (s *FileSystemStorage) Save(
	_ context.Context,
	bucket, key, versionID string,
	reader io.Reader,
) (string, error) {
	storagePath := ObjectStoragePath(bucket, key, versionID)
	if s.compress {
		storagePath += zstdExt
	}

	finalPath := filepath.Join(s.root, filepath.FromSlash(storagePath))
	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return "", fmt.Errorf("ошибка создания каталога для блоба: %w", err)
	}

	// Пишем во временный файл рядом с целевым, чтобы rename остался
	// в пределах одной файловой системы.
	tmpPath := finalPath + ".tmp"
	if err := s.writeBlob(tmpPath, reader); err != nil {
		_ = os.Remove(tmpPath)
		return "", err
	}

	// Атомарная публикация.
	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("ошибка публикации блоба '%s': %w", storagePath, err)
	}

	log.Printf("[FileStorage] Блоб '%s' успешно записан", storagePath)
	return storagePath, nil
}

// writeBlob записывает контент во временный файл и сбрасывает его на диск.
func (s *FileSystemStorage) writeBlob(tmpPath string, reader io.Reader) error {
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла блоба: %w", err)
	}

	var dst io.Writer = f
	var zw *zstd.Encoder
	if s.compress {
		zw, err = zstd.NewWriter(f)
		if err != nil {
			_ = f.Close()
			return fmt.Errorf("ошибка инициализации zstd-компрессора: %w", err)
		}
		dst = zw
	}

	if _, err = io.Copy(dst, reader); err != nil {
		if zw != nil {
			_ = zw.Close()
		}
		_ = f.Close()
		return fmt.Errorf("ошибка записи контента блоба: %w", err)
	}
	if zw != nil {
		if err = zw.Close(); err != nil {
			_ = f.Close()
			return fmt.Errorf("ошибка завершения zstd-потока: %w", err)
		}
	}

	// Блоб должен быть долговечен до коммита метаданных, которые на него
	// ссылаются.
	if err = f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("ошибка синхронизации блоба на диск: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("ошибка закрытия файла блоба: %w", err)
	}
	return nil
}

// Load открывает блоб для чтения. Сжатые блобы распаковываются на лету.
func (s *FileSystemStorage) Load(_ context.Context, storagePath string) (io.ReadCloser, error) {
	fullPath := filepath.Join(s.root, filepath.FromSlash(storagePath))

	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("[FileStorage] Блоб '%s' не найден", storagePath)
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("ошибка открытия блоба '%s': %w", storagePath, err)
	}

	if strings.HasSuffix(storagePath, zstdExt) {
		dec, decErr := zstd.NewReader(f)
		if decErr != nil {
			_ = f.Close()
			return nil, fmt.Errorf("ошибка инициализации zstd-декомпрессора для '%s': %w", storagePath, decErr)
		}
		return &zstdReadCloser{dec: dec, f: f}, nil
	}

	return f, nil
}

// Delete удаляет блоб с диска. Отсутствующий блоб — не ошибка.
func (s *FileSystemStorage) Delete(_ context.Context, storagePath string) error {
	fullPath := filepath.Join(s.root, filepath.FromSlash(storagePath))

	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("ошибка удаления блоба '%s': %w", storagePath, err)
	}

	log.Printf("[FileStorage] Блоб '%s' удален", storagePath)
	return nil
}

// zstdReadCloser закрывает декомпрессор вместе с файлом на всех путях выхода.
type zstdReadCloser struct {
	dec *zstd.Decoder
	f   *os.File
}

func (r *zstdReadCloser) Read(p []byte) (int, error) {
	return r.dec.Read(p)
}

func (r *zstdReadCloser) Close() error {
	r.dec.Close()
	return r.f.Close()
}
