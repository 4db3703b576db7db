package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/antigravity/s3keeper/internal/services"
	"github.com/go-chi/chi/v5"
)

// S3Handler обрабатывает HTTP-запросы S3-совместимого протокола.
type S3Handler struct {
	service services.ObjectService
}

// NewS3Handler создает новый экземпляр S3Handler.
func NewS3Handler(s services.ObjectService) *S3Handler {
	return &S3Handler{service: s}
}

// CreateBucket обрабатывает PUT /{bucket} — создание бакета.
func (h *S3Handler) CreateBucket(w http.ResponseWriter, r *http.Request) {
	bucket := chi.URLParam(r, "bucket")
	log.Printf("[S3Handler:CreateBucket] Запрос на создание бакета '%s'", bucket)

	if err := h.service.CreateBucket(r.Context(), bucket); err != nil {
		if errors.Is(err, services.ErrBucketExists) {
			writeS3Error(w, http.StatusConflict, "BucketAlreadyExists", "Бакет с таким именем уже существует")
			return
		}
		log.Printf("[S3Handler:CreateBucket] Внутренняя ошибка при создании бакета '%s': %v", bucket, err)
		writeS3Error(w, http.StatusInternalServerError, "InternalError", "Внутренняя ошибка сервера")
		return
	}

	w.WriteHeader(http.StatusOK)
}

// ListObjects обрабатывает GET /{bucket} — листинг бакета.
// С параметром versions=true возвращается полная история, иначе только
// текущие объекты (ключи с маркером удаления в роли текущей версии скрыты).
func (h *S3Handler) ListObjects(w http.ResponseWriter, r *http.Request) {
	bucket := chi.URLParam(r, "bucket")
	withVersions, _ := strconv.ParseBool(r.URL.Query().Get("versions"))

	if withVersions {
		versions, err := h.service.ListObjectVersions(r.Context(), bucket)
		if err != nil {
			h.writeListError(w, bucket, err)
			return
		}
		writeXML(w, http.StatusOK, newListVersionsResult(bucket, versions))
		return
	}

	objects, err := h.service.ListObjects(r.Context(), bucket)
	if err != nil {
		h.writeListError(w, bucket, err)
		return
	}
	writeXML(w, http.StatusOK, newListBucketResult(bucket, objects))
}

// writeListError отправляет ошибку листинга.
func (h *S3Handler) writeListError(w http.ResponseWriter, bucket string, err error) {
	if errors.Is(err, services.ErrBucketNotFound) {
		writeS3Error(w, http.StatusNotFound, "NoSuchBucket", "Указанный бакет не существует")
		return
	}
	log.Printf("[S3Handler:ListObjects] Внутренняя ошибка при листинге бакета '%s': %v", bucket, err)
	writeS3Error(w, http.StatusInternalServerError, "InternalError", "Внутренняя ошибка сервера")
}

// PutObject обрабатывает PUT /{bucket}/{key} — загрузку новой версии объекта.
// Тело запроса — сырые байты контента.
func (h *S3Handler) PutObject(w http.ResponseWriter, r *http.Request) {
	bucket := chi.URLParam(r, "bucket")
	key := chi.URLParam(r, "*")
	contentType := r.Header.Get("Content-Type")

	log.Printf("[S3Handler:PutObject] Загрузка объекта %s/%s", bucket, key)

	version, err := h.service.PutObject(r.Context(), bucket, key, r.Body, contentType)
	if err != nil {
		if errors.Is(err, services.ErrBucketNotFound) {
			writeS3Error(w, http.StatusNotFound, "NoSuchBucket", "Указанный бакет не существует")
			return
		}
		log.Printf("[S3Handler:PutObject] Внутренняя ошибка при загрузке %s/%s: %v", bucket, key, err)
		writeS3Error(w, http.StatusInternalServerError, "InternalError", "Внутренняя ошибка сервера")
		return
	}

	w.Header().Set("x-amz-version-id", version.VersionID)
	w.Header().Set("ETag", version.ETag)
	w.WriteHeader(http.StatusOK)
}

// GetObject обрабатывает GET /{bucket}/{key} — скачивание версии объекта.
// Без параметра versionId возвращается текущая версия.
func (h *S3Handler) GetObject(w http.ResponseWriter, r *http.Request) {
	bucket := chi.URLParam(r, "bucket")
	key := chi.URLParam(r, "*")
	versionID := r.URL.Query().Get("versionId")

	reader, version, err := h.service.GetObject(r.Context(), bucket, key, versionID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrObjectNotFound):
			writeS3Error(w, http.StatusNotFound, "NoSuchKey", "Указанный ключ не существует")
		case errors.Is(err, services.ErrBlobMissing):
			log.Printf("[S3Handler:GetObject] Нарушение целостности для %s/%s: %v", bucket, key, err)
			writeS3Error(w, http.StatusInternalServerError, "InternalError", "Файл объекта отсутствует в хранилище")
		default:
			log.Printf("[S3Handler:GetObject] Внутренняя ошибка при скачивании %s/%s: %v", bucket, key, err)
			writeS3Error(w, http.StatusInternalServerError, "InternalError", "Внутренняя ошибка сервера")
		}
		return
	}
	defer func() {
		if closeErr := reader.Close(); closeErr != nil {
			log.Printf("[S3Handler:GetObject] Ошибка закрытия потока блоба: %v", closeErr)
		}
	}()

	w.Header().Set("x-amz-version-id", version.VersionID)
	w.Header().Set("ETag", version.ETag)
	w.Header().Set("Content-Type", version.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(version.Size, 10))

	if _, err = io.Copy(w, reader); err != nil {
		// Заголовки уже отправлены, остается только залогировать.
		log.Printf("[S3Handler:GetObject] Ошибка отправки контента %s/%s: %v", bucket, key, err)
	}
}

// DeleteObject обрабатывает DELETE /{bucket}/{key}.
// С параметром versionId версия удаляется физически (идемпотентно);
// без параметра добавляется маркер удаления как новая текущая версия.
func (h *S3Handler) DeleteObject(w http.ResponseWriter, r *http.Request) {
	bucket := chi.URLParam(r, "bucket")
	key := chi.URLParam(r, "*")
	versionID := r.URL.Query().Get("versionId")

	if versionID != "" {
		if err := h.service.DeleteVersion(r.Context(), bucket, key, versionID); err != nil {
			log.Printf("[S3Handler:DeleteObject] Внутренняя ошибка при удалении версии '%s' (%s/%s): %v",
				versionID, bucket, key, err)
			writeS3Error(w, http.StatusInternalServerError, "InternalError", "Внутренняя ошибка сервера")
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	marker, err := h.service.DeleteObject(r.Context(), bucket, key)
	if err != nil {
		if errors.Is(err, services.ErrBucketNotFound) {
			writeS3Error(w, http.StatusNotFound, "NoSuchBucket", "Указанный бакет не существует")
			return
		}
		log.Printf("[S3Handler:DeleteObject] Внутренняя ошибка при удалении %s/%s: %v", bucket, key, err)
		writeS3Error(w, http.StatusInternalServerError, "InternalError", "Внутренняя ошибка сервера")
		return
	}

	w.Header().Set("x-amz-version-id", marker.VersionID)
	w.Header().Set("x-amz-delete-marker", "true")
	w.WriteHeader(http.StatusNoContent)
}
