package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/antigravity/s3keeper/internal/models"
	"github.com/antigravity/s3keeper/internal/services"
	"github.com/go-chi/chi/v5"
)

// UIHandler обрабатывает JSON-эндпоинты UI-консоли: read-only проекции
// метаданных и откат истории ключа.
type UIHandler struct {
	service services.ObjectService
}

// NewUIHandler создает новый экземпляр UIHandler.
func NewUIHandler(s services.ObjectService) *UIHandler {
	return &UIHandler{service: s}
}

// bucketInfo — проекция бакета для UI.
type bucketInfo struct {
	Name         string    `json:"name"`
	CreationDate time.Time `json:"creation_date"`
}

// ListBuckets обрабатывает GET /api/ui/buckets — список бакетов.
func (h *UIHandler) ListBuckets(w http.ResponseWriter, r *http.Request) {
	buckets, err := h.service.ListBuckets(r.Context())
	if err != nil {
		log.Printf("[UIHandler:ListBuckets] Внутренняя ошибка при получении списка бакетов: %v", err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	infos := make([]bucketInfo, 0, len(buckets))
	for _, b := range buckets {
		infos = append(infos, bucketInfo{Name: b.Name, CreationDate: b.CreationDate})
	}

	writeJSON(w, http.StatusOK, infos)
}

// ListBucketObjects обрабатывает GET /api/ui/{bucket}/objects — историю
// бакета, сгруппированную по ключам.
func (h *UIHandler) ListBucketObjects(w http.ResponseWriter, r *http.Request) {
	bucket := chi.URLParam(r, "bucket")

	grouped, err := h.service.ListObjectsGrouped(r.Context(), bucket)
	if err != nil {
		log.Printf("[UIHandler:ListBucketObjects] Внутренняя ошибка для бакета '%s': %v", bucket, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, grouped)
}

// Rollback обрабатывает POST /api/ui/{bucket}/rollback?key=&version_id= —
// откат истории ключа к указанной версии.
func (h *UIHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	bucket := chi.URLParam(r, "bucket")
	key := r.URL.Query().Get("key")
	versionID := r.URL.Query().Get("version_id")

	if key == "" || versionID == "" {
		http.Error(w, "Параметры key и version_id обязательны", http.StatusBadRequest)
		return
	}

	log.Printf("[UIHandler:Rollback] Запрос на откат %s/%s к версии '%s'", bucket, key, versionID)

	if err := h.service.Rollback(r.Context(), bucket, key, versionID); err != nil {
		if errors.Is(err, services.ErrVersionNotFound) {
			log.Printf("[UIHandler:Rollback] Версия '%s' не найдена в истории %s/%s", versionID, bucket, key)
			http.Error(w, "Целевая версия не найдена в истории", http.StatusNotFound)
			return
		}
		log.Printf("[UIHandler:Rollback] Внутренняя ошибка при откате %s/%s: %v", bucket, key, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, models.RollbackResponse{
		Status:  "success",
		Message: fmt.Sprintf("Rolled back to %s, newer versions deleted.", versionID),
	})
}

// writeJSON отправляет JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[UIHandler] Ошибка кодирования JSON-ответа: %v", err)
	}
}
