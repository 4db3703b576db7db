package handlers_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/antigravity/s3keeper/internal/handlers"
	"github.com/antigravity/s3keeper/internal/models"
	"github.com/antigravity/s3keeper/internal/services"
)

// newUIRouter собирает роутер UI-консоли с теми же шаблонами путей, что и сервер.
func newUIRouter(service services.ObjectService) http.Handler {
	h := handlers.NewUIHandler(service)
	r := chi.NewRouter()
	r.Get("/buckets", h.ListBuckets)
	r.Get("/{bucket}/objects", h.ListBucketObjects)
	r.Post("/{bucket}/rollback", h.Rollback)
	return r
}

func TestUIHandler_ListBuckets(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Список бакетов", func(t *testing.T) {
		service := new(MockObjectService)
		service.On("ListBuckets", mock.Anything).Return([]models.Bucket{
			{Name: "alpha", CreationDate: now},
			{Name: "beta", CreationDate: now},
		}, nil)

		req := httptest.NewRequest(http.MethodGet, "/buckets", http.NoBody)
		rr := httptest.NewRecorder()
		newUIRouter(service).ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

		var infos []struct {
			Name         string    `json:"name"`
			CreationDate time.Time `json:"creation_date"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &infos))
		require.Len(t, infos, 2)
		assert.Equal(t, "alpha", infos[0].Name)
		assert.True(t, infos[0].CreationDate.Equal(now))
	})

	t.Run("Внутренняя ошибка", func(t *testing.T) {
		service := new(MockObjectService)
		service.On("ListBuckets", mock.Anything).Return(nil, errors.New("db down"))

		req := httptest.NewRequest(http.MethodGet, "/buckets", http.NoBody)
		rr := httptest.NewRecorder()
		newUIRouter(service).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func TestUIHandler_ListBucketObjects(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("История, сгруппированная по ключам", func(t *testing.T) {
		service := new(MockObjectService)
		service.On("ListObjectsGrouped", mock.Anything, "b").
			Return(map[string][]models.ObjectVersionSummary{
				"k": {
					{VersionID: "v-2", IsLatest: true, LastModified: now, Size: 5, ETag: `"e2"`},
					{VersionID: "v-1", IsLatest: false, LastModified: now.Add(-time.Hour), Size: 3, ETag: `"e1"`},
				},
			}, nil)

		req := httptest.NewRequest(http.MethodGet, "/b/objects", http.NoBody)
		rr := httptest.NewRecorder()
		newUIRouter(service).ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)

		var grouped map[string][]models.ObjectVersionSummary
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &grouped))
		require.Contains(t, grouped, "k")
		require.Len(t, grouped["k"], 2)
		assert.True(t, grouped["k"][0].IsLatest)
		assert.Equal(t, "v-1", grouped["k"][1].VersionID)
	})

	t.Run("Внутренняя ошибка", func(t *testing.T) {
		service := new(MockObjectService)
		service.On("ListObjectsGrouped", mock.Anything, "b").Return(nil, errors.New("db down"))

		req := httptest.NewRequest(http.MethodGet, "/b/objects", http.NoBody)
		rr := httptest.NewRecorder()
		newUIRouter(service).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func TestUIHandler_Rollback(t *testing.T) {
	t.Run("Успешный откат", func(t *testing.T) {
		service := new(MockObjectService)
		service.On("Rollback", mock.Anything, "b", "k", "v-1").Return(nil)

		req := httptest.NewRequest(http.MethodPost, "/b/rollback?key=k&version_id=v-1", http.NoBody)
		rr := httptest.NewRecorder()
		newUIRouter(service).ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)

		var resp models.RollbackResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "success", resp.Status)
		assert.Contains(t, resp.Message, "v-1")
		service.AssertExpectations(t)
	})

	t.Run("Целевая версия не найдена", func(t *testing.T) {
		service := new(MockObjectService)
		service.On("Rollback", mock.Anything, "b", "k", "ghost").
			Return(services.ErrVersionNotFound)

		req := httptest.NewRequest(http.MethodPost, "/b/rollback?key=k&version_id=ghost", http.NoBody)
		rr := httptest.NewRecorder()
		newUIRouter(service).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("Отсутствуют обязательные параметры", func(t *testing.T) {
		for _, target := range []string{"/b/rollback", "/b/rollback?key=k", "/b/rollback?version_id=v-1"} {
			service := new(MockObjectService)
			req := httptest.NewRequest(http.MethodPost, target, http.NoBody)
			rr := httptest.NewRecorder()
			newUIRouter(service).ServeHTTP(rr, req)

			assert.Equal(t, http.StatusBadRequest, rr.Code, "target: %s", target)
			service.AssertNotCalled(t, "Rollback")
		}
	})

	t.Run("Внутренняя ошибка", func(t *testing.T) {
		service := new(MockObjectService)
		service.On("Rollback", mock.Anything, "b", "k", "v-1").Return(errors.New("db down"))

		req := httptest.NewRequest(http.MethodPost, "/b/rollback?key=k&version_id=v-1", http.NoBody)
		rr := httptest.NewRecorder()
		newUIRouter(service).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}
