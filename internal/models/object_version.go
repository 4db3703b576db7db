package models

import "time"

// ObjectVersion представляет одну версию объекта в бакете.
// Все версии с одинаковой парой (bucket_name, key) образуют цепочку версий,
// упорядоченную по last_modified (сначала новые). В любой непустой цепочке
// ровно одна версия помечена is_latest.
type ObjectVersion struct {
	ID         int64  `db:"id" json:"id"`
	BucketName string `db:"bucket_name" json:"bucket_name"`
	Key        string `db:"key" json:"key"`
	VersionID  string `db:"version_id" json:"version_id"`
	// IsLatest — признак текущей (последней) версии в цепочке.
	IsLatest bool `db:"is_latest" json:"is_latest"`
	// IsDeleteMarker — маркер удаления ("надгробие"): версия без контента,
	// означающая логическое удаление ключа. У маркера StoragePath всегда nil.
	IsDeleteMarker bool   `db:"is_delete_marker" json:"is_delete_marker"`
	Size           int64  `db:"size" json:"size"`
	ETag           string `db:"etag" json:"etag"`
	// LastModified — серверное время создания версии (UTC).
	LastModified time.Time `db:"last_modified" json:"last_modified"`
	ContentType  string    `db:"content_type" json:"content_type"`
	// StoragePath — путь к файлу относительно корня физического хранилища.
	// nil для маркеров удаления.
	StoragePath *string `db:"storage_path" json:"storage_path,omitempty"`
}

// ObjectVersionSummary — краткое представление версии для UI-эндпоинтов.
type ObjectVersionSummary struct {
	VersionID      string    `json:"version_id"`
	IsLatest       bool      `json:"is_latest"`
	IsDeleteMarker bool      `json:"is_delete_marker"`
	LastModified   time.Time `json:"last_modified"`
	Size           int64     `json:"size"`
	ETag           string    `json:"etag"`
}
