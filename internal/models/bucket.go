package models

import "time"

// Bucket представляет бакет объектного хранилища.
// Тэги `db` используются для маппинга с полями БД с помощью sqlx.
type Bucket struct {
	Name              string    `db:"name" json:"name"`
	CreationDate      time.Time `db:"creation_date" json:"creation_date"`
	VersioningEnabled bool      `db:"versioning_enabled" json:"versioning_enabled"`
}
