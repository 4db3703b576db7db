package repository

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	// Импорт драйверов регистрирует их в database/sql.
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

const (
	maxOpenConns    = 25              // Максимальное количество открытых соединений
	maxIdleConns    = 25              // Максимальное количество простаивающих соединений
	connMaxLifetime = 5 * time.Minute // Максимальное время жизни соединения
	connMaxIdleTime = 5 * time.Minute // Максимальное время простоя соединения
)

// Коды ошибок PostgreSQL.
const (
	pgUniqueViolationCode = "23505"
)

// NewDB создает подключение к БД метаданных и разворачивает схему.
// Поддерживаемые драйверы: "sqlite3" (встроенная БД) и "postgres".
func NewDB(driver, dsn string) (*sqlx.DB, error) {
	log.Printf("Подключение к БД (драйвер: %s)...", driver)

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	// Проверка соединения
	if err = db.Ping(); err != nil {
		closeErr := db.Close()
		if closeErr != nil {
			log.Printf("Ошибка закрытия соединения с БД после неудачного пинга: %v", closeErr)
		}
		return nil, fmt.Errorf("ошибка проверки соединения с БД (ping): %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	// Разворачиваем схему (идемпотентно).
	if err = createTables(db); err != nil {
		closeErr := db.Close()
		if closeErr != nil {
			log.Printf("Ошибка закрытия соединения с БД после неудачной миграции: %v", closeErr)
		}
		return nil, fmt.Errorf("ошибка создания таблиц: %w", err)
	}

	log.Println("Подключение к БД успешно установлено.")
	return db, nil
}

// DDL различается между диалектами только автоинкрементным первичным ключом.
const schemaTemplate = `
CREATE TABLE IF NOT EXISTS buckets (
    name TEXT PRIMARY KEY,
    creation_date TIMESTAMP NOT NULL,
    versioning_enabled BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS object_versions (
    id %s,
    bucket_name TEXT NOT NULL REFERENCES buckets(name),
    key TEXT NOT NULL,
    version_id TEXT NOT NULL UNIQUE,
    is_latest BOOLEAN NOT NULL DEFAULT FALSE,
    is_delete_marker BOOLEAN NOT NULL DEFAULT FALSE,
    size BIGINT NOT NULL DEFAULT 0,
    etag TEXT NOT NULL DEFAULT '',
    last_modified TIMESTAMP NOT NULL,
    content_type TEXT NOT NULL DEFAULT 'application/octet-stream',
    storage_path TEXT
);

CREATE INDEX IF NOT EXISTS idx_object_versions_chain
    ON object_versions (bucket_name, key);

CREATE TABLE IF NOT EXISTS users (
    id %s,
    username TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);
`

// createTables разворачивает схему с учетом диалекта драйвера.
func createTables(db *sqlx.DB) error {
	pk := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if db.DriverName() == "postgres" {
		pk = "BIGSERIAL PRIMARY KEY"
	}
	schema := fmt.Sprintf(schemaTemplate, pk, pk)

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("ошибка выполнения DDL: %w", err)
	}
	return nil
}

// isUniqueViolation распознает нарушение уникальности для обоих драйверов.
func isUniqueViolation(err error) bool {
	var pgErr *pq.Error
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode {
		return true
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
