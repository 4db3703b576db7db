package main

import (
	"flag"
	"os"
	"testing"

	"github.com/antigravity/s3keeper/internal/config"
	"github.com/stretchr/testify/assert"
)

// Вспомогательная функция для сброса флагов между тестами.
func resetFlags() {
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)
}

func TestParseFlags(t *testing.T) {
	// Сохраняем оригинальные аргументы командной строки
	originalArgs := os.Args

	t.Run("Все параметры из флагов", func(t *testing.T) {
		resetFlags()
		// Восстанавливаем os.Args после теста
		defer func() { os.Args = originalArgs }()

		os.Args = []string{
			"cmd",
			"-config=server.yaml",
			"-port=8080",
			"-cert-file=cert.pem",
			"-key-file=key.pem",
			"-database-driver=postgres",
			"-database-dsn=postgres://...",
			"-storage-root=/var/lib/s3keeper",
		}
		fv := parseFlags()
		assert.Equal(t, "server.yaml", fv.ConfigPath)
		assert.Equal(t, "8080", fv.Port)
		assert.Equal(t, "cert.pem", fv.CertFile)
		assert.Equal(t, "key.pem", fv.KeyFile)
		assert.Equal(t, "postgres", fv.DatabaseDriver)
		assert.Equal(t, "postgres://...", fv.DatabaseDSN)
		assert.Equal(t, "/var/lib/s3keeper", fv.StorageRoot)
	})

	t.Run("Без флагов все значения пустые", func(t *testing.T) {
		resetFlags()
		defer func() { os.Args = originalArgs }()
		os.Args = []string{"cmd"}

		fv := parseFlags()
		assert.Empty(t, fv.ConfigPath)
		assert.Empty(t, fv.Port)
		assert.Empty(t, fv.CertFile)
		assert.Empty(t, fv.KeyFile)
		assert.Empty(t, fv.DatabaseDriver)
		assert.Empty(t, fv.DatabaseDSN)
		assert.Empty(t, fv.StorageRoot)
	})
}

func TestFlagValuesApply(t *testing.T) {
	t.Run("Непустые флаги перекрывают конфигурацию", func(t *testing.T) {
		cfg := &config.Config{Port: "8000"}
		cfg.Database.Driver = "sqlite3"
		cfg.Database.DSN = "s3keeper.db"
		cfg.Storage.Root = "data"

		fv := &flagValues{
			Port:           "9090",
			CertFile:       "cert.pem",
			KeyFile:        "key.pem",
			DatabaseDriver: "postgres",
			DatabaseDSN:    "postgres://...",
			StorageRoot:    "/srv/blobs",
		}
		fv.apply(cfg)

		assert.Equal(t, "9090", cfg.Port)
		assert.Equal(t, "cert.pem", cfg.TLS.CertFile)
		assert.Equal(t, "key.pem", cfg.TLS.KeyFile)
		assert.Equal(t, "postgres", cfg.Database.Driver)
		assert.Equal(t, "postgres://...", cfg.Database.DSN)
		assert.Equal(t, "/srv/blobs", cfg.Storage.Root)
	})

	t.Run("Пустые флаги не трогают конфигурацию", func(t *testing.T) {
		cfg := &config.Config{Port: "8000"}
		cfg.Database.Driver = "sqlite3"
		cfg.Database.DSN = "s3keeper.db"
		cfg.Storage.Root = "data"

		fv := &flagValues{}
		fv.apply(cfg)

		assert.Equal(t, "8000", cfg.Port)
		assert.Empty(t, cfg.TLS.CertFile)
		assert.Equal(t, "sqlite3", cfg.Database.Driver)
		assert.Equal(t, "s3keeper.db", cfg.Database.DSN)
		assert.Equal(t, "data", cfg.Storage.Root)
	})
}
