package main

import (
	"flag"
	"fmt"

	"github.com/antigravity/s3keeper/internal/config"
)

// flagValues хранит значения флагов командной строки.
// Непустые значения перекрывают конфиг-файл и переменные окружения.
type flagValues struct {
	ConfigPath     string
	Port           string
	CertFile       string
	KeyFile        string
	DatabaseDriver string
	DatabaseDSN    string
	StorageRoot    string
}

// parseFlags разбирает флаги командной строки.
func parseFlags() *flagValues {
	fv := &flagValues{}

	// Определяем флаги
	flag.StringVar(&fv.ConfigPath, "config", "",
		"Путь к YAML-файлу конфигурации (необязательно)")
	flag.StringVar(&fv.Port, "port", "",
		fmt.Sprintf("Порт для запуска сервера (env: %s)", config.EnvServerPort))
	flag.StringVar(&fv.CertFile, "cert-file", "",
		fmt.Sprintf("Путь к файлу TLS-сертификата (env: %s); без него сервер работает по HTTP", config.EnvTLSCertFile))
	flag.StringVar(&fv.KeyFile, "key-file", "",
		fmt.Sprintf("Путь к файлу TLS-ключа (env: %s)", config.EnvTLSKeyFile))
	flag.StringVar(&fv.DatabaseDriver, "database-driver", "",
		fmt.Sprintf("Драйвер БД метаданных: sqlite3 или postgres (env: %s)", config.EnvDatabaseDrv))
	flag.StringVar(&fv.DatabaseDSN, "database-dsn", "",
		fmt.Sprintf("Строка подключения к БД метаданных (env: %s)", config.EnvDatabaseDSN))
	flag.StringVar(&fv.StorageRoot, "storage-root", "",
		fmt.Sprintf("Корневой каталог файлового хранилища блобов (env: %s)", config.EnvStorageRoot))

	// Парсим флаги
	flag.Parse()

	return fv
}

// apply перекрывает поля конфигурации непустыми значениями флагов.
func (fv *flagValues) apply(cfg *config.Config) {
	if fv.Port != "" {
		cfg.Port = fv.Port
	}
	if fv.CertFile != "" {
		cfg.TLS.CertFile = fv.CertFile
	}
	if fv.KeyFile != "" {
		cfg.TLS.KeyFile = fv.KeyFile
	}
	if fv.DatabaseDriver != "" {
		cfg.Database.Driver = fv.DatabaseDriver
	}
	if fv.DatabaseDSN != "" {
		cfg.Database.DSN = fv.DatabaseDSN
	}
	if fv.StorageRoot != "" {
		cfg.Storage.Root = fv.StorageRoot
	}
}
