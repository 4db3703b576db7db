// Package config загружает конфигурацию сервера из YAML-файла.
// Переменные окружения имеют приоритет над значениями из файла.
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Переменные окружения, перекрывающие значения из файла.
const (
	EnvServerPort    = "SERVER_PORT"
	EnvTLSCertFile   = "TLS_CERT_FILE"
	EnvTLSKeyFile    = "TLS_KEY_FILE"
	EnvDatabaseDrv   = "DATABASE_DRIVER"
	EnvDatabaseDSN   = "DATABASE_DSN"
	EnvStorageRoot   = "STORAGE_ROOT"
	EnvJWTSecret     = "JWT_SECRET" //nolint:gosec // Это имя переменной окружения, а не секрет
	EnvMinioEndpoint = "MINIO_ENDPOINT"
	EnvMinioUser     = "MINIO_USER"
	EnvMinioPassword = "MINIO_PASSWORD"
)

// Значения по умолчанию (локальная разработка без конфиг-файла).
const (
	defaultPort          = "8000"
	defaultDBDriver      = "sqlite3"
	defaultDBDSN         = "s3keeper.db"
	defaultStorageRoot   = "data"
	defaultTokenTTLHours = 24
	// TODO: Потребовать явный секрет при запуске в продакшене.
	defaultJWTSecret = "your-very-secret-key"
)

// TLSConfig — пути к сертификату и ключу. Если оба заданы, сервер
// запускается по HTTPS, иначе — по HTTP.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// DatabaseConfig — параметры подключения к БД метаданных.
// Driver: "sqlite3" (встроенная БД, по умолчанию) или "postgres".
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// MinioConfig — параметры S3-бэкенда физического хранилища.
type MinioConfig struct {
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UseSSL          bool   `yaml:"use_ssl"`
	BucketName      string `yaml:"bucket_name"`
	Region          string `yaml:"region"`
}

// StorageConfig — параметры физического хранилища блобов.
// Backend: "fs" (файловая система, по умолчанию) или "minio".
type StorageConfig struct {
	Backend  string      `yaml:"backend"`
	Root     string      `yaml:"root"`
	Compress bool        `yaml:"compress"`
	Minio    MinioConfig `yaml:"minio"`
}

// AuthConfig — параметры аутентификации UI-консоли.
// Credentials (имя -> пароль) при старте сервера хешируются bcrypt
// и загружаются в таблицу пользователей.
type AuthConfig struct {
	JWTSecret     string            `yaml:"jwt_secret"`
	TokenTTLHours int               `yaml:"token_ttl_hours"`
	Credentials   map[string]string `yaml:"credentials"`
}

// Config хранит полную конфигурацию сервера.
type Config struct {
	Port     string         `yaml:"port"`
	TLS      TLSConfig      `yaml:"tls"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Auth     AuthConfig     `yaml:"auth"`
}

// Load читает конфигурацию из YAML-файла по указанному пути.
// Пустой путь или отсутствующий файл — не ошибка: используются значения
// по умолчанию. Переменные окружения применяются поверх файла.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Port: defaultPort,
		Database: DatabaseConfig{
			Driver: defaultDBDriver,
			DSN:    defaultDBDSN,
		},
		Storage: StorageConfig{
			Backend: "fs",
			Root:    defaultStorageRoot,
		},
		Auth: AuthConfig{
			JWTSecret:     defaultJWTSecret,
			TokenTTLHours: defaultTokenTTLHours,
			// Учетная запись по умолчанию для локальной разработки.
			Credentials: map[string]string{"admin": "password"},
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("ошибка чтения конфиг-файла %s: %w", path, err)
			}
			log.Printf("[Config] Конфиг-файл '%s' не найден, используются значения по умолчанию", path)
		} else {
			if err = yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("ошибка разбора конфиг-файла %s: %w", path, err)
			}
		}
	}

	applyEnv(cfg)

	if cfg.Auth.TokenTTLHours <= 0 {
		cfg.Auth.TokenTTLHours = defaultTokenTTLHours
	}

	return cfg, nil
}

// TokenTTL возвращает время жизни токена как time.Duration.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLHours) * time.Hour
}

// applyEnv перекрывает поля конфигурации переменными окружения.
func applyEnv(cfg *Config) {
	overrideEnv(&cfg.Port, EnvServerPort)
	overrideEnv(&cfg.TLS.CertFile, EnvTLSCertFile)
	overrideEnv(&cfg.TLS.KeyFile, EnvTLSKeyFile)
	overrideEnv(&cfg.Database.Driver, EnvDatabaseDrv)
	overrideEnv(&cfg.Database.DSN, EnvDatabaseDSN)
	overrideEnv(&cfg.Storage.Root, EnvStorageRoot)
	overrideEnv(&cfg.Auth.JWTSecret, EnvJWTSecret)
	overrideEnv(&cfg.Storage.Minio.Endpoint, EnvMinioEndpoint)
	overrideEnv(&cfg.Storage.Minio.AccessKeyID, EnvMinioUser)
	overrideEnv(&cfg.Storage.Minio.SecretAccessKey, EnvMinioPassword)
}

// overrideEnv записывает значение переменной окружения в dst, если она задана.
func overrideEnv(dst *string, key string) {
	if value, ok := os.LookupEnv(key); ok {
		*dst = value
	}
}
