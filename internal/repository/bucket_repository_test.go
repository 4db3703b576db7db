package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antigravity/s3keeper/internal/models"
	"github.com/antigravity/s3keeper/internal/repository"
)

// Вспомогательная функция для создания мока БД и репозитория бакетов.
func setupBucketRepoMock(t *testing.T) (repository.BucketRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "sqlmock")
	return repository.NewBucketRepository(sqlxDB), mock
}

func TestCreateBucket(t *testing.T) {
	now := time.Now().UTC()
	bucket := &models.Bucket{Name: "my-bucket", CreationDate: now, VersioningEnabled: true}

	tests := []struct {
		name        string
		mockSetup   func(mock sqlmock.Sqlmock)
		expectedErr error
	}{
		{
			name: "Успешное создание",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO buckets`).
					WithArgs(bucket.Name, bucket.CreationDate, bucket.VersioningEnabled).
					WillReturnResult(sqlmock.NewResult(1, 1))
			},
			expectedErr: nil,
		},
		{
			name: "Бакет уже существует (postgres)",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO buckets`).
					WithArgs(bucket.Name, bucket.CreationDate, bucket.VersioningEnabled).
					WillReturnError(&pq.Error{Code: "23505"}) // unique_violation
			},
			expectedErr: repository.ErrBucketExists,
		},
		{
			name: "Бакет уже существует (sqlite)",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO buckets`).
					WithArgs(bucket.Name, bucket.CreationDate, bucket.VersioningEnabled).
					WillReturnError(sqlite3.Error{
						Code:         sqlite3.ErrConstraint,
						ExtendedCode: sqlite3.ErrConstraintPrimaryKey,
					})
			},
			expectedErr: repository.ErrBucketExists,
		},
		{
			name: "Другая ошибка базы данных",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO buckets`).
					WithArgs(bucket.Name, bucket.CreationDate, bucket.VersioningEnabled).
					WillReturnError(errors.New("connection error"))
			},
			expectedErr: errors.New("ошибка выполнения запроса на создание бакета"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := setupBucketRepoMock(t)
			tt.mockSetup(mock)

			err := repo.CreateBucket(context.Background(), bucket)

			if tt.expectedErr != nil {
				require.Error(t, err)
				if errors.Is(tt.expectedErr, repository.ErrBucketExists) {
					require.ErrorIs(t, err, repository.ErrBucketExists)
				} else {
					assert.Contains(t, err.Error(), tt.expectedErr.Error())
				}
			} else {
				require.NoError(t, err)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGetBucketByName(t *testing.T) {
	now := time.Now().UTC()

	t.Run("Бакет найден", func(t *testing.T) {
		repo, mock := setupBucketRepoMock(t)
		rows := sqlmock.NewRows([]string{"name", "creation_date", "versioning_enabled"}).
			AddRow("my-bucket", now, true)
		mock.ExpectQuery(`SELECT name, creation_date, versioning_enabled FROM buckets WHERE name=`).
			WithArgs("my-bucket").
			WillReturnRows(rows)

		bucket, err := repo.GetBucketByName(context.Background(), "my-bucket")
		require.NoError(t, err)
		assert.Equal(t, "my-bucket", bucket.Name)
		assert.True(t, bucket.VersioningEnabled)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Бакет не найден", func(t *testing.T) {
		repo, mock := setupBucketRepoMock(t)
		mock.ExpectQuery(`SELECT name, creation_date, versioning_enabled FROM buckets WHERE name=`).
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetBucketByName(context.Background(), "missing")
		require.ErrorIs(t, err, repository.ErrBucketNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Ошибка базы данных", func(t *testing.T) {
		repo, mock := setupBucketRepoMock(t)
		mock.ExpectQuery(`SELECT name, creation_date, versioning_enabled FROM buckets WHERE name=`).
			WithArgs("my-bucket").
			WillReturnError(errors.New("connection error"))

		_, err := repo.GetBucketByName(context.Background(), "my-bucket")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ошибка выполнения запроса на получение бакета")
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestListBuckets(t *testing.T) {
	now := time.Now().UTC()

	t.Run("Несколько бакетов", func(t *testing.T) {
		repo, mock := setupBucketRepoMock(t)
		rows := sqlmock.NewRows([]string{"name", "creation_date", "versioning_enabled"}).
			AddRow("alpha", now, true).
			AddRow("beta", now, true)
		mock.ExpectQuery(`SELECT name, creation_date, versioning_enabled FROM buckets ORDER BY name`).
			WillReturnRows(rows)

		buckets, err := repo.ListBuckets(context.Background())
		require.NoError(t, err)
		require.Len(t, buckets, 2)
		assert.Equal(t, "alpha", buckets[0].Name)
		assert.Equal(t, "beta", buckets[1].Name)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Пустой список", func(t *testing.T) {
		repo, mock := setupBucketRepoMock(t)
		mock.ExpectQuery(`SELECT name, creation_date, versioning_enabled FROM buckets ORDER BY name`).
			WillReturnRows(sqlmock.NewRows([]string{"name", "creation_date", "versioning_enabled"}))

		buckets, err := repo.ListBuckets(context.Background())
		require.NoError(t, err)
		assert.Empty(t, buckets)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
