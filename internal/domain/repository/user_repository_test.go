package repository

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"capturesque/internal/common"
	"capturesque/internal/domain/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPgUserRepository(db), mock
}

const (
	insertUserRe = `(?s)^INSERT\s+INTO\s+users\s*\(email,\s*hashed_password\)\s*VALUES\s*\(\$1,\s*\$2\)\s*RETURNING\s+id,\s*created_at\s*$`
	selectByMail = `(?s)^SELECT\s+id,\s*email,\s*hashed_password,\s*created_at\s+FROM\s+users\s+WHERE\s+email\s*=\s*\$1\s*$`
)

func TestPgCreate_Success(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(insertUserRe).
		WithArgs("alice@example.com", "hash").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(7), now))

	u := &model.User{Email: "alice@example.com", HashedPassword: "hash"}
	require.NoError(t, repo.Create(context.Background(), u))
	assert.Equal(t, int64(7), u.ID)
	assert.Equal(t, now, u.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCreate_UniqueViolationIsConflict(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(insertUserRe).
		WithArgs("alice@example.com", "hash").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Create(context.Background(), &model.User{Email: "alice@example.com", HashedPassword: "hash"})
	assert.ErrorIs(t, err, common.ErrConflict)
}

func TestPgCreate_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(insertUserRe).
		WithArgs("alice@example.com", "hash").
		WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), &model.User{Email: "alice@example.com", HashedPassword: "hash"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrConflict)
	assert.Contains(t, err.Error(), "db down")
}

func TestPgFindByEmail(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(selectByMail).
		WithArgs("alice@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "hashed_password", "created_at"}).
			AddRow(int64(3), "alice@example.com", "hash", now))

	u, err := repo.FindByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(3), u.ID)
	assert.Equal(t, "hash", u.HashedPassword)
}

func TestPgFindByEmail_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(selectByMail).
		WithArgs("ghost@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByEmail(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestMemoryRepository_UniqueEmail(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	first := &model.User{Email: "foo@x.com", HashedPassword: "h"}
	require.NoError(t, repo.Create(ctx, first))
	assert.Equal(t, int64(1), first.ID)

	err := repo.Create(ctx, &model.User{Email: "foo@x.com", HashedPassword: "h2"})
	assert.ErrorIs(t, err, common.ErrConflict)

	got, err := repo.FindByEmail(ctx, "foo@x.com")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, "h", got.HashedPassword)

	_, err = repo.FindByEmail(ctx, "nobody@x.com")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestMemoryRepository_ConcurrentRegistrationsSingleWinner(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := repo.Create(ctx, &model.User{Email: "race@x.com", HashedPassword: "h"}); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, successes)
}
