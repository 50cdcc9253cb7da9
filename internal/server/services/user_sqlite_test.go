package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
)

// newSQLiteService runs the real repositories and migrations against a
// private in-memory database.
func newSQLiteService(t *testing.T) *UserService {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, dialect, err := dbx.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name), dbx.PoolOptions{MaxIdleConns: 2})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	m := repomanager.NewSQLRepositoryManager(dialect)
	require.NoError(t, m.RunMigrations(context.Background(), db))

	// one connection serialises writers, as a shared-cache database would
	// otherwise report table locks instead of waiting
	db.SetMaxOpenConns(1)

	s, err := NewUserService(db, m, newTestHasher(t), newTestIssuer(t), logging.Nop(), 5*time.Second)
	require.NoError(t, err)
	return s
}

func TestSQLite_RegisterThenLogin(t *testing.T) {
	s := newSQLiteService(t)
	ctx := context.Background()

	u, err := s.Register(ctx, "a@x.com", "p1", "student")
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.Equal(t, models.RoleStudent, u.Role)

	tok, err := s.Login(ctx, "a@x.com", "p1")
	require.NoError(t, err)

	claims, err := s.ResolveToken(tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", claims.Subject)
	assert.Equal(t, models.RoleStudent, claims.Role)
	assert.Equal(t, u.ID, claims.UserID)

	_, err = s.Login(ctx, "a@x.com", "wrong")
	require.ErrorIs(t, err, common.ErrInvalidCredentials)
}

func TestSQLite_DuplicateLeavesOneRecord(t *testing.T) {
	s := newSQLiteService(t)
	ctx := context.Background()

	_, err := s.Register(ctx, "dup@x.com", "first", "")
	require.NoError(t, err)
	_, err = s.Register(ctx, "dup@x.com", "second", "admin")
	require.ErrorIs(t, err, common.ErrDuplicateEmail)

	var n int
	require.NoError(t, s.db.GetContext(ctx, &n, s.db.Rebind("SELECT COUNT(*) FROM users WHERE email = ?"), "dup@x.com"))
	assert.Equal(t, 1, n)

	// the first password is still the valid one
	_, err = s.Login(ctx, "dup@x.com", "first")
	require.NoError(t, err)
}

func TestSQLite_ConcurrentRegistration(t *testing.T) {
	s := newSQLiteService(t)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Register(ctx, "race@x.com", fmt.Sprintf("pw%d", i), "")
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, common.ErrDuplicateEmail)
	}
	assert.Equal(t, 1, ok)
}

func TestSQLite_LookupsHideHash(t *testing.T) {
	s := newSQLiteService(t)
	ctx := context.Background()

	u, err := s.Register(ctx, "admin@x.com", "admin123", "admin")
	require.NoError(t, err)

	byID, err := s.GetByID(ctx, u.ID)
	require.NoError(t, err)
	byEmail, err := s.GetByEmail(ctx, "admin@x.com")
	require.NoError(t, err)

	for _, got := range []*models.User{byID, byEmail} {
		assert.Empty(t, got.PasswordHash)
		assert.Equal(t, models.RoleAdmin, got.Role)
	}

	_, err = s.GetByID(ctx, u.ID+100)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestSQLite_VerifiesBcryptHashesWrittenEarlier(t *testing.T) {
	s := newSQLiteService(t)
	ctx := context.Background()

	bc, err := auth.NewPasswordHasher(auth.AlgorithmBcrypt, auth.WithBcryptCost(4))
	require.NoError(t, err)
	hash, err := bc.Hash("legacy")
	require.NoError(t, err)

	_, err = s.repomanager.Users(s.db).Create(ctx, &models.User{Email: "old@x.com", PasswordHash: hash, Role: models.RoleStudent})
	require.NoError(t, err)

	_, err = s.Login(ctx, "old@x.com", "legacy")
	require.NoError(t, err)
}
