package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmcart/farmcart/pkg/dispatch"
)

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func stores(t *testing.T) map[string]TokenStore {
	t.Helper()
	sqlite, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })
	return map[string]TokenStore{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func TestTokenStore_Contract(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := store.Get(ctx, TokenKey)
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, store.Set(ctx, TokenKey, "first"))
			require.NoError(t, store.Set(ctx, TokenKey, "second"))
			got, err := store.Get(ctx, TokenKey)
			require.NoError(t, err)
			assert.Equal(t, "second", got)

			require.NoError(t, store.Delete(ctx, TokenKey))
			require.NoError(t, store.Delete(ctx, TokenKey), "deleting twice is fine")
			_, err = store.Get(ctx, TokenKey)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestSQLiteStore_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	ctx := context.Background()

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, TokenKey, "kept"))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(ctx, TokenKey)
	require.NoError(t, err)
	assert.Equal(t, "kept", got)
}

func TestSource_MissingTokenIsEmpty(t *testing.T) {
	tok, err := Source{Store: NewMemoryStore()}.Token(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tok)

	tok, err = Source{}.Token(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestParseClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	tok := signed(t, jwt.MapClaims{"id": 42, "role": "farmer", "name": "Asha", "exp": exp.Unix()})

	claims, err := ParseClaims(tok)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.User())
	assert.Equal(t, "farmer", claims.Role)
	assert.Equal(t, "Asha", claims.Name)
	assert.False(t, claims.Expired(time.Now()))
	assert.True(t, claims.Expired(exp.Add(time.Second)))
}

func TestParseClaims_SubjectFallbackAndNoExpiry(t *testing.T) {
	claims, err := ParseClaims(signed(t, jwt.MapClaims{"sub": "user-7", "role": "customer"}))
	require.NoError(t, err)
	assert.Equal(t, "user-7", claims.User())
	assert.False(t, claims.Expired(time.Now().Add(100*365*24*time.Hour)))
}

func TestParseClaims_Invalid(t *testing.T) {
	_, err := ParseClaims("")
	assert.ErrorIs(t, err, ErrNoToken)

	_, err = ParseClaims("not-a-jwt")
	assert.Error(t, err)
}

func TestEffects(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	tok := signed(t, jwt.MapClaims{"id": 1, "role": "delivery"})

	require.NoError(t, dispatch.RunEffects(ctx, []dispatch.Effect{PersistToken(store, tok)}))
	got, claims, err := Current(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, tok, got)
	assert.Equal(t, "delivery", claims.Role)

	require.NoError(t, dispatch.RunEffects(ctx, []dispatch.Effect{ForgetToken(store)}))
	_, _, err = Current(ctx, store)
	assert.ErrorIs(t, err, ErrNoToken)
}
