package customer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-checkout/internal/storage"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "customer-1",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	signed, err := tok.SignedString([]byte("backend-secret"))
	require.NoError(t, err)
	return signed
}

func TestLoadGuestWhenNoToken(t *testing.T) {
	store := NewStore(storage.NewMemory(), nil)
	sess, err := store.Load(context.Background(), "acme")
	require.NoError(t, err)
	assert.False(t, sess.IsAuthenticated())
	assert.Nil(t, sess.Profile)
}

func TestSaveLoadDropRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	store := NewStore(kv, nil)

	profile := &Profile{Email: "ana@example.com", FirstName: "Ana", LastName: "Diaz"}
	require.NoError(t, store.Save(ctx, "acme", Session{Token: " tok ", Profile: profile}))

	raw, err := kv.Get(ctx, "customer_token_acme")
	require.NoError(t, err)
	assert.Equal(t, "tok", raw)

	sess, err := store.Load(ctx, "acme")
	require.NoError(t, err)
	assert.True(t, sess.IsAuthenticated())
	require.NotNil(t, sess.Profile)
	assert.Equal(t, "Ana Diaz", sess.Profile.FullName())

	other, err := store.Load(ctx, "globex")
	require.NoError(t, err)
	assert.False(t, other.IsAuthenticated())

	require.NoError(t, store.Drop(ctx, "acme"))
	sess, err = store.Load(ctx, "acme")
	require.NoError(t, err)
	assert.False(t, sess.IsAuthenticated())
}

type batchingKV struct {
	*storage.Memory
	batches [][]storage.Op
	fail    bool
}

func (b *batchingKV) Batch(ctx context.Context, ops []storage.Op) error {
	b.batches = append(b.batches, ops)
	if b.fail {
		return errors.New("tx aborted")
	}
	return b.Memory.Batch(ctx, ops)
}

func TestSaveWritesTokenAndProfileInOneBatch(t *testing.T) {
	ctx := context.Background()
	kv := &batchingKV{Memory: storage.NewMemory()}
	store := NewStore(kv, nil)

	require.NoError(t, store.Save(ctx, "acme", Session{Token: "tok", Profile: &Profile{Email: "ana@example.com"}}))
	require.Len(t, kv.batches, 1)
	assert.Equal(t, []string{TokenKey("acme"), ProfileKey("acme")},
		[]string{kv.batches[0][0].Key, kv.batches[0][1].Key})

	require.NoError(t, store.Save(ctx, "acme", Session{Token: "tok-2"}))
	require.Len(t, kv.batches, 2)
	assert.True(t, kv.batches[1][1].Delete, "a session without profile drops the cached one")
	_, err := kv.Get(ctx, ProfileKey("acme"))
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.Drop(ctx, "acme"))
	assert.Len(t, kv.batches, 3)
	assert.Zero(t, kv.Len())
}

func TestSaveFailureIsDependencyError(t *testing.T) {
	kv := &batchingKV{Memory: storage.NewMemory(), fail: true}
	err := NewStore(kv, nil).Save(context.Background(), "acme", Session{Token: "tok"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.Zero(t, kv.Len())
}

func TestSaveRequiresToken(t *testing.T) {
	err := NewStore(storage.NewMemory(), nil).Save(context.Background(), "acme", Session{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestMalformedProfileKeepsToken(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	require.NoError(t, kv.Set(ctx, TokenKey("acme"), "tok"))
	require.NoError(t, kv.Set(ctx, ProfileKey("acme"), "{broken"))

	sess, err := NewStore(kv, nil).Load(ctx, "acme")
	require.NoError(t, err)
	assert.True(t, sess.IsAuthenticated())
	assert.Nil(t, sess.Profile)
}

func TestTokenExpired(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	expired := Session{Token: signedToken(t, now.Add(-time.Minute))}
	assert.True(t, expired.TokenExpired(now))

	fresh := Session{Token: signedToken(t, now.Add(time.Hour))}
	assert.False(t, fresh.TokenExpired(now))

	assert.False(t, Session{Token: "opaque-token"}.TokenExpired(now))
	assert.False(t, Session{}.TokenExpired(now))
}

func TestFullNameOnNilProfile(t *testing.T) {
	var p *Profile
	assert.Equal(t, "", p.FullName())
	assert.Equal(t, "Ana", (&Profile{FirstName: "Ana"}).FullName())
}
