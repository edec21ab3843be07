package middleware_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"io"
	"strings"
	"testing"

	"github.com/aretw0/fsmsim/pkg/adapters/memory"
	"github.com/aretw0/fsmsim/pkg/domain"
	"github.com/aretw0/fsmsim/pkg/persistence/middleware"
	"github.com/aretw0/fsmsim/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		t.Fatal(err)
	}
	return k
}

func secretSession(id string) *domain.Session {
	m := domain.Machine{
		Name:   "vault",
		States: []domain.StateDef{{Name: "Locked", IsInitial: true}, {Name: "Open"}},
	}
	s := domain.NewSession(id, m, domain.SessionConfig{
		InitialVariables: map[string]any{"pin": 1234},
	})
	s.Record(domain.Command{Op: domain.OpSetVariable, Name: "secret", Value: "my-secret-sauce"}, domain.Snapshot{
		CurrentState: "Locked",
		Variables:    map[string]any{"pin": 1234, "secret": "my-secret-sauce"},
	})
	return s
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	mw := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	ports.RunSessionStoreContract(t, mw(memory.NewStore()))
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlyingStore := memory.NewStore()
	mw := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	secureStore := mw(underlyingStore)

	ctx := context.Background()
	original := secretSession("test-session")
	require.NoError(t, secureStore.Save(ctx, original))

	// The wrapped store only sees the envelope.
	stored, err := underlyingStore.Load(ctx, "test-session")
	require.NoError(t, err)
	assert.Empty(t, stored.Machine.Name)
	assert.Empty(t, stored.Machine.States)
	assert.Empty(t, stored.Journal)
	assert.Nil(t, stored.Snapshot.Variables)
	assert.Nil(t, stored.Config.InitialVariables)
	assert.True(t, stored.UpdatedAt.Equal(original.UpdatedAt))
	blob, ok := stored.Machine.Metadata[middleware.EnvelopeKey].(string)
	require.True(t, ok, "expected envelope in machine metadata")
	assert.NotContains(t, blob, "my-secret-sauce")

	loaded, err := secureStore.Load(ctx, "test-session")
	require.NoError(t, err)
	assert.Equal(t, "vault", loaded.Machine.Name)
	assert.Equal(t, "my-secret-sauce", loaded.Snapshot.Variables["secret"])
	assert.Equal(t, 1234, loaded.Config.InitialVariables["pin"])
	assert.Equal(t, original.Journal, loaded.Journal)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlyingStore := memory.NewStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)
	ctx := context.Background()

	secureStoreOld := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})(underlyingStore)
	require.NoError(t, secureStoreOld.Save(ctx, secretSession("rotation-session")))

	secureStoreNew := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlyingStore)

	loaded, err := secureStoreNew.Load(ctx, "rotation-session")
	require.NoError(t, err, "load with rotated key")
	assert.Equal(t, "my-secret-sauce", loaded.Snapshot.Variables["secret"])

	// Saving again re-encrypts with the new key.
	require.NoError(t, secureStoreNew.Save(ctx, loaded))
	_, err = secureStoreOld.Load(ctx, "rotation-session")
	assert.Error(t, err, "old key alone must not decrypt new-key data")
}

func TestEncryptionMiddleware_RefusesPlainSessions(t *testing.T) {
	underlyingStore := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, underlyingStore.Save(ctx, secretSession("plain")))

	secureStore := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlyingStore)
	_, err := secureStore.Load(ctx, "plain")
	assert.ErrorIs(t, err, middleware.ErrNotEncrypted)

	_, err = secureStore.Load(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	assert.Panics(t, func() {
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	})
}

func TestParseKey(t *testing.T) {
	key := generateKey(t)

	got, err := middleware.ParseKey(hex.EncodeToString(key))
	require.NoError(t, err)
	assert.Equal(t, key, got)

	got, err = middleware.ParseKey(" " + base64.StdEncoding.EncodeToString(key) + "\n")
	require.NoError(t, err)
	assert.Equal(t, key, got)

	_, err = middleware.ParseKey(base64.StdEncoding.EncodeToString(key[:16]))
	assert.ErrorContains(t, err, "must be 32 bytes")

	_, err = middleware.ParseKey(strings.Repeat("z", 10))
	assert.Error(t, err)
}

type countingStore struct {
	ports.SessionStore
	saves int
}

func (c *countingStore) Save(ctx context.Context, s *domain.Session) error {
	c.saves++
	return c.SessionStore.Save(ctx, s)
}

func TestChain(t *testing.T) {
	var order []string
	tag := func(name string) middleware.Middleware {
		return func(next ports.SessionStore) ports.SessionStore {
			order = append(order, name)
			return next
		}
	}
	base := &countingStore{SessionStore: memory.NewStore()}
	store := middleware.Chain(base, tag("outer"), tag("inner"))

	// Wrapping happens innermost first.
	assert.Equal(t, []string{"inner", "outer"}, order)
	require.NoError(t, store.Save(context.Background(), secretSession("chained")))
	assert.Equal(t, 1, base.saves)
}
