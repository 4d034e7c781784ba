package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/lehigh-university-libraries/shelfsense/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyIsStable(t *testing.T) {
	type req struct {
		Prompt string `json:"prompt"`
		JSON   bool   `json:"json"`
	}
	a, err := Key(req{Prompt: "hello", JSON: true})
	require.NoError(t, err)
	b, err := Key(req{Prompt: "hello", JSON: true})
	require.NoError(t, err)
	c, err := Key(req{Prompt: "hello", JSON: false})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(50 * time.Millisecond)
	defer m.Close()

	require.NoError(t, SetEntry(ctx, m, "k", Entry{Content: "c", ProviderLabel: "Gemini (m)"}))
	got, ok, err := GetEntry(ctx, m, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "c", got.Content)
	assert.Equal(t, "Gemini (m)", got.ProviderLabel)

	time.Sleep(80 * time.Millisecond)
	_, ok, err = GetEntry(ctx, m, "k")
	require.NoError(t, err)
	assert.False(t, ok, "entry should have expired")
}

func TestMemoryDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Hour)
	defer m.Close()

	require.NoError(t, m.Set(ctx, "a", []byte("1")))
	assert.Equal(t, 1, m.Len())
	require.NoError(t, m.Delete(ctx, "a"))
	_, ok, _ := m.Get(ctx, "a")
	assert.False(t, ok)
	// closing twice is harmless
	assert.NoError(t, m.Close())
}

func TestRedisStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	store, err := New(Config{
		Backend: BackendRedis,
		TTL:     time.Minute,
		Redis:   RedisConfig{Addr: mr.Addr(), Prefix: "test:"},
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	if err := SetEntry(ctx, store, "abc", Entry{Content: "hello", ProviderLabel: "Groq (llama)"}); err != nil {
		t.Fatalf("SetEntry error: %v", err)
	}
	if !mr.Exists("test:ai:abc") {
		t.Fatalf("expected prefixed key in redis, keys=%v", mr.Keys())
	}

	got, ok, err := GetEntry(ctx, store, "abc")
	if err != nil || !ok {
		t.Fatalf("GetEntry: ok=%v err=%v", ok, err)
	}
	if got.Content != "hello" {
		t.Fatalf("unexpected entry: %+v", got)
	}

	mr.FastForward(2 * time.Minute)
	if _, ok, _ := GetEntry(ctx, store, "abc"); ok {
		t.Fatalf("expected entry to expire")
	}
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	_, err := New(Config{Backend: "etcd"})
	assert.Error(t, err)

	_, err = New(Config{Backend: BackendRedis})
	assert.Error(t, err)
}

func TestIntents(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Hour)
	defer m.Close()

	intents := NewIntents(m, "")
	got, err := intents.Get(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, models.IntentGeneral, got)

	require.NoError(t, intents.Set(ctx, "client-1", models.IntentKeto))
	got, err = intents.Get(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, models.IntentKeto, got)

	require.NoError(t, m.Set(ctx, "intent:client-2", []byte("carnivore")))
	got, err = intents.Get(ctx, "client-2")
	require.NoError(t, err)
	assert.Equal(t, models.IntentGeneral, got)
}

func TestIntentsOutliveResponseTTL(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(20 * time.Millisecond)
	defer m.Close()

	intents := NewIntents(m, "")
	require.NoError(t, intents.Set(ctx, "client-1", models.IntentVegan))
	require.NoError(t, m.Set(ctx, "ai:abc", []byte("cached")))

	time.Sleep(60 * time.Millisecond)

	_, ok, err := m.Get(ctx, "ai:abc")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := intents.Get(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, models.IntentVegan, got)
	assert.Equal(t, 1, m.Len())
}

func TestRedisIntentsHaveNoExpiry(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	store, err := NewRedis(Config{TTL: time.Minute, Redis: RedisConfig{Addr: mr.Addr(), Prefix: "test:"}})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})

	intents := NewIntents(store, "")
	require.NoError(t, intents.Set(ctx, "client-1", models.IntentKeto))
	assert.Zero(t, mr.TTL("test:intent:client-1"))

	mr.FastForward(48 * time.Hour)
	got, err := intents.Get(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, models.IntentKeto, got)
}
