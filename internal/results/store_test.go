package results

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkdrain/internal/types"
)

// fakeRedis is an in-memory double recording TTLs. Expiry is simulated by
// the test removing keys, not by real clocks.
type fakeRedis struct {
	values map[string]string
	ttls   map[string]time.Duration
	setErr error
	getErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	if f.setErr != nil {
		cmd.SetErr(f.setErr)
		return cmd
	}
	f.values[key] = fmt.Sprint(value)
	f.ttls[key] = expiration
	cmd.SetVal("OK")
	return cmd
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	if f.getErr != nil {
		cmd.SetErr(f.getErr)
		return cmd
	}
	val, ok := f.values[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(val)
	return cmd
}

func TestPutStoresValueWithTTL(t *testing.T) {
	fake := newFakeRedis()
	store := NewStore(fake)

	err := store.Put(context.Background(), "j1-a1", "https://bit.ly/x", types.ResultTTLSeconds*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "https://bit.ly/x", fake.values["j1-a1"])
	assert.Equal(t, 86400*time.Second, fake.ttls["j1-a1"])
}

func TestGetReturnsStoredValue(t *testing.T) {
	fake := newFakeRedis()
	store := NewStore(fake)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "j1-a1", "https://bit.ly/x", time.Hour))

	val, ok, err := store.Get(ctx, "j1-a1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "https://bit.ly/x", val)
}

func TestGetAbsentKeyIsNotAnError(t *testing.T) {
	store := NewStore(newFakeRedis())

	val, ok, err := store.Get(context.Background(), "j1-missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, val)
}

func TestGetStoreFailure(t *testing.T) {
	fake := newFakeRedis()
	fake.getErr = fmt.Errorf("connection refused")
	store := NewStore(fake)

	_, _, err := store.Get(context.Background(), "j1-a1")
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeInternalResultStore, appErr.Code)
}
