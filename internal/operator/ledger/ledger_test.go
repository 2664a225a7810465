package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trigg3rX/pumpkit-operator/pkg/logging"
)

func TestMemoryLedger_MarkThenSeen_True(t *testing.T) {
	l := NewMemoryLedger(time.Hour)
	ctx := context.Background()

	seen, err := l.Seen(ctx, "TokenDataCreated:7:0xabc")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, l.Mark(ctx, "TokenDataCreated:7:0xabc"))

	seen, err = l.Seen(ctx, "TokenDataCreated:7:0xabc")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = l.Seen(ctx, "TokenDataCreated:8:0xabc")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestMemoryLedger_Expired_NotSeen(t *testing.T) {
	l := NewMemoryLedger(time.Minute)
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, l.Mark(ctx, "a"))
	now = now.Add(2 * time.Minute)

	seen, err := l.Seen(ctx, "a")
	require.NoError(t, err)
	assert.False(t, seen)
	assert.Equal(t, 0, l.Len())
}

func TestMemoryLedger_Mark_PrunesExpired(t *testing.T) {
	l := NewMemoryLedger(time.Minute)
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, l.Mark(ctx, "old"))
	now = now.Add(time.Hour)
	require.NoError(t, l.Mark(ctx, "new"))

	assert.Equal(t, 1, l.Len())
}

func TestNewMemoryLedger_ZeroTTL_UsesDefault(t *testing.T) {
	assert.Equal(t, DefaultTTL, NewMemoryLedger(0).ttl)
}

func TestNewRedisLedger_EmptyAddr_Error(t *testing.T) {
	_, err := NewRedisLedger(RedisConfig{}, logging.NewNoOpLogger())
	assert.Error(t, err)
}
