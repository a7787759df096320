package shared

import (
	"context"
	"encoding/hex"
	"testing"
	"time"

	"github.com/phrazzld/taskboard-scheduler/internal/service/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAndGetTraceID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx))

	withTrace := SetTraceID(ctx)
	traceID := GetTraceID(withTrace)
	assert.Len(t, traceID, 32, "trace IDs are 16 bytes of hex")
	assert.Empty(t, GetTraceID(ctx), "parent context is unchanged")

	wrongType := context.WithValue(ctx, TraceIDKey, 123)
	assert.Empty(t, GetTraceID(wrongType))
}

func TestGenerateTraceID_Unique(t *testing.T) {
	const iterations = 1000
	seen := make(map[string]bool, iterations)
	for range iterations {
		id := generateTraceID()
		_, err := hex.DecodeString(id)
		require.NoError(t, err)
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestGenerateFallbackTraceID(t *testing.T) {
	first := generateFallbackTraceID()
	time.Sleep(time.Millisecond)
	second := generateFallbackTraceID()

	assert.Len(t, first, 32)
	_, err := hex.DecodeString(first)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestClaimsContext(t *testing.T) {
	_, ok := GetClaims(context.Background())
	assert.False(t, ok)

	_, ok = GetClaims(WithClaims(context.Background(), nil))
	assert.False(t, ok, "nil claims are not claims")

	claims := &auth.Claims{Subject: "ops", Role: auth.RoleAdmin}
	got, ok := GetClaims(WithClaims(context.Background(), claims))
	require.True(t, ok)
	assert.Equal(t, claims, got)
}
