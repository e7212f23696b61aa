package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepCounts(t *testing.T) {
	tests := []struct {
		name          string
		prev          ParticleCountData
		spawn, max    int32
		expectedAlive int32
	}{
		{"steady spawn", ParticleCountData{AliveCount: 10, DeadCount: 0}, 5, 100, 15},
		{"dead reclaimed", ParticleCountData{AliveCount: 10, DeadCount: 3}, 0, 100, 7},
		{"dead then spawn", ParticleCountData{AliveCount: 10, DeadCount: 10}, 4, 100, 4},
		{"capacity clamp", ParticleCountData{AliveCount: 90, DeadCount: 0}, 50, 100, 100},
		{"over-dead clamps to zero", ParticleCountData{AliveCount: 5, DeadCount: 9}, 0, 100, 0},
	}
	for _, tc := range tests {
		next := StepCounts(tc.prev, tc.spawn, tc.max)
		assert.Equal(t, tc.expectedAlive, next.AliveCount, tc.name)
		assert.Equal(t, tc.prev.AliveCount, next.PrevAliveCount, tc.name)
		assert.Equal(t, int32(0), next.DeadCount, "%s: dead counter must reset", tc.name)
	}
}

func TestEmitterStoreAllocateRelease(t *testing.T) {
	store := NewEmitterStore()

	a, err := store.Allocate(ParticleStaticConstants{MaxParticleCount: 10})
	require.NoError(t, err)
	b, err := store.Allocate(ParticleStaticConstants{MaxParticleCount: 10})
	require.NoError(t, err)
	require.NotEqual(t, a, b)
	assert.Equal(t, 2, store.Len())
	assert.True(t, store.Allocated(a))

	store.Counts[a].AliveCount = 5
	store.Release(a)
	assert.False(t, store.Allocated(a))
	assert.Equal(t, int32(0), store.Counts[a].AliveCount, "released slot must render nothing")

	// Recycled handle comes back.
	c, err := store.Allocate(ParticleStaticConstants{MaxParticleCount: 10})
	require.NoError(t, err)
	assert.Equal(t, a, c)

	_, ok := store.Record(InvalidEmitterIndex)
	assert.False(t, ok)
}

func TestEmitterStoreCapacityExhausted(t *testing.T) {
	store := NewEmitterStore()
	for i := 0; i < MaxEmitterCount; i++ {
		_, err := store.Allocate(ParticleStaticConstants{})
		require.NoError(t, err)
	}
	_, err := store.Allocate(ParticleStaticConstants{})
	require.Error(t, err)
}

func TestEmitterStoreClampsParticleCapacity(t *testing.T) {
	store := NewEmitterStore()
	idx, err := store.Allocate(ParticleStaticConstants{MaxParticleCount: MaxParticleCount * 2})
	require.NoError(t, err)
	assert.Equal(t, int32(MaxParticleCount), store.Statics[idx].MaxParticleCount)
}
