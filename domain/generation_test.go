package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerationStateIsActive(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	state := StartGeneration(3, now)

	assert.True(t, state.IsActive(2))
	assert.True(t, state.IsActive(3))
	assert.False(t, state.IsActive(4))

	var stopped *GenerationState
	assert.False(t, stopped.IsActive(0))

	idle := &GenerationState{InitialPodcastCount: 10}
	assert.False(t, idle.IsActive(1))
}

func TestGenerationStateStaleAfter(t *testing.T) {
	start := time.Date(2025, 1, 2, 3, 0, 0, 0, time.UTC)
	state := StartGeneration(0, start)

	assert.False(t, state.StaleAfter(time.Hour, start.Add(30*time.Minute)))
	assert.True(t, state.StaleAfter(time.Hour, start.Add(61*time.Minute)))
}
