package domain

import "time"

// GenerationState tracks a podcast generation the user kicked off. The backend
// reports no job status, so completion is inferred from the podcast count.
type GenerationState struct {
	IsGenerating        bool       `json:"isGenerating"`
	StartTime           *time.Time `json:"startTime"`
	InitialPodcastCount int        `json:"initialPodcastCount"`
}

// StartGeneration returns the state for a generation started at now.
func StartGeneration(initialCount int, now time.Time) *GenerationState {
	return &GenerationState{
		IsGenerating:        true,
		StartTime:           &now,
		InitialPodcastCount: initialCount,
	}
}

// IsActive is true while no new podcast has shown up yet.
func (g *GenerationState) IsActive(currentCount int) bool {
	if g == nil {
		return false
	}
	return g.IsGenerating && currentCount <= g.InitialPodcastCount
}

// StaleAfter reports whether the generation started more than maxAge ago.
func (g *GenerationState) StaleAfter(maxAge time.Duration, now time.Time) bool {
	if g == nil || g.StartTime == nil {
		return false
	}
	return now.Sub(*g.StartTime) > maxAge
}
