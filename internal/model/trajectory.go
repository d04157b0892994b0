package model

import "github.com/google/uuid"

// #region bounds
// Bounds is an active trim window in seconds, relative to the full
// recording. A valid window satisfies 0 <= Start < End <= duration.
type Bounds struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}
// #endregion bounds

// #region trajectory-record
// TrajectoryRecord describes one recorded rollout: a playable media asset
// plus its per-timestep reward sequence. Trim holds the active window,
// initially the full duration; it is mutated only by the trim service.
type TrajectoryRecord struct {
	ID         uuid.UUID
	MediaFile  string // basename under the media directory
	Rewards    []float64
	SampleRate float64 // reward samples per second
	Duration   float64 // seconds
	Trim       Bounds
}

// FullBounds returns the untrimmed window covering the whole recording.
func (t TrajectoryRecord) FullBounds() Bounds {
	return Bounds{Start: 0, End: t.Duration}
}
// #endregion trajectory-record
