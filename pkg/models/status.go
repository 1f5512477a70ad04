package models

// EngineStatus is the poll-friendly snapshot of a correlation engine.
type EngineStatus struct {
	// Running reports whether a background run is active.
	Running bool `json:"running"`
	// ProcessedActivities counts activities with cached correlation results.
	ProcessedActivities int `json:"processed_activities"`
	// Completed reports whether the last full batch finished.
	Completed bool `json:"completed"`
	// Degraded is set when vector math is unavailable and every correlation
	// lookup returns empty results.
	Degraded bool `json:"degraded"`
	// RunID identifies the current or most recent background run.
	RunID string `json:"run_id,omitempty"`
	// CorpusSize is the number of messages loaded after exclusion filtering.
	CorpusSize int `json:"corpus_size"`
}
