package domain

import "time"

// SweepState is the scheduler state threaded through each dispute window sweep.
type SweepState struct {
	LastRunAt   time.Time
	MinInterval time.Duration
	Runs        int
	Finalized   int
	Failed      int
}

// ShouldRun reports whether enough time passed since the previous run.
func (s *SweepState) ShouldRun(now time.Time) bool {
	if s.LastRunAt.IsZero() {
		return true
	}
	return now.Sub(s.LastRunAt) >= s.MinInterval
}

// SweepResult summarizes one sweep pass.
type SweepResult struct {
	Skipped   bool     `json:"skipped"`
	Examined  int      `json:"examined"`
	Finalized []string `json:"finalized"`
	Failed    []string `json:"failed"`
	// Unsettled lists the failed swaps whose payer could not cover the settlement amount.
	Unsettled []string `json:"unsettled"`
}

// Record folds a result into the running counters.
func (s *SweepState) Record(now time.Time, r SweepResult) {
	s.LastRunAt = now
	s.Runs++
	s.Finalized += len(r.Finalized)
	s.Failed += len(r.Failed)
}
