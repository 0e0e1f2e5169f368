package model

import (
	"time"

	"github.com/google/uuid"
)

// MirrorReport summarizes one mirror run.
//
// Design decision: We keep the per-resource records in the report rather
// than only counters because the journal stores the report as JSON and the
// history command rebuilds its views from it.
type MirrorReport struct {
	// RunID uniquely identifies the run across journals.
	RunID string `json:"run_id"`

	// Seed is the normalized seed URL.
	Seed string `json:"seed"`

	// Host is the host every mirrored resource shares with the seed.
	Host string `json:"host"`

	// OutputDir is the root of the mirrored tree.
	OutputDir string `json:"output_dir"`

	// MaxDepth is the depth bound used for the run.
	MaxDepth int `json:"max_depth"`

	// StartedAt is when the run started.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the run ended, for whatever reason.
	FinishedAt time.Time `json:"finished_at"`

	// Visited is the number of distinct URLs dispatched.
	// It equals Saved + Failed.
	Visited int `json:"visited"`

	// Saved is the number of resources written to disk.
	Saved int `json:"saved"`

	// Failed is the number of resources that could not be fetched or saved.
	Failed int `json:"failed"`

	// DepthSkipped counts work items discarded for exceeding MaxDepth.
	DepthSkipped int `json:"depth_skipped"`

	// Dropped counts links discarded by the work list safety cap.
	Dropped int `json:"dropped"`

	// Interrupted is true when the run was cancelled before the work list
	// was exhausted.
	Interrupted bool `json:"interrupted"`

	// Error describes a run-level failure, if any.
	Error string `json:"error,omitempty"`

	// Resources lists every dispatched resource in processing order.
	Resources []Resource `json:"resources"`
}

// NewMirrorReport creates a report for a run starting now.
func NewMirrorReport(seed, host, outputDir string, maxDepth int) *MirrorReport {
	return &MirrorReport{
		RunID:     uuid.NewString(),
		Seed:      seed,
		Host:      host,
		OutputDir: outputDir,
		MaxDepth:  maxDepth,
		StartedAt: time.Now(),
		Resources: make([]Resource, 0),
	}
}

// AddResource appends r and updates the counters.
func (r *MirrorReport) AddResource(res Resource) {
	r.Resources = append(r.Resources, res)
	r.Visited++
	switch res.Status {
	case StatusSaved:
		r.Saved++
	case StatusFailed:
		r.Failed++
	}
}

// Finish stamps the end time.
func (r *MirrorReport) Finish() {
	r.FinishedAt = time.Now()
}

// Duration returns how long the run took, or zero if it has not finished.
func (r *MirrorReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// FailedResources returns the resources that could not be mirrored.
func (r *MirrorReport) FailedResources() []Resource {
	failed := make([]Resource, 0, r.Failed)
	for _, res := range r.Resources {
		if res.Status == StatusFailed {
			failed = append(failed, res)
		}
	}
	return failed
}

// TotalBytes returns the number of bytes written during the run.
func (r *MirrorReport) TotalBytes() int64 {
	var total int64
	for _, res := range r.Resources {
		total += res.Size
	}
	return total
}

// Resource kinds used by KindCounts.
const (
	KindPage       = "page"
	KindStylesheet = "stylesheet"
	KindImage      = "image"
	KindOther      = "other"
)

// KindCounts returns the number of saved resources per kind, classified by
// their Content-Type.
func (r *MirrorReport) KindCounts() map[string]int {
	counts := map[string]int{
		KindPage:       0,
		KindStylesheet: 0,
		KindImage:      0,
		KindOther:      0,
	}
	for _, res := range r.Resources {
		if res.Status != StatusSaved {
			continue
		}
		switch {
		case res.IsHTML():
			counts[KindPage]++
		case res.IsStylesheet():
			counts[KindStylesheet]++
		case res.IsImage():
			counts[KindImage]++
		default:
			counts[KindOther]++
		}
	}
	return counts
}
