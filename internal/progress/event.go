package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/JakeFAU/content-capture/internal/capture"
)

// Stage is one step of a capture's lifecycle.
type Stage string

// Lifecycle stages in the order a successful capture passes through them.
const (
	StageClaimed      Stage = "claimed"
	StageScraped      Stage = "scraped"
	StageMaterialized Stage = "materialized"
	StageCategorized  Stage = "categorized"
	StageCompleted    Stage = "completed"
	StageFailed       Stage = "failed"
)

// Terminal reports whether no further events follow for the capture.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// Event is one lifecycle milestone.
type Event struct {
	CaptureID  string
	TS         time.Time
	Stage      Stage
	SourceType capture.SourceType
	// Strategy names the scraper strategy that produced content. Set on scraped and later stages.
	Strategy string
	// Degraded marks a step that fell back to a lesser result.
	Degraded bool
	// Dur is the time spent in this stage; for terminal stages it covers the whole run.
	Dur  time.Duration
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.CaptureID == "" {
		return errors.New("capture id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageClaimed, StageMaterialized, StageCategorized, StageCompleted, StageFailed:
	case StageScraped:
		if e.Strategy == "" {
			return errors.New("scraped event requires strategy")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
