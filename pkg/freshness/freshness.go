// Package freshness buckets metric payload ages into coarse display
// categories. Classification is pure: given the same timestamp and reference
// time it always produces the same level.
package freshness

import "time"

// Level is a coarse age classification of a metric payload, used only for
// UI indicators.
type Level string

const (
	// Live means the payload was computed less than five minutes ago.
	Live Level = "live"

	// Recent means the payload is between five minutes and an hour old.
	Recent Level = "recent"

	// Stale means the payload is an hour old or more.
	Stale Level = "stale"

	// Unknown means the payload carried no parseable timestamp.
	Unknown Level = "unknown"
)

// Default age thresholds.
const (
	// LiveWindow is the maximum age for the Live level.
	LiveWindow = 5 * time.Minute

	// RecentWindow is the maximum age for the Recent level.
	RecentWindow = time.Hour
)

// Classifier buckets ages using configurable windows. The zero value is not
// usable; construct with NewClassifier or use the package-level Classify.
type Classifier struct {
	// liveWindow is the upper bound (exclusive) for Live.
	liveWindow time.Duration

	// recentWindow is the upper bound (exclusive) for Recent.
	recentWindow time.Duration
}

// NewClassifier creates a classifier with custom windows. Windows must be
// positive and liveWindow must be smaller than recentWindow; otherwise the
// defaults are used for whichever value is invalid.
func NewClassifier(liveWindow, recentWindow time.Duration) *Classifier {
	if liveWindow <= 0 {
		liveWindow = LiveWindow
	}
	if recentWindow <= liveWindow {
		recentWindow = RecentWindow
		if recentWindow <= liveWindow {
			recentWindow = liveWindow * 12
		}
	}
	return &Classifier{liveWindow: liveWindow, recentWindow: recentWindow}
}

// Classify buckets the payload timestamp relative to now.
// A zero timestamp classifies as Unknown. Timestamps in the future (clock
// skew between backend and client) classify as Live.
func (c *Classifier) Classify(timestamp, now time.Time) Level {
	if timestamp.IsZero() {
		return Unknown
	}

	age := now.Sub(timestamp)
	switch {
	case age < c.liveWindow:
		return Live
	case age < c.recentWindow:
		return Recent
	default:
		return Stale
	}
}

// defaultClassifier backs the package-level Classify.
var defaultClassifier = NewClassifier(LiveWindow, RecentWindow)

// Classify buckets the payload timestamp using the default windows
// (five minutes for Live, one hour for Recent).
func Classify(timestamp, now time.Time) Level {
	return defaultClassifier.Classify(timestamp, now)
}
