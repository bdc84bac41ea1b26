// Package stats derives rolling metrics from a window of probe history. Every
// computation is a pure function of its input window; there is no hidden
// state and an empty window yields a well-defined zero snapshot.
package stats

import (
	"math"
	"time"

	"github.com/icecake0141/paraping/internal/history"
	"github.com/icecake0141/paraping/internal/probe"
)

// Snapshot summarizes a trailing window of one host's history.
type Snapshot struct {
	Total         int
	Successes     int
	SuccessRate   float64 // successes / total, 0 when the window is empty
	FailureStreak int     // trailing non-success run, newest backward
	RTTMean       time.Duration
	RTTStddev     time.Duration
	LastTTL       int
	HasTTL        bool // false when the window holds no success
}

// Compute builds a Snapshot from a window ordered oldest first.
func Compute(window []history.Record) Snapshot {
	var snap Snapshot
	snap.Total = len(window)
	if snap.Total == 0 {
		return snap
	}

	var sumMs float64
	rtts := make([]float64, 0, len(window))
	for _, rec := range window {
		if rec.Outcome.Kind != probe.Success {
			continue
		}
		snap.Successes++
		ms := float64(rec.Outcome.RTT) / float64(time.Millisecond)
		rtts = append(rtts, ms)
		sumMs += ms
		snap.LastTTL = rec.Outcome.TTL
		snap.HasTTL = true
	}
	snap.SuccessRate = float64(snap.Successes) / float64(snap.Total)

	for i := len(window) - 1; i >= 0; i-- {
		if window[i].Outcome.Kind == probe.Success {
			break
		}
		snap.FailureStreak++
	}

	if len(rtts) > 0 {
		mean := sumMs / float64(len(rtts))
		var variance float64
		for _, ms := range rtts {
			d := ms - mean
			variance += d * d
		}
		variance /= float64(len(rtts))
		snap.RTTMean = time.Duration(mean * float64(time.Millisecond))
		snap.RTTStddev = time.Duration(math.Sqrt(variance) * float64(time.Millisecond))
	}
	return snap
}
