// Package shrink implements delta-debugging minimization of a failing
// trace: given a predicate that reports whether a candidate event sequence
// still reproduces a failure, it finds a smaller sequence that still does
// (spec.md §4.11).
package shrink

import (
	"fmt"
	"math"
	"time"

	"github.com/trajectly/trt/internal/schema"
)

// Result is the outcome of DDMinShrink.
type Result struct {
	OriginalLen   int
	ReducedLen    int
	Iterations    int
	Seconds       float64
	ReducedEvents []schema.Event
}

// Reduced reports whether shrinking actually removed any events.
func (r Result) Reduced() bool {
	return r.ReducedLen < r.OriginalLen
}

// FailurePredicate reports whether the given candidate event sequence still
// reproduces the original failure.
type FailurePredicate func(candidate []schema.Event) bool

// DDMinShrink runs the ddmin delta-debugging algorithm: repeatedly remove
// chunks of events and keep the removal whenever failurePredicate still
// holds, doubling chunk granularity whenever a full pass removes nothing and
// decreasing it by one (not below 2) whenever a removal succeeds.
func DDMinShrink(events []schema.Event, failurePredicate FailurePredicate, maxSeconds float64, maxIterations int) (Result, error) {
	if maxSeconds <= 0 {
		return Result{}, fmt.Errorf("shrink: max_seconds must be > 0")
	}
	if maxIterations <= 0 {
		return Result{}, fmt.Errorf("shrink: max_iterations must be > 0")
	}
	if len(events) == 0 {
		return Result{}, fmt.Errorf("shrink: events must not be empty")
	}
	if !failurePredicate(events) {
		return Result{}, fmt.Errorf("shrink: failure_predicate must hold for original events")
	}

	started := time.Now()
	current := append([]schema.Event(nil), events...)
	granularity := 2
	iterations := 0

	for len(current) >= 2 {
		elapsed := time.Since(started).Seconds()
		if elapsed >= maxSeconds || iterations >= maxIterations {
			break
		}

		chunkSize := maxInt(1, int(math.Ceil(float64(len(current))/float64(granularity))))
		reducedThisRound := false

		for start := 0; start < len(current); start += chunkSize {
			elapsed := time.Since(started).Seconds()
			if elapsed >= maxSeconds || iterations >= maxIterations {
				break
			}

			end := minInt(len(current), start+chunkSize)
			candidate := make([]schema.Event, 0, len(current)-(end-start))
			candidate = append(candidate, current[:start]...)
			candidate = append(candidate, current[end:]...)
			if len(candidate) == 0 {
				continue
			}

			iterations++
			if failurePredicate(candidate) {
				current = candidate
				granularity = maxInt(2, granularity-1)
				reducedThisRound = true
				break
			}
		}

		if !reducedThisRound {
			if granularity >= len(current) {
				break
			}
			granularity = minInt(len(current), granularity*2)
		}
	}

	seconds := math.Round(time.Since(started).Seconds()*1e6) / 1e6
	return Result{
		OriginalLen:   len(events),
		ReducedLen:    len(current),
		Iterations:    iterations,
		Seconds:       seconds,
		ReducedEvents: current,
	}, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
