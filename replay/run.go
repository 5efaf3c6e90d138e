package replay

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/viewperf/tracing"
)

// ScriptStep is the offset between two events that do not carry an explicit
// offset.
const ScriptStep = time.Millisecond

// Run replays the events in order on the calling goroutine. The tracker must
// read its time from clock. Event i happens at i*ScriptStep after the current
// time of the clock unless it carries an offset. The clock never moves
// backward, so an offset earlier than the previous event is clamped.
func Run(tracker *tracing.Tracker, clock *tracing.ManualClock, events []Event) {
	origin := clock.Now()

	for i, e := range events {
		offset := time.Duration(i) * ScriptStep
		if e.HasAt {
			offset = e.At
		}

		clock.Set(origin.Add(offset))
		e.Apply(tracker.ContextFor(e.Thread))
	}
}

// SplitByThread groups the events by thread, keeping their order. Threads are
// listed in the order they first appear.
func SplitByThread(events []Event) ([]tracing.ThreadID, map[tracing.ThreadID][]Event) {
	var threads []tracing.ThreadID

	byThread := make(map[tracing.ThreadID][]Event)

	for _, e := range events {
		if _, ok := byThread[e.Thread]; !ok {
			threads = append(threads, e.Thread)
		}

		byThread[e.Thread] = append(byThread[e.Thread], e)
	}

	return threads, byThread
}

// RunParallel replays the events of each thread on a goroutine of its own.
// Events with an offset wait until that much wall time has passed since the
// replay started. The tracker is expected to use a real clock.
//
// RunParallel returns when all threads are done or ctx is cancelled.
func RunParallel(
	ctx context.Context,
	tracker *tracing.Tracker,
	events []Event,
) error {
	threads, byThread := SplitByThread(events)
	start := time.Now()

	g, gCtx := errgroup.WithContext(ctx)

	for _, thread := range threads {
		thread := thread
		threadEvents := byThread[thread]

		g.Go(func() error {
			rec := tracker.ContextFor(thread)

			for _, e := range threadEvents {
				if e.HasAt {
					if err := sleepUntil(gCtx, start.Add(e.At)); err != nil {
						return errors.Wrapf(err, "thread %d, line %d", thread, e.Line)
					}
				} else if err := gCtx.Err(); err != nil {
					return errors.Wrapf(err, "thread %d, line %d", thread, e.Line)
				}

				e.Apply(rec)
			}

			return nil
		})
	}

	return g.Wait()
}

func sleepUntil(ctx context.Context, deadline time.Time) error {
	d := time.Until(deadline)
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
