// Loop manager and timer: repeats the Collection Task on an interval
// once the base run finishes, until LoopDuration/LoopEnd expires or the run
// is cancelled.
package collect

import (
	"time"

	"github.com/lkarlslund/adalanche-collector/internal/collectlog"
	"github.com/lkarlslund/adalanche-collector/internal/methods"
)

// LoopTimer bounds how long StartLoop keeps re-running the Collection Task.
// It has a single stop condition: the deadline now+LoopDuration computed when
// the timer starts.
type LoopTimer struct {
	deadline time.Time
	stop     chan struct{}
	done     chan struct{}
}

// StartLoopTimer sets rc.LoopEnd to now+LoopDuration and arms a one-shot
// timer against that deadline. On natural expiry it fires the appropriate
// cancellation: CancelNow if the base pass has already completed, otherwise
// RequestLoopCancellation, which keeps StartLoop from starting another pass
// while the in-flight base pass runs to completion. DisposeTimer releases it;
// a repeat DisposeTimer call is a no-op. A stop via DisposeTimer or an
// outright rc.CancelNow does not trigger either cancellation call.
func StartLoopTimer(rc *RunContext) *LoopTimer {
	now := time.Now()
	rc.LoopEnd = now.Add(rc.LoopDuration)

	lt := &LoopTimer{deadline: rc.LoopEnd, stop: make(chan struct{}), done: make(chan struct{})}
	rc.loopTimer = lt

	fire := func() {
		if rc.InitialCompleted {
			rc.CancelNow()
		} else {
			rc.RequestLoopCancellation()
		}
	}

	go func() {
		defer close(lt.done)
		remaining := time.Until(lt.deadline)
		if remaining <= 0 {
			fire()
			return
		}
		select {
		case <-time.After(remaining):
			fire()
		case <-lt.stop:
		case <-rc.Context().Done():
		}
	}()
	return lt
}

// Expired reports whether the timer's deadline has passed or it was stopped.
func (lt *LoopTimer) Expired() bool {
	select {
	case <-lt.done:
		return true
	default:
		return false
	}
}

// DisposeTimer stops the timer's goroutine and blocks until it has actually
// exited, guaranteeing the timer never leaks past the link that started it.
func DisposeTimer(lt *LoopTimer) {
	if lt == nil {
		return
	}
	select {
	case <-lt.stop:
	default:
		close(lt.stop)
	}
	<-lt.done
}

// GetLoopCollectionMethods returns the collection methods a loop pass should
// run with, which is the configured method set narrowed to the subset
// methods.Loop marks as meaningful to repeat (session and logged-on data,
// not static schema/ACL data that won't have changed).
func GetLoopCollectionMethods(rc *RunContext) methods.Method {
	return rc.CollectionMethods.Loop()
}

// StartLoop repeats collection task passes on
// rc.LoopInterval until the timer expires, NeedsCancellation is observed at
// an iteration boundary, or the run is cancelled outright. It always returns
// the TaskHandle for the final pass it started (or nil if it never started
// one), matching the "most recently assigned handle" rule AwaitLoopCompletion
// relies on.
func StartLoop(rc *RunContext) *TaskHandle {
	if !rc.Loop {
		return nil
	}

	var last *TaskHandle
	ticker := time.NewTicker(rc.LoopInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rc.Context().Done():
			return last
		case <-rc.loopTimer.done:
			return last
		case <-ticker.C:
			if rc.NeedsCancel() {
				return last
			}
			h := newTaskHandle()
			rc.SetCurrentTask(h)
			last = h

			loopMethods := rc.CollectionMethods
			rc.CollectionMethods = GetLoopCollectionMethods(rc)
			err := NewTask(rc, true).Run(rc.Context())
			rc.CollectionMethods = loopMethods

			h.finish(err)
			if err != nil {
				collectlog.L.Warn().Err(err).Msg("loop manager: pass finished with errors")
			}
		}
	}
}
