package app

import (
	"context"
	"time"

	"github.com/small-frappuccino/ctfchannels/pkg/log"
)

type auditPruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// pruneSchedule is a running audit prune loop.
type pruneSchedule struct {
	stop chan struct{}
	done chan struct{}
}

// Stop ends the loop and waits for a prune in progress to finish, so the store
// can be closed right after. It is safe on a nil schedule.
func (p *pruneSchedule) Stop() {
	if p == nil {
		return
	}
	close(p.stop)
	<-p.done
}

// scheduleAuditPrune deletes audit records older than retention on every tick.
// A nil schedule means nothing was scheduled.
func scheduleAuditPrune(store auditPruner, interval, retention time.Duration) *pruneSchedule {
	if store == nil || interval <= 0 || retention <= 0 {
		return nil
	}

	p := &pruneSchedule{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	go func() {
		defer close(p.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				pruneAudit(store, retention)
			case <-p.stop:
				return
			}
		}
	}()

	return p
}

func pruneAudit(store auditPruner, retention time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := store.PruneBefore(ctx, time.Now().Add(-retention))
	if err != nil {
		log.ErrorLoggerRaw().Error("Periodic audit prune failed", "err", err)
		return
	}
	if n > 0 {
		log.ApplicationLogger().Info("Pruned audit records", "count", n)
	}
}
