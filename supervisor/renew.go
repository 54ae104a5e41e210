package supervisor

import (
	"context"
	"time"

	"github.com/pithecene-io/thence/types"
	"github.com/pithecene-io/thence/worker"
)

// runWithLeaseRenewal runs the worker dispatch while renewing the lease at
// half the TTL, so a long-running subprocess (implementer timeouts can run
// to 45m against a short lease TTL) is never mistaken for a crashed
// attempt by a concurrent Resume scan.
func (l *Loop) runWithLeaseRenewal(ctx context.Context, taskID string, attempt int, role types.ActorRole, spec worker.Spec) (*worker.Result, error) {
	interval := l.cfg.RunConfig.LeaseTTL / 2
	if interval <= 0 {
		interval = time.Second
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				_ = l.leases.Renew(taskID, attempt, role)
			}
		}
	}()

	result, err := l.worker.Run(ctx, spec)
	close(stop)
	<-done
	return result, err
}
