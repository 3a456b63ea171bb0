package auth

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Purger is implemented by liveness stores that keep expired records
// until told to drop them.  Redis expires keys by itself.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// PurgeExpired drops expired records; it lets MemoryStore act as a Purger.
func (s *MemoryStore) PurgeExpired(context.Context) (int64, error) {
	return int64(s.Cleanup(s.now())), nil
}

// RunJanitor purges expired sessions from p every interval until ctx is
// done.
func RunJanitor(ctx context.Context, p Purger, every time.Duration, log *zap.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := p.PurgeExpired(ctx)
			if err != nil {
				log.Warn("session purge failed", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Debug("purged expired sessions", zap.Int64("count", n))
			}
		}
	}
}
