package jobs

import "context"

// RunWithContext exposes a single warm-up pass to tests
func (j *CacheWarmJob) RunWithContext(ctx context.Context) (warmed, failed int) {
	return j.run(ctx)
}
