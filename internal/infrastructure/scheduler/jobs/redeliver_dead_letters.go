// Package jobs contains the scheduled jobs of the API process.
package jobs

import (
	"context"
	"fmt"

	"github.com/coursehub/coursehub-platform/pkg/logger"
)

// Redeliverer replays failed event deliveries.
type Redeliverer interface {
	Redeliver(limit int) (delivered, failed int)
}

// RedeliverDeadLettersJob periodically retries event handlers whose
// deliveries exhausted their attempts, e.g. marking an enrollment finished
// after the database was briefly unavailable.
type RedeliverDeadLettersJob struct {
	target    Redeliverer
	batchSize int
	log       *logger.Logger
}

// NewRedeliverDeadLettersJob creates the job. batchSize <= 0 drains the queue.
func NewRedeliverDeadLettersJob(target Redeliverer, batchSize int, log *logger.Logger) *RedeliverDeadLettersJob {
	if log == nil {
		log = logger.Nop()
	}
	return &RedeliverDeadLettersJob{
		target:    target,
		batchSize: batchSize,
		log:       log.With(logger.Component("redeliver_dead_letters")),
	}
}

// Name implements scheduler.Job.
func (j *RedeliverDeadLettersJob) Name() string { return "redeliver_dead_letters" }

// Description implements scheduler.Job.
func (j *RedeliverDeadLettersJob) Description() string {
	return "Replays failed event handler deliveries"
}

// Run implements scheduler.Job. Failures still in the queue fail the run.
func (j *RedeliverDeadLettersJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	delivered, failed := j.target.Redeliver(j.batchSize)
	if delivered+failed == 0 {
		return nil
	}

	j.log.Info("dead letters redelivered",
		logger.Int("delivered", delivered),
		logger.Int("failed", failed),
	)
	if failed > 0 {
		return fmt.Errorf("redeliver_dead_letters: %d deliveries failed again", failed)
	}
	return nil
}
