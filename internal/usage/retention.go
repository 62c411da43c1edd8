package usage

import (
	"context"
	"time"

	"github.com/resolv-sh/resolv-gateway/internal/settings"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	defaultRetentionInterval = 6 * time.Hour
	defaultDeleteBatchSize   = 5000
	maxDeleteBatchesPerRun   = 2000
)

// RetentionCleaner periodically deletes old rows from the chat_turns table.
type RetentionCleaner struct {
	db          *gorm.DB
	interval    time.Duration
	batchSize   int
	defaultDays int
}

// NewRetentionCleaner returns nil when db is nil. defaultDays applies unless
// the settings table overrides it; zero or less keeps turns forever.
func NewRetentionCleaner(db *gorm.DB, defaultDays int) *RetentionCleaner {
	if db == nil {
		return nil
	}
	return &RetentionCleaner{
		db:          db,
		interval:    defaultRetentionInterval,
		batchSize:   defaultDeleteBatchSize,
		defaultDays: defaultDays,
	}
}

// Start launches the cleanup loop in a background goroutine.
func (c *RetentionCleaner) Start(ctx context.Context) {
	if c == nil {
		return
	}
	go c.run(ctx)
	log.Infof("turn retention cleaner started (interval=%s)", c.interval)
}

func (c *RetentionCleaner) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.CleanupOnce(ctx)
		timer := time.NewTimer(c.interval)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return
		case <-timer.C:
		}
	}
}

func (c *RetentionCleaner) retentionDays() int {
	return int(settings.Float(settings.TurnRetentionDaysKey, float64(c.defaultDays)))
}

// CleanupOnce deletes turns older than the retention window in batches and
// returns the number removed.
func (c *RetentionCleaner) CleanupOnce(ctx context.Context) int64 {
	days := c.retentionDays()
	if days <= 0 {
		return 0
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	var deletedTotal int64
	for i := 0; i < maxDeleteBatchesPerRun; i++ {
		if ctx.Err() != nil {
			break
		}
		n, err := c.deleteBatch(ctx, cutoff)
		if err != nil {
			log.WithError(err).Warn("turn retention cleaner: delete batch failed")
			break
		}
		if n <= 0 {
			break
		}
		deletedTotal += n
	}
	if deletedTotal > 0 {
		log.Infof("turn retention cleaner: deleted %d rows (cutoff=%s retention_days=%d)", deletedTotal, cutoff.Format(time.RFC3339), days)
	}
	return deletedTotal
}

func (c *RetentionCleaner) deleteBatch(ctx context.Context, cutoff time.Time) (int64, error) {
	// Limited subquery keeps each delete short.
	res := c.db.WithContext(ctx).Exec(`
		DELETE FROM chat_turns
		WHERE id IN (
			SELECT id FROM chat_turns
			WHERE updated_at < ?
			ORDER BY updated_at ASC
			LIMIT ?
		)
	`, cutoff, c.batchSize)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
