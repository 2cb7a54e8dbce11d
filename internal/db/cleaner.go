package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// PurgeAuditEvents deletes audit events created before cutoff and returns
// how many were removed.
func PurgeAuditEvents(ctx context.Context, db *sql.DB, cutoff time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `
        DELETE FROM audit_events
         WHERE created_at < $1
    `, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge audit events: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge audit events: %w", err)
	}
	return rows, nil
}

// StartAuditCleaner purges audit events older than retention every interval
// until ctx is done. Non-positive durations leave the cleaner stopped.
func StartAuditCleaner(
	ctx context.Context,
	db *sql.DB,
	interval time.Duration,
	retention time.Duration,
	log *zap.Logger,
) {
	if interval <= 0 || retention <= 0 {
		log.Error("audit cleaner not started",
			zap.Duration("interval", interval),
			zap.Duration("retention", retention),
		)
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := PurgeAuditEvents(ctx, db, time.Now().Add(-retention))
				if err != nil {
					log.Error("failed to clean audit events", zap.Error(err))
					continue
				}
				if removed > 0 {
					log.Info("cleaned audit events", zap.Int64("removed", removed))
				}
			}
		}
	}()
}
