package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	domainRepo "github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/repository"
)

const unlockTimeout = 5 * time.Second

type advisoryLocker struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAdvisoryLocker returns a Locker backed by PostgreSQL session advisory
// locks. Each held lock pins one pooled connection until released.
func NewAdvisoryLocker(db *sql.DB, logger *zap.Logger) domainRepo.Locker {
	return &advisoryLocker{db: db, logger: logger}
}

func (l *advisoryLocker) TryLock(ctx context.Context, key int64) (func(), bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&acquired); err != nil {
		conn.Close()
		return nil, false, fmt.Errorf("failed to try advisory lock: %w", err)
	}
	if !acquired {
		conn.Close()
		return nil, false, nil
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), unlockTimeout)
		defer cancel()

		if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", key); err != nil {
			l.logger.Warn("Failed to release advisory lock", zap.Int64("key", key), zap.Error(err))
		}
		if err := conn.Close(); err != nil {
			l.logger.Warn("Failed to return lock connection", zap.Error(err))
		}
	}
	return release, true, nil
}
