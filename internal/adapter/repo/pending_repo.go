package repo

import (
	"context"
	"fmt"
	"time"

	"jimpitan/internal/domain"
	"jimpitan/internal/infra"
	"jimpitan/internal/sqlinline"
)

// PendingRepositorySQL implements domain.PendingRepository on the SQLite queue table.
type PendingRepositorySQL struct {
	sql infra.TxRunner
}

// NewPendingRepository creates a new pending queue repo.
func NewPendingRepository(sql infra.TxRunner) *PendingRepositorySQL {
	return &PendingRepositorySQL{sql: sql}
}

// Insert stores all items in one transaction; either every item is persisted or none is.
func (r *PendingRepositorySQL) Insert(ctx context.Context, items ...domain.PendingSyncItem) error {
	return r.sql.WithTx(ctx, func(tx infra.SQLExecutor) error {
		for _, item := range items {
			if _, err := tx.Exec(ctx, sqlinline.QInsertPendingSync,
				item.ID,
				item.IdempotencyKey,
				string(item.Type),
				item.Endpoint,
				item.Method,
				[]byte(item.Payload),
				item.CreatedAt.UTC().Format(time.RFC3339Nano),
			); err != nil {
				return fmt.Errorf("insert pending %d: %w", item.ID, err)
			}
		}
		return nil
	})
}

// ListAll returns every pending item ordered by id (oldest first).
func (r *PendingRepositorySQL) ListAll(ctx context.Context) ([]domain.PendingSyncItem, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListPendingSync)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.PendingSyncItem
	for rows.Next() {
		var (
			item      domain.PendingSyncItem
			syncType  string
			payload   []byte
			createdAt string
		)
		if err := rows.Scan(&item.ID, &item.IdempotencyKey, &syncType, &item.Endpoint, &item.Method, &payload, &createdAt); err != nil {
			return nil, err
		}
		item.Type = domain.SyncType(syncType)
		item.Payload = append([]byte(nil), payload...)
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			item.CreatedAt = ts
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Delete removes one item. Deleting a missing id is not an error, since a
// concurrent drainer may already have removed it.
func (r *PendingRepositorySQL) Delete(ctx context.Context, id int64) error {
	_, err := r.sql.Exec(ctx, sqlinline.QDeletePendingSync, id)
	return err
}

// Count returns the number of pending items.
func (r *PendingRepositorySQL) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.sql.QueryRow(ctx, sqlinline.QCountPendingSync).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// MaxID returns the largest stored id, or 0 for an empty queue.
func (r *PendingRepositorySQL) MaxID(ctx context.Context) (int64, error) {
	var id int64
	if err := r.sql.QueryRow(ctx, sqlinline.QMaxPendingSyncID).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

var _ domain.PendingRepository = (*PendingRepositorySQL)(nil)
