package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"jimpitan/internal/domain"
	"jimpitan/internal/infra"
)

const (
	defaultEndpoint = "/donasi"
	drainKey        = "drain"
)

// Replayer sends one queued write to the server.
type Replayer interface {
	Replay(ctx context.Context, item domain.PendingSyncItem) error
}

// Options wires the queue's collaborators.
type Options struct {
	Repo       domain.PendingRepository
	Replayer   Replayer
	Logger     *infra.Logger
	Now        func() time.Time
	OnReplayed func(domain.PendingSyncItem)
}

// DrainFailure records a replay that left its item queued.
type DrainFailure struct {
	ItemID int64
	Err    error
}

// DrainResult summarizes one DrainAll pass.
type DrainResult struct {
	Attempted int
	Replayed  int
	Remaining int
	Failures  []DrainFailure
}

// Queue is the durable, append-only store of writes waiting for connectivity.
// Items are deleted only after the server accepted their replay.
type Queue struct {
	repo       domain.PendingRepository
	replayer   Replayer
	logger     *infra.Logger
	now        func() time.Time
	onReplayed func(domain.PendingSyncItem)

	mu       sync.Mutex
	lastID   int64
	idLoaded bool

	drains singleflight.Group
	wake   chan struct{}
}

// New builds a queue on top of repo.
func New(opts Options) *Queue {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Queue{
		repo:       opts.Repo,
		replayer:   opts.Replayer,
		logger:     infra.LoggerOrDiscard(opts.Logger),
		now:        now,
		onReplayed: opts.OnReplayed,
		wake:       make(chan struct{}, 1),
	}
}

// NewDonationItem wraps a donation payload as a queued POST /donasi write.
func NewDonationItem(payload domain.DonationPayload) (domain.PendingSyncItem, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return domain.PendingSyncItem{}, fmt.Errorf("queue: encode donation: %w", err)
	}
	return domain.PendingSyncItem{
		Type:     domain.SyncTypeDonation,
		Endpoint: defaultEndpoint,
		Method:   http.MethodPost,
		Payload:  raw,
	}, nil
}

// Enqueue durably appends one item and requests a background drain.
func (q *Queue) Enqueue(ctx context.Context, item domain.PendingSyncItem) (domain.PendingSyncItem, error) {
	stored, err := q.EnqueueBatch(ctx, []domain.PendingSyncItem{item})
	if err != nil {
		return domain.PendingSyncItem{}, err
	}
	return stored[0], nil
}

// EnqueueBatch appends items atomically: either all are stored or none is.
// Identical payloads are stored as distinct items.
func (q *Queue) EnqueueBatch(ctx context.Context, items []domain.PendingSyncItem) ([]domain.PendingSyncItem, error) {
	if len(items) == 0 {
		return nil, nil
	}
	if q.repo == nil {
		return nil, &domain.StorageError{Op: "enqueue", Err: errors.New("queue store not configured")}
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.loadLastIDLocked(ctx); err != nil {
		return nil, err
	}

	prepared := make([]domain.PendingSyncItem, len(items))
	lastID := q.lastID
	for i, item := range items {
		if len(item.Payload) == 0 {
			return nil, &domain.ValidationError{Field: "payload", Message: "must not be empty"}
		}
		lastID = nextID(q.now(), lastID)
		item.ID = lastID
		if item.IdempotencyKey == "" {
			item.IdempotencyKey = uuid.NewString()
		}
		if item.Type == "" {
			item.Type = domain.SyncTypeDonation
		}
		if item.Endpoint == "" {
			item.Endpoint = defaultEndpoint
		}
		if item.Method == "" {
			item.Method = http.MethodPost
		}
		if item.CreatedAt.IsZero() {
			item.CreatedAt = q.now().UTC()
		}
		prepared[i] = item
	}

	if err := q.repo.Insert(ctx, prepared...); err != nil {
		return nil, &domain.StorageError{Op: "enqueue", Err: err}
	}
	q.lastID = lastID
	q.logger.Info().Int("items", len(prepared)).Int64("last_id", lastID).Msg("queue: items stored offline")
	q.Wake()
	return prepared, nil
}

// Wake requests a drain from whoever listens on Wakeups. It never blocks.
func (q *Queue) Wake() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Wakeups delivers drain requests raised at enqueue time.
func (q *Queue) Wakeups() <-chan struct{} {
	return q.wake
}

// List returns every pending item, oldest first.
func (q *Queue) List(ctx context.Context) ([]domain.PendingSyncItem, error) {
	if q.repo == nil {
		return nil, &domain.StorageError{Op: "list", Err: errors.New("queue store not configured")}
	}
	items, err := q.repo.ListAll(ctx)
	if err != nil {
		return nil, &domain.StorageError{Op: "list", Err: err}
	}
	return items, nil
}

// Count returns the number of pending items.
func (q *Queue) Count(ctx context.Context) (int, error) {
	if q.repo == nil {
		return 0, &domain.StorageError{Op: "count", Err: errors.New("queue store not configured")}
	}
	n, err := q.repo.Count(ctx)
	if err != nil {
		return 0, &domain.StorageError{Op: "count", Err: err}
	}
	return n, nil
}

// DrainAll replays every pending item in id order. Concurrent calls share a single pass.
func (q *Queue) DrainAll(ctx context.Context) (DrainResult, error) {
	v, err, shared := q.drains.Do(drainKey, func() (any, error) {
		return q.drain(ctx)
	})
	if shared {
		q.logger.Debug().Msg("queue: joined in-flight drain")
	}
	res, _ := v.(DrainResult)
	return res, err
}

func (q *Queue) drain(ctx context.Context) (DrainResult, error) {
	var res DrainResult
	if q.replayer == nil {
		return res, errors.New("queue: replayer not configured")
	}
	items, err := q.List(ctx)
	if err != nil {
		return res, err
	}

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			res.Remaining += len(items) - i
			return res, err
		}
		res.Attempted++
		if err := q.replayer.Replay(ctx, item); err != nil {
			q.logger.Warn().Err(err).Int64("item_id", item.ID).Msg("queue: replay failed, item kept")
			res.Failures = append(res.Failures, DrainFailure{ItemID: item.ID, Err: err})
			res.Remaining++
			continue
		}
		if err := q.repo.Delete(ctx, item.ID); err != nil {
			q.logger.Error().Err(err).Int64("item_id", item.ID).Msg("queue: delete after replay failed, item will be replayed again")
			res.Failures = append(res.Failures, DrainFailure{ItemID: item.ID, Err: &domain.StorageError{Op: "delete", Err: err}})
			res.Remaining++
			continue
		}
		res.Replayed++
		if q.onReplayed != nil {
			q.onReplayed(item)
		}
	}

	if res.Attempted > 0 {
		q.logger.Info().
			Int("attempted", res.Attempted).
			Int("replayed", res.Replayed).
			Int("remaining", res.Remaining).
			Msg("queue: drained")
	}
	return res, nil
}

func (q *Queue) loadLastIDLocked(ctx context.Context) error {
	if q.idLoaded {
		return nil
	}
	maxID, err := q.repo.MaxID(ctx)
	if err != nil {
		return &domain.StorageError{Op: "open", Err: err}
	}
	q.lastID = maxID
	q.idLoaded = true
	return nil
}

// nextID derives ids from wall-clock milliseconds and keeps them strictly increasing.
func nextID(now time.Time, last int64) int64 {
	id := now.UnixMilli()
	if id <= last {
		id = last + 1
	}
	return id
}
