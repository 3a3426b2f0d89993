package queue

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"jimpitan/internal/adapter/repo"
	"jimpitan/internal/domain"
	"jimpitan/internal/infra"
)

type recordingReplayer struct {
	mu       sync.Mutex
	payloads [][]byte
	keys     []string
	fail     map[int64]error
	block    chan struct{}
}

func (r *recordingReplayer) Replay(_ context.Context, item domain.PendingSyncItem) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, append([]byte(nil), item.Payload...))
	r.keys = append(r.keys, item.IdempotencyKey)
	if err, ok := r.fail[item.ID]; ok {
		return err
	}
	return nil
}

func openRepo(t *testing.T) *repo.PendingRepositorySQL {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := infra.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "queue.db"), logger)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return repo.NewPendingRepository(infra.NewSQLRunner(db, logger))
}

func donationItem(t *testing.T, donor string, amount int64) domain.PendingSyncItem {
	t.Helper()
	payload := domain.NewDonationPayload(domain.CategoryTengah, domain.DonationDraft{DonorName: donor, Amount: amount}, time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	item, err := NewDonationItem(payload)
	if err != nil {
		t.Fatalf("NewDonationItem: %v", err)
	}
	return item
}

func TestEnqueueAssignsMonotonicIDs(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	q := New(Options{Repo: openRepo(t), Now: func() time.Time { return fixed }})

	stored, err := q.EnqueueBatch(ctx, []domain.PendingSyncItem{
		donationItem(t, "Alice", 1000),
		donationItem(t, "Alice", 1000),
		donationItem(t, "Bob", 500),
	})
	if err != nil {
		t.Fatalf("EnqueueBatch: %v", err)
	}
	if stored[0].ID != fixed.UnixMilli() {
		t.Fatalf("first id = %d, want %d", stored[0].ID, fixed.UnixMilli())
	}
	for i := 1; i < len(stored); i++ {
		if stored[i].ID <= stored[i-1].ID {
			t.Fatalf("ids not increasing: %d then %d", stored[i-1].ID, stored[i].ID)
		}
		if stored[i].IdempotencyKey == stored[i-1].IdempotencyKey {
			t.Fatalf("idempotency keys must be unique")
		}
	}
	n, err := q.Count(ctx)
	if err != nil || n != 3 {
		t.Fatalf("count = %d, %v; identical payloads must not be deduplicated", n, err)
	}

	select {
	case <-q.Wakeups():
	default:
		t.Fatalf("enqueue should request a drain")
	}
}

func TestNextIDSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	r := openRepo(t)
	fixed := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	first := New(Options{Repo: r, Now: func() time.Time { return fixed }})
	stored, err := first.Enqueue(ctx, donationItem(t, "Alice", 1))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	earlier := fixed.Add(-time.Hour)
	second := New(Options{Repo: r, Now: func() time.Time { return earlier }})
	again, err := second.Enqueue(ctx, donationItem(t, "Bob", 2))
	if err != nil {
		t.Fatalf("Enqueue after restart: %v", err)
	}
	if again.ID != stored.ID+1 {
		t.Fatalf("id after clock skew = %d, want %d", again.ID, stored.ID+1)
	}
}

func TestDrainAllDeletesOnlyOnSuccess(t *testing.T) {
	ctx := context.Background()
	q := New(Options{Repo: openRepo(t)})
	stored, err := q.EnqueueBatch(ctx, []domain.PendingSyncItem{
		donationItem(t, "Alice", 1000),
		donationItem(t, "Bob", 500),
	})
	if err != nil {
		t.Fatalf("EnqueueBatch: %v", err)
	}

	replayer := &recordingReplayer{fail: map[int64]error{stored[1].ID: &domain.ServerError{StatusCode: 503}}}
	var replayed []int64
	q.replayer = replayer
	q.onReplayed = func(item domain.PendingSyncItem) { replayed = append(replayed, item.ID) }

	res, err := q.DrainAll(ctx)
	if err != nil {
		t.Fatalf("DrainAll: %v", err)
	}
	if res.Attempted != 2 || res.Replayed != 1 || res.Remaining != 1 || len(res.Failures) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	for i, p := range replayer.payloads {
		if !bytes.Equal(p, stored[i].Payload) {
			t.Fatalf("payload %d not byte-identical: %s", i, p)
		}
		if replayer.keys[i] != stored[i].IdempotencyKey {
			t.Fatalf("idempotency key %d changed", i)
		}
	}
	if len(replayed) != 1 || replayed[0] != stored[0].ID {
		t.Fatalf("replayed callback = %v", replayed)
	}

	left, err := q.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(left) != 1 || left[0].ID != stored[1].ID {
		t.Fatalf("remaining items = %+v", left)
	}

	delete(replayer.fail, stored[1].ID)
	if res, err := q.DrainAll(ctx); err != nil || res.Replayed != 1 || res.Remaining != 0 {
		t.Fatalf("second drain = %+v, %v", res, err)
	}
	if n, _ := q.Count(ctx); n != 0 {
		t.Fatalf("queue should be empty, count=%d", n)
	}
}

func TestDrainAllCoalescesConcurrentCalls(t *testing.T) {
	ctx := context.Background()
	q := New(Options{Repo: openRepo(t)})
	if _, err := q.Enqueue(ctx, donationItem(t, "Alice", 1000)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	replayer := &recordingReplayer{block: make(chan struct{})}
	q.replayer = replayer

	var wg sync.WaitGroup
	results := make([]DrainResult, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = q.DrainAll(ctx)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(replayer.block)
	wg.Wait()

	replayer.mu.Lock()
	defer replayer.mu.Unlock()
	if len(replayer.payloads) != 1 {
		t.Fatalf("item replayed %d times, want 1", len(replayer.payloads))
	}
}

func TestEnqueueStorageError(t *testing.T) {
	q := New(Options{Repo: failingRepo{}})
	_, err := q.Enqueue(context.Background(), donationItem(t, "Alice", 1))
	var storageErr *domain.StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected StorageError, got %v", err)
	}
}

type failingRepo struct{}

func (failingRepo) Insert(context.Context, ...domain.PendingSyncItem) error {
	return errors.New("disk full")
}
func (failingRepo) ListAll(context.Context) ([]domain.PendingSyncItem, error) { return nil, nil }
func (failingRepo) Delete(context.Context, int64) error                       { return nil }
func (failingRepo) Count(context.Context) (int, error)                        { return 0, nil }
func (failingRepo) MaxID(context.Context) (int64, error)                      { return 0, nil }
