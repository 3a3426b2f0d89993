package submission

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"jimpitan/internal/domain"
	"jimpitan/internal/draft"
	"jimpitan/internal/infra"
	"jimpitan/internal/queue"
)

var (
	// ErrInProgress is returned when Submit is called while another batch is still running.
	ErrInProgress = errors.New("submission already in progress")
	// ErrNotConfigured is returned when a collaborator the batch needs is missing.
	ErrNotConfigured = errors.New("submission: coordinator not configured")
)

const followUpTimeout = 15 * time.Second

// Writer performs one donation write against the server.
type Writer interface {
	SubmitDonation(ctx context.Context, cat domain.Category, payload domain.DonationPayload) error
}

// Gate is the part of the upload gatekeeper the coordinator drives.
type Gate interface {
	State(cat domain.Category) domain.CategoryUploadState
	Refresh(ctx context.Context, cat domain.Category) (domain.UploadState, error)
	ApplyFallback(ctx context.Context, cat domain.Category) (domain.UploadState, error)
	MarkLocked(ctx context.Context, cat domain.Category) error
	CanSubmit(cat domain.Category, draftCount int) bool
}

// OfflineQueue stores batches that cannot be sent now.
type OfflineQueue interface {
	EnqueueBatch(ctx context.Context, items []domain.PendingSyncItem) ([]domain.PendingSyncItem, error)
}

// Connectivity reports the current network state.
type Connectivity interface {
	Online() bool
}

// Options wires the coordinator's collaborators. Gate is required; Writer is
// required for online batches and Queue for offline ones.
type Options struct {
	Writer       Writer
	Gate         Gate
	Queue        OfflineQueue
	Connectivity Connectivity
	Logger       *infra.Logger

	// Delay separates consecutive writes of one batch.
	Delay time.Duration
	// FollowUp schedules a gatekeeper refresh after every batch; zero disables it.
	FollowUp time.Duration

	Now      func() time.Time
	Sleep    func(ctx context.Context, d time.Duration) error
	Schedule func(d time.Duration, fn func())
}

// Coordinator turns the drafts of one category into server writes or queued items.
type Coordinator struct {
	writer   Writer
	gate     Gate
	queue    OfflineQueue
	conn     Connectivity
	logger   *infra.Logger
	delay    time.Duration
	followUp time.Duration
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	schedule func(d time.Duration, fn func())

	running sync.Mutex
}

// New builds a coordinator.
func New(opts Options) *Coordinator {
	c := &Coordinator{
		writer:   opts.Writer,
		gate:     opts.Gate,
		queue:    opts.Queue,
		conn:     opts.Connectivity,
		logger:   infra.LoggerOrDiscard(opts.Logger),
		delay:    opts.Delay,
		followUp: opts.FollowUp,
		now:      opts.Now,
		sleep:    opts.Sleep,
		schedule: opts.Schedule,
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.sleep == nil {
		c.sleep = sleepContext
	}
	if c.schedule == nil {
		c.schedule = func(d time.Duration, fn func()) { time.AfterFunc(d, fn) }
	}
	return c
}

// Submit sends every draft of cat that has not been accepted yet, in roster order.
// The returned outcome is always populated; err carries the typed failure.
func (c *Coordinator) Submit(ctx context.Context, cat domain.Category, drafts *draft.Store, roster []string) (domain.SubmitOutcome, error) {
	out := domain.SubmitOutcome{Category: cat, Kind: domain.OutcomeFailed}
	if !cat.Valid() {
		return out, &domain.ValidationError{Field: "category", Message: "is not a known category", Err: domain.ErrUnknownCategory}
	}
	if c.gate == nil {
		return out, fmt.Errorf("%w: no gate", ErrNotConfigured)
	}
	if !c.running.TryLock() {
		return out, ErrInProgress
	}
	defer c.running.Unlock()

	batch := pendingEntries(drafts.ListOrdered(roster))
	if len(batch) == 0 {
		return out, &domain.ValidationError{Field: "drafts", Message: domain.ErrEmptyBatch.Error(), Err: domain.ErrEmptyBatch}
	}
	if c.gate.State(cat).State == domain.UploadLocked {
		return lockedOutcome(out), &domain.AlreadyUploadedError{Category: cat, Message: "category is locked for today"}
	}

	online := c.conn == nil || c.conn.Online()
	defer c.scheduleFollowUp(cat)

	var (
		state domain.UploadState
		err   error
	)
	if online {
		state, err = c.gate.Refresh(ctx, cat)
	} else {
		state, err = c.gate.ApplyFallback(ctx, cat)
	}
	if state == domain.UploadLocked {
		c.logger.Info().Str("category", string(cat)).Msg("submission: category locked before first write, aborting")
		return lockedOutcome(out), &domain.AlreadyUploadedError{Category: cat, Message: "category was uploaded from another device"}
	}
	if !c.gate.CanSubmit(cat, len(batch)) {
		if err == nil {
			err = errors.New("upload state unknown")
		}
		return out, fmt.Errorf("submission: cannot confirm upload state of %s: %w", cat, err)
	}

	if !online {
		return c.saveOffline(ctx, cat, drafts, batch, out)
	}
	return c.sendOnline(ctx, cat, drafts, batch, out)
}

func (c *Coordinator) saveOffline(ctx context.Context, cat domain.Category, drafts *draft.Store, batch []draft.Entry, out domain.SubmitOutcome) (domain.SubmitOutcome, error) {
	if c.queue == nil {
		return out, &domain.StorageError{Op: "enqueue", Err: errors.New("offline queue not configured")}
	}
	at := c.now()
	items := make([]domain.PendingSyncItem, 0, len(batch))
	for _, e := range batch {
		item, err := queue.NewDonationItem(domain.NewDonationPayload(cat, e.DonationDraft, at))
		if err != nil {
			return out, err
		}
		items = append(items, item)
	}
	stored, err := c.queue.EnqueueBatch(ctx, items)
	if err != nil {
		c.logger.Error().Err(err).Str("category", string(cat)).Msg("submission: offline save failed, drafts kept")
		var storageErr *domain.StorageError
		if !errors.As(err, &storageErr) {
			err = &domain.StorageError{Op: "enqueue", Err: err}
		}
		return out, err
	}
	drafts.RemoveSettled(batch)
	out.Kind = domain.OutcomeSavedOffline
	out.Attempted = len(batch)
	out.Queued = len(stored)
	for _, e := range batch {
		out.Total += e.Amount
	}
	c.logger.Info().Str("category", string(cat)).Int("queued", out.Queued).Msg("submission: batch saved offline")
	return out, nil
}

func (c *Coordinator) sendOnline(ctx context.Context, cat domain.Category, drafts *draft.Store, batch []draft.Entry, out domain.SubmitOutcome) (domain.SubmitOutcome, error) {
	if c.writer == nil {
		return out, fmt.Errorf("%w: no writer", ErrNotConfigured)
	}
	var (
		alreadyUploaded *domain.AlreadyUploadedError
		itemErrs        []error
	)
	for i, e := range batch {
		if i > 0 && c.delay > 0 {
			if err := c.sleep(ctx, c.delay); err != nil {
				for _, rest := range batch[i:] {
					drafts.MarkEntry(rest, domain.DraftFailed, err.Error())
					out.Failed = append(out.Failed, domain.ItemFailure{DonorName: rest.DonorName, Message: "not sent: " + err.Error(), Err: err})
				}
				itemErrs = append(itemErrs, err)
				break
			}
		}
		out.Attempted++
		payload := domain.NewDonationPayload(cat, e.DonationDraft, c.now())
		err := c.writer.SubmitDonation(ctx, cat, payload)
		if err == nil {
			out.Succeeded++
			out.Total += e.Amount
			drafts.MarkEntry(e, domain.DraftAccepted, "")
			continue
		}

		drafts.MarkEntry(e, domain.DraftFailed, err.Error())
		out.Failed = append(out.Failed, domain.ItemFailure{DonorName: e.DonorName, Message: err.Error(), Err: err})
		itemErrs = append(itemErrs, err)
		c.logger.Warn().Err(err).Str("category", string(cat)).Str("donor", e.DonorName).Msg("submission: write failed")

		if errors.As(err, &alreadyUploaded) {
			out.Aborted = true
			break
		}
	}

	if alreadyUploaded != nil {
		if err := c.gate.MarkLocked(ctx, cat); err != nil {
			c.logger.Error().Err(err).Str("category", string(cat)).Msg("submission: lock after rejection not persisted")
		}
		out.Kind = domain.OutcomeLocked
		c.logger.Info().
			Str("category", string(cat)).
			Int("succeeded", out.Succeeded).
			Int("skipped", len(batch)-out.Attempted).
			Msg("submission: server reports category already uploaded, batch aborted")
		return out, alreadyUploaded
	}

	switch {
	case len(out.Failed) == 0:
		drafts.RemoveSettled(batch)
		if err := c.gate.MarkLocked(ctx, cat); err != nil {
			c.logger.Error().Err(err).Str("category", string(cat)).Msg("submission: upload date not persisted")
		}
		out.Kind = domain.OutcomeUploaded
		c.logger.Info().Str("category", string(cat)).Int("succeeded", out.Succeeded).Msg("submission: batch uploaded")
		return out, nil
	case out.Succeeded > 0:
		out.Kind = domain.OutcomePartial
		return out, &domain.PartialFailure{Succeeded: out.Succeeded, Failed: out.Failed}
	default:
		out.Kind = domain.OutcomeFailed
		return out, fmt.Errorf("submission: no write accepted: %w", errors.Join(itemErrs...))
	}
}

func (c *Coordinator) scheduleFollowUp(cat domain.Category) {
	if c.followUp <= 0 || c.gate == nil {
		return
	}
	c.schedule(c.followUp, func() {
		ctx, cancel := context.WithTimeout(context.Background(), followUpTimeout)
		defer cancel()
		if _, err := c.gate.Refresh(ctx, cat); err != nil {
			c.logger.Warn().Err(err).Str("category", string(cat)).Msg("submission: follow-up refresh failed")
		}
	})
}

func lockedOutcome(out domain.SubmitOutcome) domain.SubmitOutcome {
	out.Kind = domain.OutcomeLocked
	out.Aborted = true
	return out
}

// pendingEntries drops drafts already accepted by an earlier partial batch.
func pendingEntries(entries []draft.Entry) []draft.Entry {
	out := entries[:0]
	for _, e := range entries {
		if e.Status != domain.DraftAccepted {
			out = append(out, e)
		}
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
