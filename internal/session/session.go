package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"jimpitan/internal/connectivity"
	"jimpitan/internal/domain"
	"jimpitan/internal/draft"
	"jimpitan/internal/gatekeeper"
	"jimpitan/internal/infra"
	"jimpitan/internal/queue"
	"jimpitan/internal/submission"
)

// Options wires a Session. Intervals of zero disable the matching timer.
type Options struct {
	Roster      domain.Roster
	Drafts      *draft.Store
	Gate        *gatekeeper.Gatekeeper
	Coordinator *submission.Coordinator
	Queue       *queue.Queue
	Monitor     *connectivity.Monitor
	Broker      *Broker
	Logger      *infra.Logger

	Initial            domain.Category
	RefreshInterval    time.Duration
	DayInterval        time.Duration
	BackgroundInterval time.Duration
}

// Session owns the working state of one collector: the active category, its drafts
// and the components that upload them.
type Session struct {
	roster  domain.Roster
	drafts  *draft.Store
	gate    *gatekeeper.Gatekeeper
	coord   *submission.Coordinator
	queue   *queue.Queue
	monitor *connectivity.Monitor
	trigger *connectivity.Trigger
	broker  *Broker
	logger  *infra.Logger

	mu     sync.RWMutex
	active domain.Category
}

// DraftView is the rendered draft table of the active category.
type DraftView struct {
	Category   domain.Category `json:"category"`
	Entries    []draft.Entry   `json:"entries"`
	Total      int64           `json:"total"`
	Remaining  []string        `json:"remaining"`
	AllEntered bool            `json:"all_entered"`
	CanSubmit  bool            `json:"can_submit"`
}

// Status is the snapshot rendered by the UI status bar.
type Status struct {
	Online         bool                         `json:"online"`
	Visible        bool                         `json:"visible"`
	ActiveCategory domain.Category              `json:"active_category,omitempty"`
	Day            string                       `json:"day"`
	PendingCount   int                          `json:"pending_count"`
	DraftCount     int                          `json:"draft_count"`
	Categories     []domain.CategoryUploadState `json:"categories"`
}

// New builds a session. Run must be called to start connectivity handling.
func New(opts Options) *Session {
	roster := opts.Roster
	if roster == nil {
		roster = domain.DefaultRosters()
	}
	drafts := opts.Drafts
	if drafts == nil {
		drafts = draft.New()
	}
	broker := opts.Broker
	if broker == nil {
		broker = NewBroker(opts.Logger)
	}
	s := &Session{
		roster:  roster,
		drafts:  drafts,
		gate:    opts.Gate,
		coord:   opts.Coordinator,
		queue:   opts.Queue,
		monitor: opts.Monitor,
		broker:  broker,
		logger:  infra.LoggerOrDiscard(opts.Logger),
		active:  opts.Initial,
	}
	var drainer connectivity.Drainer
	if opts.Queue != nil {
		drainer = opts.Queue
	}
	var refresher connectivity.Refresher
	if opts.Gate != nil {
		refresher = opts.Gate
	}
	s.trigger = connectivity.NewTrigger(connectivity.TriggerOptions{
		Monitor:            opts.Monitor,
		Queue:              drainer,
		Gate:               refresher,
		Active:             s.ActiveCategory,
		Hooks:              s.hooks(),
		RefreshInterval:    opts.RefreshInterval,
		DayInterval:        opts.DayInterval,
		BackgroundInterval: opts.BackgroundInterval,
		Logger:             opts.Logger,
	})
	return s
}

func (s *Session) hooks() connectivity.Hooks {
	return connectivity.Hooks{
		Connectivity: func(online bool) {
			s.broker.Publish(Event{Kind: EventConnectivity, Online: &online})
		},
		Drained: func(res queue.DrainResult, err error) {
			if res.Attempted > 0 || err != nil {
				s.broker.Publish(DrainedEvent(res, err))
			}
		},
		DayChanged: func() {
			s.broker.Publish(Event{Kind: EventDayChanged})
		},
	}
}

// Run starts the connectivity monitor and the sync trigger and blocks until ctx is done.
func (s *Session) Run(ctx context.Context) {
	if s.monitor != nil {
		go s.monitor.Run(ctx)
	}
	s.trigger.Run(ctx)
}

// Broker exposes the status broker.
func (s *Session) Broker() *Broker { return s.broker }

// Subscribe registers a status subscriber.
func (s *Session) Subscribe() (<-chan Event, func()) { return s.broker.Subscribe() }

// Publish sends e to every subscriber.
func (s *Session) Publish(e Event) { s.broker.Publish(e) }

// ActiveCategory returns the selected category, or "" before one is chosen.
func (s *Session) ActiveCategory() domain.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Roster returns the donor roster of the active category.
func (s *Session) Roster() []string {
	return s.roster.Names(s.ActiveCategory())
}

// Rosters returns every category roster.
func (s *Session) Rosters() domain.Roster { return s.roster }

// SwitchCategory selects cat, discards the drafts of the previous category and
// re-derives the upload state of cat.
func (s *Session) SwitchCategory(ctx context.Context, cat domain.Category) (domain.CategoryUploadState, error) {
	if !cat.Valid() {
		return domain.CategoryUploadState{}, &domain.ValidationError{Field: "category", Message: "is not a known category", Err: domain.ErrUnknownCategory}
	}
	s.mu.Lock()
	prev := s.active
	s.active = cat
	s.mu.Unlock()

	s.drafts.Clear()
	if prev != cat {
		s.logger.Info().Str("from", string(prev)).Str("to", string(cat)).Msg("session: category switched")
	}
	s.broker.Publish(Event{Kind: EventCategoryChanged, Category: cat})

	var err error
	if s.gate != nil {
		if s.Online() {
			_, err = s.gate.Refresh(ctx, cat)
		} else {
			_, err = s.gate.ApplyFallback(ctx, cat)
		}
		return s.gate.State(cat), err
	}
	return domain.CategoryUploadState{Category: cat, State: domain.UploadUnknown}, nil
}

// Upsert records or replaces a donor's draft in the active category.
func (s *Session) Upsert(donorName string, amount int64) (bool, error) {
	cat := s.ActiveCategory()
	if cat == "" {
		return false, &domain.ValidationError{Field: "category", Message: "must be selected first"}
	}
	if s.gate != nil && s.gate.State(cat).State == domain.UploadLocked {
		return false, &domain.AlreadyUploadedError{Category: cat, Message: "category is locked for today"}
	}
	inserted, err := s.drafts.Upsert(donorName, amount)
	if err != nil {
		return false, err
	}
	s.broker.Publish(Event{Kind: EventDrafts, Category: cat})
	return inserted, nil
}

// Remove deletes a donor's draft.
func (s *Session) Remove(donorName string) bool {
	removed := s.drafts.Remove(donorName)
	if removed {
		s.broker.Publish(Event{Kind: EventDrafts, Category: s.ActiveCategory()})
	}
	return removed
}

// ClearDrafts empties the draft table.
func (s *Session) ClearDrafts() {
	s.drafts.Clear()
	s.broker.Publish(Event{Kind: EventDrafts, Category: s.ActiveCategory()})
}

// Drafts renders the draft table in roster order with its derived views.
func (s *Session) Drafts() DraftView {
	cat := s.ActiveCategory()
	roster := s.roster.Names(cat)
	remaining := s.drafts.Remaining(roster)
	return DraftView{
		Category:   cat,
		Entries:    s.drafts.ListOrdered(roster),
		Total:      s.drafts.Total(),
		Remaining:  remaining,
		AllEntered: len(roster) > 0 && len(remaining) == 0,
		CanSubmit:  s.CanSubmit(),
	}
}

// CanSubmit reports whether the active category may be submitted now.
func (s *Session) CanSubmit() bool {
	cat := s.ActiveCategory()
	if cat == "" || s.gate == nil {
		return false
	}
	return s.gate.CanSubmit(cat, s.drafts.Len())
}

// Submit uploads the drafts of the active category and publishes the outcome.
func (s *Session) Submit(ctx context.Context) (domain.SubmitOutcome, error) {
	cat := s.ActiveCategory()
	if cat == "" {
		return domain.SubmitOutcome{Kind: domain.OutcomeFailed}, &domain.ValidationError{Field: "category", Message: "must be selected first"}
	}
	if s.coord == nil {
		return domain.SubmitOutcome{Category: cat, Kind: domain.OutcomeFailed}, errors.New("session: submission not configured")
	}
	out, err := s.coord.Submit(ctx, cat, s.drafts, s.roster.Names(cat))
	if errors.Is(err, submission.ErrInProgress) {
		return out, err
	}
	e := Event{Kind: EventOutcome, Category: cat, Outcome: &out}
	if err != nil {
		e.Error = err.Error()
	}
	s.broker.Publish(e)
	return out, err
}

// Online reports the last known connectivity.
func (s *Session) Online() bool {
	return s.monitor != nil && s.monitor.Online()
}

// SetOnline records a connectivity report from the UI.
func (s *Session) SetOnline(online bool) bool {
	if s.monitor == nil {
		return false
	}
	return s.monitor.Set(online)
}

// SetVisible records a page visibility report from the UI.
func (s *Session) SetVisible(visible bool) {
	s.trigger.SetVisible(visible)
}

// Visible reports the last visibility processed by the trigger.
func (s *Session) Visible() bool {
	return s.trigger.Visible()
}

// Pending lists queued writes.
func (s *Session) Pending(ctx context.Context) ([]domain.PendingSyncItem, error) {
	if s.queue == nil {
		return nil, nil
	}
	return s.queue.List(ctx)
}

// Drain replays the queue now.
func (s *Session) Drain(ctx context.Context) (queue.DrainResult, error) {
	if s.queue == nil {
		return queue.DrainResult{}, nil
	}
	res, err := s.queue.DrainAll(ctx)
	s.broker.Publish(DrainedEvent(res, err))
	return res, err
}

// Status returns the current snapshot.
func (s *Session) Status(ctx context.Context) (Status, error) {
	st := Status{
		Online:         s.Online(),
		Visible:        s.Visible(),
		ActiveCategory: s.ActiveCategory(),
		DraftCount:     s.drafts.Len(),
	}
	if s.gate != nil {
		st.Day = s.gate.Today()
		st.Categories = s.gate.States()
	}
	if s.queue != nil {
		n, err := s.queue.Count(ctx)
		if err != nil {
			return st, err
		}
		st.PendingCount = n
	}
	return st, nil
}
