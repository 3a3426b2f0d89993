package gatekeeper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"jimpitan/internal/domain"
	"jimpitan/internal/infra"
)

const dateLayout = "2006-01-02"

// StatusChecker asks the server whether a category already received today's upload.
type StatusChecker interface {
	UploadStatus(ctx context.Context, cat domain.Category) (bool, error)
}

// Options wires the gatekeeper's collaborators.
type Options struct {
	Checker  StatusChecker
	Dates    domain.UploadDateRepository
	Location *time.Location
	Now      func() time.Time
	Logger   *infra.Logger
	OnChange func(domain.CategoryUploadState)
}

type categoryState struct {
	state domain.UploadState
}

// Gatekeeper tracks the per-category Unknown/Ready/Locked state for the current local day.
// Locked is terminal until the day rolls over.
type Gatekeeper struct {
	checker  StatusChecker
	dates    domain.UploadDateRepository
	loc      *time.Location
	now      func() time.Time
	logger   *infra.Logger
	onChange func(domain.CategoryUploadState)

	mu         sync.Mutex
	day        string
	states     map[domain.Category]*categoryState
	lastUpload map[domain.Category]string
}

// New builds a gatekeeper with every category Unknown for today.
func New(opts Options) *Gatekeeper {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	g := &Gatekeeper{
		checker:    opts.Checker,
		dates:      opts.Dates,
		loc:        loc,
		now:        now,
		logger:     infra.LoggerOrDiscard(opts.Logger),
		onChange:   opts.OnChange,
		lastUpload: make(map[domain.Category]string),
	}
	g.day = g.Today()
	g.states = freshStates()
	return g
}

func freshStates() map[domain.Category]*categoryState {
	states := make(map[domain.Category]*categoryState, len(domain.Categories()))
	for _, c := range domain.Categories() {
		states[c] = &categoryState{state: domain.UploadUnknown}
	}
	return states
}

// Today returns the current local date as YYYY-MM-DD.
func (g *Gatekeeper) Today() string {
	return g.now().In(g.loc).Format(dateLayout)
}

// Load primes the in-memory copy of the fallback date map.
func (g *Gatekeeper) Load(ctx context.Context) error {
	if g.dates == nil {
		return nil
	}
	dates, err := g.dates.LastUploadDates(ctx)
	if err != nil {
		return fmt.Errorf("gatekeeper: load upload dates: %w", err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for c, d := range dates {
		g.lastUpload[c] = d
	}
	return nil
}

// State returns the snapshot for cat.
func (g *Gatekeeper) State(cat domain.Category) domain.CategoryUploadState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshotLocked(cat)
}

// States returns a snapshot of every category in canonical order.
func (g *Gatekeeper) States() []domain.CategoryUploadState {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]domain.CategoryUploadState, 0, len(g.states))
	for _, c := range domain.Categories() {
		out = append(out, g.snapshotLocked(c))
	}
	return out
}

// CanSubmit is true only when cat is Ready and at least one draft exists.
func (g *Gatekeeper) CanSubmit(cat domain.Category, draftCount int) bool {
	if draftCount <= 0 {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.states[cat]
	return ok && st.state == domain.UploadReady
}

// Refresh re-derives the state of cat from the server. When the server cannot be
// reached it falls back to the persisted last-upload-date map. A Locked state is
// never downgraded within the same day.
func (g *Gatekeeper) Refresh(ctx context.Context, cat domain.Category) (domain.UploadState, error) {
	if !cat.Valid() {
		return domain.UploadUnknown, fmt.Errorf("gatekeeper: %w: %q", domain.ErrUnknownCategory, cat)
	}
	g.CheckDayChange(ctx)

	g.mu.Lock()
	day := g.day
	if g.states[cat].state == domain.UploadLocked {
		g.mu.Unlock()
		return domain.UploadLocked, nil
	}
	g.mu.Unlock()

	if g.checker == nil {
		return g.ApplyFallback(ctx, cat)
	}

	uploaded, err := g.checker.UploadStatus(ctx, cat)
	if err != nil {
		g.logger.Warn().Err(err).Str("category", string(cat)).Msg("gatekeeper: remote status failed, using local fallback")
		state, fbErr := g.ApplyFallback(ctx, cat)
		if fbErr != nil {
			return state, errors.Join(err, fbErr)
		}
		return state, nil
	}

	next := domain.UploadReady
	if uploaded {
		next = domain.UploadLocked
	}
	state, changed := g.apply(day, cat, next, uploaded)
	if changed && state == domain.UploadLocked {
		if err := g.persistDate(ctx, cat, day); err != nil {
			return state, err
		}
	}
	return state, nil
}

// ApplyFallback derives the state of cat from the persisted last-upload-date map only.
func (g *Gatekeeper) ApplyFallback(ctx context.Context, cat domain.Category) (domain.UploadState, error) {
	if !cat.Valid() {
		return domain.UploadUnknown, fmt.Errorf("gatekeeper: %w: %q", domain.ErrUnknownCategory, cat)
	}
	g.mu.Lock()
	day := g.day
	current := g.states[cat].state
	g.mu.Unlock()
	if current == domain.UploadLocked {
		return current, nil
	}
	if g.dates == nil {
		return current, nil
	}

	dates, err := g.dates.LastUploadDates(ctx)
	if err != nil {
		return current, fmt.Errorf("gatekeeper: read upload dates: %w", err)
	}
	next := domain.UploadReady
	if dates[cat] == day {
		next = domain.UploadLocked
	}

	g.mu.Lock()
	if d, ok := dates[cat]; ok {
		g.lastUpload[cat] = d
	}
	g.mu.Unlock()

	state, _ := g.apply(day, cat, next, false)
	return state, nil
}

// MarkLocked locks cat for the rest of the day and records today in the fallback map.
func (g *Gatekeeper) MarkLocked(ctx context.Context, cat domain.Category) error {
	if !cat.Valid() {
		return fmt.Errorf("gatekeeper: %w: %q", domain.ErrUnknownCategory, cat)
	}
	g.CheckDayChange(ctx)
	g.mu.Lock()
	day := g.day
	g.mu.Unlock()

	g.apply(day, cat, domain.UploadLocked, true)
	return g.persistDate(ctx, cat, day)
}

// CheckDayChange resets every category to Unknown and clears the fallback map when
// the local date has moved on. It reports whether a reset happened.
func (g *Gatekeeper) CheckDayChange(ctx context.Context) bool {
	today := g.Today()
	g.mu.Lock()
	if today == g.day {
		g.mu.Unlock()
		return false
	}
	prev := g.day
	g.day = today
	g.states = freshStates()
	g.lastUpload = make(map[domain.Category]string)
	snapshots := make([]domain.CategoryUploadState, 0, len(g.states))
	for _, c := range domain.Categories() {
		snapshots = append(snapshots, g.snapshotLocked(c))
	}
	g.mu.Unlock()

	g.logger.Info().Str("previous_day", prev).Str("day", today).Msg("gatekeeper: day changed, state reset")
	if g.dates != nil {
		if err := g.dates.Clear(ctx); err != nil {
			g.logger.Error().Err(err).Msg("gatekeeper: clear upload dates failed")
		}
	}
	for _, s := range snapshots {
		g.notify(s)
	}
	return true
}

func (g *Gatekeeper) apply(day string, cat domain.Category, next domain.UploadState, remote bool) (domain.UploadState, bool) {
	g.mu.Lock()
	if g.day != day {
		st := g.states[cat].state
		g.mu.Unlock()
		return st, false
	}
	st := g.states[cat]
	if st.state == domain.UploadLocked || st.state == next {
		current := st.state
		g.mu.Unlock()
		return current, false
	}
	st.state = next
	snapshot := g.snapshotLocked(cat)
	g.mu.Unlock()

	g.logger.Debug().Str("category", string(cat)).Str("state", string(next)).Bool("remote", remote).Msg("gatekeeper: state changed")
	g.notify(snapshot)
	return next, true
}

func (g *Gatekeeper) persistDate(ctx context.Context, cat domain.Category, day string) error {
	g.mu.Lock()
	g.lastUpload[cat] = day
	g.mu.Unlock()
	if g.dates == nil {
		return nil
	}
	if err := g.dates.SetLastUploadDate(ctx, cat, day); err != nil {
		g.logger.Error().Err(err).Str("category", string(cat)).Msg("gatekeeper: persist upload date failed")
		return &domain.StorageError{Op: "set last upload date", Err: err}
	}
	return nil
}

func (g *Gatekeeper) snapshotLocked(cat domain.Category) domain.CategoryUploadState {
	out := domain.CategoryUploadState{Category: cat, State: domain.UploadUnknown}
	if st, ok := g.states[cat]; ok {
		out.State = st.state
		out.UploadedToday = st.state == domain.UploadLocked
	}
	out.LastUploadDate = g.lastUpload[cat]
	return out
}

func (g *Gatekeeper) notify(s domain.CategoryUploadState) {
	if g.onChange != nil {
		g.onChange(s)
	}
}
