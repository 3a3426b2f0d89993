package connectivity

import (
	"context"
	"sync/atomic"
	"time"

	"jimpitan/internal/domain"
	"jimpitan/internal/infra"
	"jimpitan/internal/queue"
)

// Drainer replays the durable queue.
type Drainer interface {
	DrainAll(ctx context.Context) (queue.DrainResult, error)
	Wakeups() <-chan struct{}
}

// Refresher re-derives upload state.
type Refresher interface {
	Refresh(ctx context.Context, cat domain.Category) (domain.UploadState, error)
	CheckDayChange(ctx context.Context) bool
}

// Hooks lets the session observe what the trigger did.
type Hooks struct {
	Connectivity func(online bool)
	Drained      func(res queue.DrainResult, err error)
	DayChanged   func()
}

// TriggerOptions configures a Trigger.
type TriggerOptions struct {
	Monitor            *Monitor
	Queue              Drainer
	Gate               Refresher
	Active             func() domain.Category
	Hooks              Hooks
	RefreshInterval    time.Duration
	DayInterval        time.Duration
	BackgroundInterval time.Duration
	Logger             *infra.Logger
}

// Trigger reacts to connectivity, visibility and timer events by draining the queue
// and refreshing upload state. Run handles events one at a time.
type Trigger struct {
	monitor *Monitor
	queue   Drainer
	gate    Refresher
	active  func() domain.Category
	hooks   Hooks
	logger  *infra.Logger

	refreshEvery    time.Duration
	dayEvery        time.Duration
	backgroundEvery time.Duration

	visible    atomic.Bool
	visibility chan bool
}

// NewTrigger builds a trigger. The page starts visible.
func NewTrigger(opts TriggerOptions) *Trigger {
	t := &Trigger{
		monitor:         opts.Monitor,
		queue:           opts.Queue,
		gate:            opts.Gate,
		active:          opts.Active,
		hooks:           opts.Hooks,
		logger:          infra.LoggerOrDiscard(opts.Logger),
		refreshEvery:    opts.RefreshInterval,
		dayEvery:        opts.DayInterval,
		backgroundEvery: opts.BackgroundInterval,
		visibility:      make(chan bool, 1),
	}
	t.visible.Store(true)
	return t
}

// Visible reports the last visibility the UI reported.
func (t *Trigger) Visible() bool {
	return t.visible.Load()
}

// SetVisible hands a visibility change to the Run loop without blocking.
func (t *Trigger) SetVisible(visible bool) {
	select {
	case <-t.visibility:
	default:
	}
	t.visibility <- visible
}

func (t *Trigger) online() bool {
	return t.monitor != nil && t.monitor.Online()
}

// HandleConnectivity drains the queue and refreshes the active category on the way
// online; going offline only surfaces the indicator.
func (t *Trigger) HandleConnectivity(ctx context.Context, online bool) {
	if t.hooks.Connectivity != nil {
		t.hooks.Connectivity(online)
	}
	if !online {
		t.logger.Info().Msg("trigger: offline, waiting for connectivity")
		return
	}
	t.drain(ctx)
	t.refreshActive(ctx)
}

// HandleVisibility refreshes immediately when the page becomes visible.
func (t *Trigger) HandleVisibility(ctx context.Context, visible bool) {
	t.visible.Store(visible)
	if visible && t.online() {
		t.refreshActive(ctx)
	}
}

// RefreshTick refreshes the active category while visible and online.
func (t *Trigger) RefreshTick(ctx context.Context) {
	if t.Visible() && t.online() {
		t.refreshActive(ctx)
	}
}

// DayTick resets upload state when the local date changed.
func (t *Trigger) DayTick(ctx context.Context) {
	if t.gate == nil || !t.gate.CheckDayChange(ctx) {
		return
	}
	if t.hooks.DayChanged != nil {
		t.hooks.DayChanged()
	}
	if t.online() {
		t.refreshActive(ctx)
	}
}

// BackgroundTick drains the queue when online, whether or not the page is visible.
func (t *Trigger) BackgroundTick(ctx context.Context) {
	if t.online() {
		t.drain(ctx)
	}
}

// Run dispatches events until ctx is done.
func (t *Trigger) Run(ctx context.Context) {
	refresh := newTicker(t.refreshEvery)
	defer refresh.stop()
	day := newTicker(t.dayEvery)
	defer day.stop()
	background := newTicker(t.backgroundEvery)
	defer background.stop()

	var changes <-chan bool
	if t.monitor != nil {
		changes = t.monitor.Changes()
	}
	var wakeups <-chan struct{}
	if t.queue != nil {
		wakeups = t.queue.Wakeups()
	}

	if t.online() {
		t.drain(ctx)
		t.refreshActive(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case online := <-changes:
			t.HandleConnectivity(ctx, online)
		case visible := <-t.visibility:
			t.HandleVisibility(ctx, visible)
		case <-wakeups:
			if t.online() {
				t.drain(ctx)
			}
		case <-refresh.c:
			t.RefreshTick(ctx)
		case <-day.c:
			t.DayTick(ctx)
		case <-background.c:
			t.BackgroundTick(ctx)
		}
	}
}

func (t *Trigger) drain(ctx context.Context) {
	if t.queue == nil {
		return
	}
	res, err := t.queue.DrainAll(ctx)
	if err != nil {
		t.logger.Warn().Err(err).Msg("trigger: drain failed")
	}
	if t.hooks.Drained != nil {
		t.hooks.Drained(res, err)
	}
}

func (t *Trigger) refreshActive(ctx context.Context) {
	if t.gate == nil || t.active == nil {
		return
	}
	cat := t.active()
	if cat == "" {
		return
	}
	if _, err := t.gate.Refresh(ctx, cat); err != nil {
		t.logger.Warn().Err(err).Str("category", string(cat)).Msg("trigger: refresh failed")
	}
}

// optionalTicker is a ticker whose channel never fires when the interval is zero.
type optionalTicker struct {
	t *time.Ticker
	c <-chan time.Time
}

func newTicker(d time.Duration) optionalTicker {
	if d <= 0 {
		return optionalTicker{}
	}
	t := time.NewTicker(d)
	return optionalTicker{t: t, c: t.C}
}

func (o optionalTicker) stop() {
	if o.t != nil {
		o.t.Stop()
	}
}
