package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/dealroom/internal/api"
	"github.com/nhle/dealroom/internal/logging"
	"github.com/nhle/dealroom/internal/model"
	"github.com/nhle/dealroom/internal/store"
)

// Backend is the part of the API client the worker reconciles against.
type Backend interface {
	ListDeals(ctx context.Context) ([]model.Deal, error)
	UpdateDealStage(ctx context.Context, id string, stage model.DealStage) (model.Deal, error)
	CreateAnnotation(ctx context.Context, a model.Annotation) error
	FetchNotifications(ctx context.Context, token string, since time.Time) ([]model.NotificationItem, error)
	Ping(ctx context.Context) error
}

// ResultMsg is a tea.Msg sent when a sync pass completes.
type ResultMsg struct {
	// Deals is the merged local deal list after the pass, nil when the
	// deal refresh failed.
	Deals []model.Deal

	// Notifications are feed items received since the previous pass,
	// oldest first.
	Notifications []model.NotificationItem

	AnnotationsSynced  int
	AnnotationsPending int
	DealsPushed        int

	// Err joins every non-fatal failure of the pass.
	Err error

	// AuthErr is set when the backend rejected the session; the pass
	// stopped at that point.
	AuthErr error
}

// ConnectivityMsg is a tea.Msg sent when the backend's reachability changes.
type ConnectivityMsg struct {
	Online bool
	Err    error
}

// passTimeout bounds a single sync pass.
const passTimeout = 60 * time.Second

const feedSinceKey = "feed_since"

// uploadGrace is how long a freshly saved annotation is left to the upload
// its save call started before a pass pushes it.
const uploadGrace = 30 * time.Second

// Worker runs background reconciliation with the backend: pending
// annotations are uploaded, offline deal edits pushed, the deal cache
// refreshed and the notification feed polled. A second loop probes
// connectivity.
type Worker struct {
	backend Backend
	store   store.Store
	log     logging.Logger

	interval      time.Duration
	probeInterval time.Duration

	resultCh  chan tea.Msg
	triggerCh chan struct{}

	mu      gosync.Mutex
	stopCh  chan struct{}
	running bool
	token   string
	online  bool
	passMu  gosync.Mutex
	now     func() time.Time
}

// New creates a worker. Intervals <= 0 fall back to one minute for sync
// and five seconds for the probe.
func New(b Backend, s store.Store, log logging.Logger, interval, probeInterval time.Duration) *Worker {
	if interval <= 0 {
		interval = time.Minute
	}
	if probeInterval <= 0 {
		probeInterval = 5 * time.Second
	}
	return &Worker{
		backend:       b,
		store:         s,
		log:           log.With("component", "sync"),
		interval:      interval,
		probeInterval: probeInterval,
		resultCh:      make(chan tea.Msg, 16),
		triggerCh:     make(chan struct{}, 1),
		online:        true,
		now:           time.Now,
	}
}

// SetDeviceToken sets the push token whose feed is polled. An empty token
// disables feed polling.
func (w *Worker) SetDeviceToken(token string) {
	w.mu.Lock()
	w.token = token
	w.mu.Unlock()
}

func (w *Worker) deviceToken() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.token
}

// Start launches the sync and probe goroutines and returns a tea.Cmd that
// waits for their first message. Starting a running worker is a no-op.
func (w *Worker) Start() tea.Cmd {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	stop := w.stopCh
	w.mu.Unlock()

	go w.syncLoop(stop)
	go w.probeLoop(stop)

	return w.WaitForNext()
}

// Stop halts the background goroutines. The worker can be started again.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	close(w.stopCh)
	w.running = false
}

// Running reports whether the background loops are active.
func (w *Worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Trigger requests an immediate sync pass.
func (w *Worker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
		// A pass is already queued.
	}
}

// WaitForNext returns a tea.Cmd that waits for the next worker message.
// Call it again after handling each message to keep listening.
func (w *Worker) WaitForNext() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-w.resultCh
		if !ok {
			return nil
		}
		return msg
	}
}

func (w *Worker) syncLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.runPass(stop)

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			w.runPass(stop)
		case <-w.triggerCh:
			w.runPass(stop)
		}
	}
}

func (w *Worker) probeLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(w.probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), w.probeInterval)
			msg, changed := w.Probe(ctx)
			cancel()
			if !changed {
				continue
			}
			w.send(stop, msg)
			if msg.Online {
				w.Trigger()
			}
		}
	}
}

func (w *Worker) runPass(stop <-chan struct{}) {
	ctx, cancel := context.WithTimeout(context.Background(), passTimeout)
	defer cancel()
	w.send(stop, w.RunOnce(ctx))
}

// send delivers msg, waiting for the reader while the channel is full. A
// result carries feed items past a cursor that is already saved, so it is
// never dropped. Only stop gives up.
func (w *Worker) send(stop <-chan struct{}, msg tea.Msg) {
	select {
	case w.resultCh <- msg:
	case <-stop:
	}
}

// Probe pings the backend and reports the result and whether it differs
// from the previous probe.
func (w *Worker) Probe(ctx context.Context) (ConnectivityMsg, bool) {
	err := w.backend.Ping(ctx)
	online := err == nil || !errors.Is(err, api.ErrUnavailable)

	w.mu.Lock()
	changed := online != w.online
	w.online = online
	w.mu.Unlock()

	if changed {
		w.log.Info(ctx, "connectivity changed", "online", online)
	}
	return ConnectivityMsg{Online: online, Err: err}, changed
}

// RunOnce performs one sync pass. Passes never overlap.
func (w *Worker) RunOnce(ctx context.Context) ResultMsg {
	w.passMu.Lock()
	defer w.passMu.Unlock()

	var res ResultMsg
	var errs []error

	fail := func(step string, err error) bool {
		if api.IsAuthError(err) {
			res.AuthErr = err
			return true
		}
		errs = append(errs, fmt.Errorf("%s: %w", step, err))
		return false
	}

	if stop := w.pushAnnotations(ctx, &res, fail); stop {
		return res
	}
	if stop := w.pushDeals(ctx, &res, fail); stop {
		return res
	}

	deals, err := w.backend.ListDeals(ctx)
	if err != nil {
		if fail("refreshing deals", err) {
			return res
		}
	} else if err := w.store.UpsertDeals(ctx, deals); err != nil {
		errs = append(errs, fmt.Errorf("caching deals: %w", err))
	} else if merged, err := w.store.GetDeals(ctx, store.DealFilter{}); err != nil {
		errs = append(errs, fmt.Errorf("loading deals: %w", err))
	} else {
		res.Deals = merged
	}

	if token := w.deviceToken(); token != "" {
		items, err := w.pollFeed(ctx, token)
		if err != nil {
			if fail("polling notifications", err) {
				return res
			}
		}
		res.Notifications = items
	}

	res.Err = errors.Join(errs...)
	if res.Err != nil {
		w.log.Warn(ctx, "sync pass incomplete", "error", res.Err)
	} else {
		w.log.Debug(ctx, "sync pass complete",
			"annotations_synced", res.AnnotationsSynced,
			"deals_pushed", res.DealsPushed,
			"notifications", len(res.Notifications),
		)
	}
	return res
}

func (w *Worker) pushAnnotations(ctx context.Context, res *ResultMsg, fail func(string, error) bool) bool {
	pending, err := w.store.PendingAnnotations(ctx)
	if err != nil {
		fail("loading pending annotations", err)
		return false
	}

	cutoff := w.now().Add(-uploadGrace)
	for i, a := range pending {
		if a.CreatedAt.After(cutoff) {
			res.AnnotationsPending++
			continue
		}
		if err := w.backend.CreateAnnotation(ctx, a); err != nil {
			res.AnnotationsPending += len(pending) - i
			if fail("uploading annotation "+a.ID, err) {
				return true
			}
			// Keep the remaining ones for the next pass.
			return false
		}
		if err := w.store.MarkAnnotationSynced(ctx, a.ID); err != nil {
			fail("marking annotation "+a.ID, err)
			continue
		}
		res.AnnotationsSynced++
	}
	return false
}

func (w *Worker) pushDeals(ctx context.Context, res *ResultMsg, fail func(string, error) bool) bool {
	deals, err := w.store.GetDeals(ctx, store.DealFilter{OfflineOnly: true})
	if err != nil {
		fail("loading offline deals", err)
		return false
	}

	for _, d := range deals {
		accepted, err := w.backend.UpdateDealStage(ctx, d.ID, d.Stage)
		if err != nil {
			if fail("pushing deal "+d.ID, err) {
				return true
			}
			continue
		}
		if err := w.store.MarkDealSynced(ctx, accepted); err != nil {
			fail("saving deal "+d.ID, err)
			continue
		}
		res.DealsPushed++
	}
	return false
}

func (w *Worker) pollFeed(ctx context.Context, token string) ([]model.NotificationItem, error) {
	var since time.Time
	if raw, err := w.store.GetMeta(ctx, feedSinceKey); err == nil {
		since, _ = time.Parse(time.RFC3339Nano, raw)
	}

	items, err := w.backend.FetchNotifications(ctx, token, since)
	if err != nil {
		return nil, err
	}

	latest := since
	for _, it := range items {
		if it.ReceivedAt.After(latest) {
			latest = it.ReceivedAt
		}
	}
	if latest.After(since) {
		if err := w.store.SetMeta(ctx, feedSinceKey, latest.UTC().Format(time.RFC3339Nano)); err != nil {
			return items, fmt.Errorf("saving feed cursor: %w", err)
		}
	}
	return items, nil
}
