// Package tracker follows long-running platform tasks (imports, exports,
// index updates) started by this client. It polls their status, reports
// completion and failure through a notify.Notifier and downloads the
// artifacts of finished export tasks.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"tekst-client/api"
	"tekst-client/i18n"
	"tekst-client/model"
	"tekst-client/notify"
	"tekst-client/state"
	"tekst-client/worker"
)

const (
	DefaultInterval = 5 * time.Second

	persistTimeout = 5 * time.Second
)

// TaskSource is the part of the API client the tracker needs.
type TaskSource interface {
	UserTasks(ctx context.Context, pickupKeys []string) ([]model.Task, error)
	DownloadArtifact(ctx context.Context, pickupKey string) (*api.Artifact, error)
}

type Tracker struct {
	source   TaskSource
	sched    worker.Scheduler
	notifier notify.Notifier
	catalog  *i18n.Catalog
	saver    Saver
	store    state.Store
	logger   *slog.Logger
	interval time.Duration

	mu       sync.Mutex
	tasks    []model.Task
	showList bool
	cancel   worker.CancelFunc
	gen      uint64
	halted   chan struct{}

	persistMu sync.Mutex
}

type Option func(*Tracker)

func WithScheduler(s worker.Scheduler) Option { return func(t *Tracker) { t.sched = s } }
func WithNotifier(n notify.Notifier) Option   { return func(t *Tracker) { t.notifier = n } }
func WithCatalog(c *i18n.Catalog) Option      { return func(t *Tracker) { t.catalog = c } }
func WithSaver(s Saver) Option                { return func(t *Tracker) { t.saver = s } }
func WithLogger(l *slog.Logger) Option        { return func(t *Tracker) { t.logger = l } }

// WithStore persists the tracked tasks under state.KeyTasks.
func WithStore(s state.Store) Option { return func(t *Tracker) { t.store = s } }

func WithInterval(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.interval = d
		}
	}
}

// New creates a tracker. Without WithScheduler it polls on a TimeoutPoller
// bound to context.Background().
func New(source TaskSource, opts ...Option) *Tracker {
	t := &Tracker{
		source:   source,
		notifier: notify.Discard,
		saver:    DirSaver{Dir: "."},
		logger:   slog.Default(),
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With("component", "tracker")
	if t.catalog == nil {
		t.catalog = i18n.New()
	}
	if t.sched == nil {
		t.sched = worker.NewTimeoutPoller(context.Background(), t.logger)
	}
	return t
}

// AddTask starts tracking a task returned by a job-starting request, shows
// the task list and starts polling if it is not running yet.
func (t *Tracker) AddTask(task model.Task) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	t.mu.Lock()
	if i := t.indexLocked(task.ID); i >= 0 {
		t.tasks[i] = task
	} else {
		t.tasks = append(t.tasks, task)
	}
	t.sortLocked()
	t.showList = true
	t.mu.Unlock()

	t.persist()
	t.StartPolling()
	return nil
}

// RemoveTask forgets the task with the given id. With an empty id it forgets
// every task that is done. Tasks on the server are not touched.
func (t *Tracker) RemoveTask(id string) {
	t.mu.Lock()
	t.tasks = slices.DeleteFunc(t.tasks, func(task model.Task) bool {
		if id != "" {
			return task.ID == id
		}
		return task.Status == model.StatusDone
	})
	t.mu.Unlock()

	t.persist()
}

// Tasks returns the tracked tasks, most recently started first.
func (t *Tracker) Tasks() []model.Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.tasks)
}

// ShowTasksWidget reports whether there is anything to show.
func (t *Tracker) ShowTasksWidget() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tasks) > 0
}

func (t *Tracker) ShowTasksList() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.showList
}

func (t *Tracker) SetShowTasksList(show bool) {
	t.mu.Lock()
	t.showList = show
	t.mu.Unlock()
}

// StartPolling arms the poll loop. It is a no-op while polling is active.
func (t *Tracker) StartPolling() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		return
	}
	t.gen++
	gen := t.gen
	t.halted = make(chan struct{})
	t.cancel = t.sched.Schedule(t.interval, func(ctx context.Context) {
		t.poll(ctx, gen)
	})
	t.logger.Debug("polling started", "interval", t.interval)
}

// StopPolling disarms the poll loop. A cycle already waiting on the network
// still applies its response but does not re-arm.
func (t *Tracker) StopPolling() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *Tracker) stopLocked() {
	if t.cancel == nil {
		return
	}
	t.cancel()
	t.cancel = nil
	close(t.halted)
	t.logger.Debug("polling stopped")
}

func (t *Tracker) Polling() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}

// Done returns a channel that is closed once polling halts. When polling is
// not active the channel is already closed.
func (t *Tracker) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel == nil {
		c := make(chan struct{})
		close(c)
		return c
	}
	return t.halted
}

// Restore loads tasks persisted by an earlier run and resumes polling when
// any of them is still active. Tasks already tracked win over stored ones.
func (t *Tracker) Restore(ctx context.Context) error {
	if t.store == nil {
		return nil
	}
	var stored []model.Task
	if err := state.LoadJSON(ctx, t.store, state.KeyTasks, &stored); err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("restore tasks: %w", err)
	}

	t.mu.Lock()
	for _, task := range stored {
		if t.indexLocked(task.ID) < 0 {
			t.tasks = append(t.tasks, task)
		}
	}
	t.sortLocked()
	active := t.anyActiveLocked()
	t.mu.Unlock()

	if active {
		t.StartPolling()
	}
	return nil
}

// AbsorbPollError is the policy for failed poll requests: log, count and
// carry on. The tracked tasks stay as they are and the next cycle retries.
func (t *Tracker) AbsorbPollError(err error) {
	pollErrorsTotal.Inc()
	t.logger.Debug("task poll failed, retrying next cycle", "error", err)
}

func (t *Tracker) poll(ctx context.Context, gen uint64) {
	pollsTotal.Inc()

	t.mu.Lock()
	keys := make([]string, 0, len(t.tasks))
	for _, task := range t.tasks {
		keys = append(keys, task.PickupKey)
	}
	t.mu.Unlock()

	latest, err := t.source.UserTasks(ctx, keys)
	if err != nil {
		t.AbsorbPollError(err)
		return
	}

	changed := t.merge(latest)
	for _, task := range changed {
		t.handleChange(ctx, task)
	}

	t.mu.Lock()
	t.sortLocked()
	if !t.anyActiveLocked() && t.gen == gen {
		t.stopLocked()
	}
	t.mu.Unlock()

	if len(changed) > 0 {
		t.persist()
	}
}

// merge applies a poll response and returns the tasks that are new or whose
// status moved forward. Reports that would move a task backwards are
// dropped; tasks missing from the response are left alone.
func (t *Tracker) merge(latest []model.Task) []model.Task {
	t.mu.Lock()
	defer t.mu.Unlock()

	var changed []model.Task
	for _, task := range latest {
		i := t.indexLocked(task.ID)
		switch {
		case i < 0:
			t.tasks = append(t.tasks, task)
		case t.tasks[i].Status == task.Status:
			continue
		case !t.tasks[i].Status.Precedes(task.Status):
			t.logger.Debug("ignoring status regression",
				"task", task.ID, "held", t.tasks[i].Status, "reported", task.Status)
			continue
		default:
			t.tasks[i] = task
		}
		transitionsTotal.WithLabelValues(string(task.Status)).Inc()
		changed = append(changed, task)
	}
	return changed
}

func (t *Tracker) handleChange(ctx context.Context, task model.Task) {
	name := t.catalog.T("tasks.types."+string(task.Type), nil)

	switch task.Status {
	case model.StatusDone:
		msg := t.catalog.T("tasks.successful", map[string]any{"name": name})
		if key := "tasks.results." + string(task.Type); t.catalog.Has(key) {
			msg = strings.TrimSpace(msg + " " + t.catalog.T(key, task.Result))
		}
		t.notifier.Notify(notify.Notification{Level: notify.Success, Message: msg})
	case model.StatusFailed:
		var detail string
		if task.Error != nil {
			if key := "errors." + *task.Error; t.catalog.Has(key) {
				detail = t.catalog.T(key, nil)
			}
		}
		t.notifier.Notify(notify.Notification{
			Level:   notify.Error,
			Message: t.catalog.T("tasks.failed", map[string]any{"name": name}),
			Detail:  detail,
		})
	}

	if task.Status == model.StatusDone && task.Type.IsExport() {
		t.download(ctx, task)
	}
}

// download fetches and saves an export artifact. Failures are logged only.
func (t *Tracker) download(ctx context.Context, task model.Task) {
	artifact, err := t.source.DownloadArtifact(ctx, task.PickupKey)
	if err != nil {
		downloadsTotal.WithLabelValues("error").Inc()
		t.logger.Debug("artifact download failed", "task", task.ID, "error", err)
		return
	}

	filename := artifact.Filename
	if filename == "" {
		filename = task.ResultString("filename")
	}
	if filename == "" {
		filename = fallbackFilename
	}

	path, err := t.saver.Save(filename, artifact.Data)
	if err != nil {
		downloadsTotal.WithLabelValues("error").Inc()
		t.logger.Warn("saving artifact failed", "task", task.ID, "filename", filename, "error", err)
		return
	}
	downloadsTotal.WithLabelValues("ok").Inc()
	t.logger.Info("artifact saved", "task", task.ID, "path", path)
	t.notifier.Notify(notify.Notification{
		Level:   notify.Info,
		Message: t.catalog.T("general.downloadSaved", map[string]any{"filename": path}),
	})
}

// persist saves a snapshot of the tracked tasks. Must not be called with
// t.mu held.
func (t *Tracker) persist() {
	if t.store == nil {
		return
	}
	t.persistMu.Lock()
	defer t.persistMu.Unlock()

	t.mu.Lock()
	snapshot := slices.Clone(t.tasks)
	t.mu.Unlock()
	if snapshot == nil {
		snapshot = []model.Task{}
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := state.SaveJSON(ctx, t.store, state.KeyTasks, snapshot); err != nil {
		t.logger.Warn("persisting tasks failed", "error", err)
	}
}

func (t *Tracker) indexLocked(id string) int {
	return slices.IndexFunc(t.tasks, func(task model.Task) bool { return task.ID == id })
}

func (t *Tracker) anyActiveLocked() bool {
	return slices.ContainsFunc(t.tasks, func(task model.Task) bool { return task.Status.Active() })
}

// sortLocked orders tasks by start time, newest first; tasks without a start
// time come last.
func (t *Tracker) sortLocked() {
	slices.SortStableFunc(t.tasks, func(a, b model.Task) int {
		return b.Started().Compare(a.Started())
	})
}
