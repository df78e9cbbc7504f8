package tasklist

import (
	"iter"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"taskpad/storage"
)

// Op names the kind of change a Controller reports to subscribers
type Op string

const (
	OpLoad   Op = "load"
	OpAdd    Op = "add"
	OpToggle Op = "toggle"
	OpDelete Op = "delete"
	OpFilter Op = "filter"
	OpReset  Op = "reset"
)

// Change is delivered to subscribers after each state change.
// TaskID is zero for changes that don't target a single task.
type Change struct {
	Op     Op
	TaskID int64
}

// Snapshot is a point-in-time copy of the state a view renders
type Snapshot struct {
	Filter      Filter  `json:"filter"`
	Tasks       []Task  `json:"tasks"`
	DisabledIDs []int64 `json:"disabledIds"`
}

// Options configures a Controller
type Options struct {
	// SupportDisablePersistence turns on disabled markers: toggling a task
	// suppresses its "mark complete" action, and the marker set is
	// persisted under storage.DisabledButtonsKey.
	SupportDisablePersistence bool

	// IDs generates task ids. Defaults to NewClockIDs().
	IDs IDSource

	Logger zerolog.Logger
}

type subscriber struct {
	id int
	fn func(Change)
}

// Controller owns the canonical task collection, the active filter and the
// disabled-marker set. No operation returns an error: invalid input is a
// no-op reported through the boolean result.
type Controller struct {
	store    storage.Store
	markers  bool
	ids      IDSource
	log      zerolog.Logger
	initOnce sync.Once

	mu sync.RWMutex
	// tasks is replaced, never mutated in place, so iterators may keep
	// reading an old slice without holding mu.
	tasks    []Task
	filter   Filter
	disabled map[int64]struct{}

	subMu   sync.Mutex
	subs    []subscriber
	nextSub int
}

// New creates a Controller persisting to store. Call Initialize once
// before use to load previously saved state.
func New(store storage.Store, opts Options) *Controller {
	ids := opts.IDs
	if ids == nil {
		ids = NewClockIDs()
	}

	return &Controller{
		store:    store,
		markers:  opts.SupportDisablePersistence,
		ids:      ids,
		log:      opts.Logger.With().Str("component", "tasklist").Logger(),
		tasks:    []Task{},
		filter:   FilterAll,
		disabled: make(map[int64]struct{}),
	}
}

// Initialize loads saved tasks and markers. Only the first call has any effect.
func (c *Controller) Initialize() {
	c.initOnce.Do(func() {
		c.mu.Lock()

		stored := storage.LoadInto[Task](c.store, storage.TasksKey, c.log)
		if len(stored) > 0 {
			c.tasks = dedupe(stored, c.log)
		}

		if c.markers {
			ids := storage.LoadInto[int64](c.store, storage.DisabledButtonsKey, c.log)
			if len(ids) > 0 {
				c.disabled = make(map[int64]struct{}, len(ids))
				for _, id := range ids {
					c.disabled[id] = struct{}{}
				}
			}
		}

		c.log.Info().
			Int("tasks", len(c.tasks)).
			Int("disabled", len(c.disabled)).
			Msg("task list initialized")
		c.mu.Unlock()

		c.notify(Change{Op: OpLoad})
	})
}

// dedupe drops records whose id was already seen, keeping the first
func dedupe(tasks []Task, log zerolog.Logger) []Task {
	seen := make(map[int64]bool, len(tasks))
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if seen[t.ID] {
			log.Warn().Int64("id", t.ID).Msg("dropping task with duplicate id")
			continue
		}
		seen[t.ID] = true
		out = append(out, t)
	}
	return out
}

// Persist writes the current state to the store
func (c *Controller) Persist() {
	c.mu.RLock()
	defer c.mu.RUnlock()
	c.persistLocked()
}

func (c *Controller) persistLocked() {
	c.store.Save(storage.TasksKey, c.tasks)
	if c.markers {
		c.store.Save(storage.DisabledButtonsKey, c.disabledIDsLocked())
	}
}

// AddTask appends a new active task. It does nothing when title is blank.
func (c *Controller) AddTask(title, description string) (Task, bool) {
	if strings.TrimSpace(title) == "" {
		return Task{}, false
	}

	c.mu.Lock()
	id := c.ids.Next()
	for c.indexLocked(id) >= 0 {
		id = c.ids.Next()
	}

	task := Task{
		ID:          id,
		Title:       title,
		Description: description,
		Completed:   false,
	}
	c.tasks = append(slices.Clip(c.tasks), task)
	c.persistLocked()
	c.mu.Unlock()

	c.log.Debug().Int64("id", id).Str("title", title).Msg("task added")
	c.notify(Change{Op: OpAdd, TaskID: id})
	return task, true
}

// ToggleCompletion flips the completed flag of the task with id. With
// disabled markers on, it also marks the task's "mark complete" action as
// used.
func (c *Controller) ToggleCompletion(id int64) bool {
	c.mu.Lock()
	i := c.indexLocked(id)
	if i < 0 {
		c.mu.Unlock()
		return false
	}

	tasks := slices.Clone(c.tasks)
	tasks[i].Completed = !tasks[i].Completed
	c.tasks = tasks
	if c.markers {
		c.disabled[id] = struct{}{}
	}
	completed := tasks[i].Completed
	c.persistLocked()
	c.mu.Unlock()

	c.log.Debug().Int64("id", id).Bool("completed", completed).Msg("task toggled")
	c.notify(Change{Op: OpToggle, TaskID: id})
	return true
}

// MarkComplete is the "mark complete" action. It is refused once the
// task's disabled marker is set; otherwise it toggles the task.
func (c *Controller) MarkComplete(id int64) bool {
	if !c.CanMarkComplete(id) {
		return false
	}
	return c.ToggleCompletion(id)
}

// CanMarkComplete reports whether the "mark complete" action is available
// for the task with id
func (c *Controller) CanMarkComplete(id int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.indexLocked(id) < 0 {
		return false
	}
	_, disabled := c.disabled[id]
	return !disabled
}

// DeleteTask removes the task with id and its disabled marker
func (c *Controller) DeleteTask(id int64) bool {
	c.mu.Lock()
	i := c.indexLocked(id)
	if i < 0 {
		c.mu.Unlock()
		return false
	}

	c.tasks = slices.Delete(slices.Clone(c.tasks), i, i+1)
	delete(c.disabled, id)
	c.persistLocked()
	c.mu.Unlock()

	c.log.Debug().Int64("id", id).Msg("task deleted")
	c.notify(Change{Op: OpDelete, TaskID: id})
	return true
}

// SetFilter sets the active filter. Unrecognized values select FilterAll.
// The returned bool reports whether value was recognized.
func (c *Controller) SetFilter(value string) bool {
	f, ok := ParseFilter(value)

	c.mu.Lock()
	changed := c.filter != f
	c.filter = f
	c.mu.Unlock()

	if changed {
		c.notify(Change{Op: OpFilter})
	}
	return ok
}

// Reset removes every task and marker and clears both stored collections
func (c *Controller) Reset() {
	c.mu.Lock()
	c.tasks = []Task{}
	c.disabled = make(map[int64]struct{})
	c.store.Clear(storage.TasksKey)
	c.store.Clear(storage.DisabledButtonsKey)
	c.mu.Unlock()

	c.log.Info().Msg("task list reset")
	c.notify(Change{Op: OpReset})
}

// VisibleTasks yields the tasks that pass the current filter, in insertion
// order. Each iteration reads the state as of its start.
func (c *Controller) VisibleTasks() iter.Seq[Task] {
	return func(yield func(Task) bool) {
		c.mu.RLock()
		tasks, filter := c.tasks, c.filter
		c.mu.RUnlock()

		for _, t := range tasks {
			if !filter.Match(t) {
				continue
			}
			if !yield(t) {
				return
			}
		}
	}
}

// Tasks returns a copy of the full collection
func (c *Controller) Tasks() []Task {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.tasks)
}

// Task returns the task with id
func (c *Controller) Task(id int64) (Task, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i := c.indexLocked(id)
	if i < 0 {
		return Task{}, false
	}
	return c.tasks[i], true
}

// Filter returns the active filter
func (c *Controller) Filter() Filter {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filter
}

// MarkersEnabled reports whether disabled markers are in use
func (c *Controller) MarkersEnabled() bool {
	return c.markers
}

// IsDisabled reports whether id carries a disabled marker
func (c *Controller) IsDisabled(id int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.disabled[id]
	return ok
}

// DisabledIDs returns the marker set in ascending order, dangling ids included
func (c *Controller) DisabledIDs() []int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.disabledIDsLocked()
}

func (c *Controller) disabledIDsLocked() []int64 {
	ids := make([]int64, 0, len(c.disabled))
	for id := range c.disabled {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Snapshot returns the filter, the visible tasks and the marker set
func (c *Controller) Snapshot() Snapshot {
	visible := slices.Collect(c.VisibleTasks())
	if visible == nil {
		visible = []Task{}
	}
	return Snapshot{
		Filter:      c.Filter(),
		Tasks:       visible,
		DisabledIDs: c.DisabledIDs(),
	}
}

func (c *Controller) indexLocked(id int64) int {
	return slices.IndexFunc(c.tasks, func(t Task) bool { return t.ID == id })
}

// Subscribe registers fn to be called after every change. fn runs on the
// goroutine that made the change, after the controller's lock is released,
// so it may read from the controller. The returned func unsubscribes.
func (c *Controller) Subscribe(fn func(Change)) (unsubscribe func()) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	c.nextSub++
	id := c.nextSub
	c.subs = append(c.subs, subscriber{id: id, fn: fn})

	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		c.subs = slices.DeleteFunc(c.subs, func(s subscriber) bool { return s.id == id })
	}
}

func (c *Controller) notify(ch Change) {
	c.subMu.Lock()
	subs := slices.Clone(c.subs)
	c.subMu.Unlock()

	for _, s := range subs {
		s.fn(ch)
	}
}
