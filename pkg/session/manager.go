package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/fsmsim"
	"github.com/aretw0/fsmsim/internal/logging"
	"github.com/aretw0/fsmsim/pkg/domain"
	"github.com/aretw0/fsmsim/pkg/ports"
	"github.com/google/uuid"
)

// DefaultLockTTL bounds how long a distributed lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// liveSim is a simulator kept in memory together with the journal position it reflects.
type liveSim struct {
	sim       *fsmsim.Simulator
	applied   int
	updatedAt time.Time
	muted     *atomic.Bool
}

// Result is the outcome of a command applied to a session.
type Result struct {
	Session *domain.Session
	// Log holds the action-log lines produced by the command.
	Log []string
	// Diff is nil when the command left the snapshot unchanged.
	Diff *domain.SnapshotDiff
	// Resumed is set by OpContinue when a paused simulation moved on.
	Resumed bool
}

// Manager orchestrates session access, ensuring safe concurrent operations.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	store ports.SessionStore

	mu    sync.Mutex            // Global lock for the lock map
	locks map[string]*lockEntry // Map of active locks

	liveMu sync.Mutex
	live   map[string]*liveSim

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	hooks   domain.LifecycleHooks
	logger  *slog.Logger // Logger for internal events (like deferred errors)
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the expiry of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager and the simulators it hosts.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithHooks registers lifecycle hooks on every hosted simulator.
// Hooks do not fire while a session is being rebuilt from its journal.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(m *Manager) {
		m.hooks = hooks
	}
}

// NewManager creates a new Session Manager with the given persistence store.
func NewManager(store ports.SessionStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		live:    make(map[string]*liveSim),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(), // Default to no-op
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(sessionID) after unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return // Should not happen if paired correctly
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// WithLock executes a function while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// Create starts a simulation of m under a fresh session ID and persists it.
func (m *Manager) Create(ctx context.Context, machine domain.Machine, cfg domain.SessionConfig) (*Result, error) {
	id := uuid.NewString()
	var res *Result
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		sess := domain.NewSession(id, machine, cfg)
		ls, err := m.build(sess)
		if err != nil {
			return err
		}
		sess.Snapshot = ls.sim.Snapshot()
		if err := m.store.Save(ctx, sess); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		ls.updatedAt = sess.UpdatedAt
		m.setLive(id, ls)

		m.logger.Info("session created", "session_id", id, "fsm", machine.Name)
		res = &Result{Session: sess.Clone(), Log: ls.sim.LastExecutedActionsLog()}
		return nil
	})
	return res, err
}

// Get returns the persisted session.
func (m *Manager) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	return m.store.Load(ctx, sessionID)
}

// Apply runs cmd against the session's simulator, appends it to the journal
// and saves the session.
//
// Engine failures (a *domain.FSMError, e.g. an action error with halting
// enabled) change the simulation and are therefore recorded; the error is
// returned together with the result. Rejected input such as an invalid
// variable name leaves the session untouched and yields no result.
func (m *Manager) Apply(ctx context.Context, sessionID string, cmd domain.Command) (*Result, error) {
	var (
		res    *Result
		runErr error
	)
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		sess, ls, err := m.restore(ctx, sessionID)
		if err != nil {
			return err
		}

		before := ls.sim.Snapshot()
		resumed, err := ls.sim.Apply(ctx, cmd)
		var fsmErr *domain.FSMError
		if err != nil && !errors.As(err, &fsmErr) {
			ls.sim.LastExecutedActionsLog()
			return err
		}
		runErr = err

		after := ls.sim.Snapshot()
		sess.Record(cmd, after)
		if err := m.store.Save(ctx, sess); err != nil {
			// The live simulator is ahead of the store now.
			m.evict(sessionID)
			return fmt.Errorf("failed to save session: %w", err)
		}
		ls.applied = len(sess.Journal)
		ls.updatedAt = sess.UpdatedAt

		res = &Result{
			Session: sess.Clone(),
			Log:     ls.sim.LastExecutedActionsLog(),
			Diff:    domain.Diff(&before, &after),
			Resumed: resumed,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, runErr
}

// Step delivers event to the session. An empty event advances one tick.
func (m *Manager) Step(ctx context.Context, sessionID, event string) (*Result, error) {
	return m.Apply(ctx, sessionID, domain.Command{Op: domain.OpStep, Event: event})
}

// Reset returns the session's simulation to its initial state.
func (m *Manager) Reset(ctx context.Context, sessionID string) (*Result, error) {
	return m.Apply(ctx, sessionID, domain.Command{Op: domain.OpReset})
}

// Continue resumes a session paused at a breakpoint.
func (m *Manager) Continue(ctx context.Context, sessionID string) (*Result, error) {
	return m.Apply(ctx, sessionID, domain.Command{Op: domain.OpContinue})
}

// Delete removes the session from the store and drops its simulator.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		m.evict(sessionID)
		return m.store.Delete(ctx, sessionID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Evict drops the in-memory simulator of a session. The next command rebuilds
// it from the journal.
func (m *Manager) Evict(sessionID string) {
	m.evict(sessionID)
}

// Live reports how many simulators are held in memory.
func (m *Manager) Live() int {
	m.liveMu.Lock()
	defer m.liveMu.Unlock()
	return len(m.live)
}

// Store returns the underlying session store.
func (m *Manager) Store() ports.SessionStore {
	return m.store
}

func (m *Manager) setLive(id string, ls *liveSim) {
	m.liveMu.Lock()
	defer m.liveMu.Unlock()
	m.live[id] = ls
}

func (m *Manager) getLive(id string) *liveSim {
	m.liveMu.Lock()
	defer m.liveMu.Unlock()
	return m.live[id]
}

func (m *Manager) evict(id string) {
	m.liveMu.Lock()
	defer m.liveMu.Unlock()
	delete(m.live, id)
}

// restore loads the session and returns a simulator matching its journal,
// replaying the journal when the cached one is missing or stale.
func (m *Manager) restore(ctx context.Context, id string) (*domain.Session, *liveSim, error) {
	sess, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if ls := m.getLive(id); ls != nil && ls.applied == len(sess.Journal) && ls.updatedAt.Equal(sess.UpdatedAt) {
		return sess, ls, nil
	}

	ls, err := m.build(sess)
	if err != nil {
		return nil, nil, err
	}
	ls.muted.Store(true)
	defer ls.muted.Store(false)
	for i, cmd := range sess.Journal {
		if _, err := ls.sim.Apply(ctx, cmd); err != nil {
			var fsmErr *domain.FSMError
			if !errors.As(err, &fsmErr) {
				return nil, nil, fmt.Errorf("failed to replay command %d (%s): %w", i, cmd.Op, err)
			}
		}
	}
	ls.sim.LastExecutedActionsLog()
	ls.applied = len(sess.Journal)
	ls.updatedAt = sess.UpdatedAt
	m.setLive(id, ls)

	m.logger.Debug("session restored from journal", "session_id", id, "commands", len(sess.Journal))
	return sess, ls, nil
}

// build constructs the simulator described by a session record.
func (m *Manager) build(sess *domain.Session) (*liveSim, error) {
	muted := &atomic.Bool{}
	sim, err := fsmsim.New(sess.Machine,
		fsmsim.WithLogger(m.logger.With("session_id", sess.ID)),
		fsmsim.WithLifecycleHooks(gate(m.hooks, muted)),
		fsmsim.WithHaltOnActionError(sess.Config.HaltOnActionError),
		fsmsim.WithStopTick(sess.Config.StopTick),
		fsmsim.WithInitialVariables(sess.Config.InitialVariables),
	)
	if err != nil {
		return nil, err
	}
	return &liveSim{sim: sim, muted: muted}, nil
}

// gate suppresses hooks while muted is set.
func gate(h domain.LifecycleHooks, muted *atomic.Bool) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStateEnter: gated(h.OnStateEnter, muted),
		OnStateExit:  gated(h.OnStateExit, muted),
		OnTransition: gated(h.OnTransition, muted),
		OnBreakpoint: gated(h.OnBreakpoint, muted),
		OnHalt:       gated(h.OnHalt, muted),
		OnTick:       gated(h.OnTick, muted),
	}
}

func gated[E any](fn func(context.Context, E), muted *atomic.Bool) func(context.Context, E) {
	if fn == nil {
		return nil
	}
	return func(ctx context.Context, ev E) {
		if !muted.Load() {
			fn(ctx, ev)
		}
	}
}
