package session_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/fsmsim/pkg/adapters/memory"
	"github.com/aretw0/fsmsim/pkg/domain"
	"github.com/aretw0/fsmsim/pkg/ports"
	"github.com/aretw0/fsmsim/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterMachine() domain.Machine {
	return domain.Machine{
		Name: "counter",
		States: []domain.StateDef{
			{Name: "Off", IsInitial: true},
			{Name: "On", EntryAction: "count = count + 1"},
		},
		Transitions: []domain.TransitionDef{
			{Source: "Off", Target: "On", Event: "toggle"},
			{Source: "On", Target: "Off", Event: "toggle"},
		},
	}
}

func counterConfig() domain.SessionConfig {
	return domain.SessionConfig{InitialVariables: map[string]any{"count": 0}}
}

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	*memory.Store
}

func (s *SlowStore) Save(ctx context.Context, sess *domain.Session) error {
	time.Sleep(2 * time.Millisecond) // Simulate IO
	return s.Store.Save(ctx, sess)
}

func (s *SlowStore) Load(ctx context.Context, id string) (*domain.Session, error) {
	time.Sleep(2 * time.Millisecond) // Simulate IO
	return s.Store.Load(ctx, id)
}

func TestManager_CreateAndStep(t *testing.T) {
	mgr := session.NewManager(memory.NewStore())
	ctx := context.Background()

	created, err := mgr.Create(ctx, counterMachine(), counterConfig())
	require.NoError(t, err)
	require.NotEmpty(t, created.Session.ID)
	assert.Equal(t, "Off", created.Session.Snapshot.CurrentState)
	assert.NotEmpty(t, created.Log)
	assert.Equal(t, 1, mgr.Live())

	res, err := mgr.Step(ctx, created.Session.ID, "toggle")
	require.NoError(t, err)
	require.NotNil(t, res.Diff)
	require.NotNil(t, res.Diff.CurrentState)
	assert.Equal(t, "On", *res.Diff.CurrentState)
	assert.Equal(t, 1, res.Diff.Variables["count"])
	assert.Len(t, res.Session.Journal, 1)

	stored, err := mgr.Get(ctx, created.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, "On", stored.Snapshot.CurrentState)
	assert.Equal(t, []domain.Command{{Op: domain.OpStep, Event: "toggle"}}, stored.Journal)
}

func TestManager_NoChangeHasNilDiff(t *testing.T) {
	mgr := session.NewManager(memory.NewStore())
	ctx := context.Background()
	created, err := mgr.Create(ctx, counterMachine(), counterConfig())
	require.NoError(t, err)

	res, err := mgr.Apply(ctx, created.Session.ID, domain.Command{Op: domain.OpRemoveStateBreakpoint, Name: "On"})
	require.NoError(t, err)
	assert.Nil(t, res.Diff)
	assert.Len(t, res.Session.Journal, 1)
}

func TestManager_ReplayAfterEvict(t *testing.T) {
	mgr := session.NewManager(memory.NewStore())
	ctx := context.Background()
	created, err := mgr.Create(ctx, counterMachine(), counterConfig())
	require.NoError(t, err)
	id := created.Session.ID

	for _, cmd := range []domain.Command{
		{Op: domain.OpStep, Event: "toggle"},
		{Op: domain.OpSetVariable, Name: "count", Value: 10},
		{Op: domain.OpStep, Event: "toggle"},
		{Op: domain.OpAddStateBreakpoint, Name: "On"},
	} {
		_, err := mgr.Apply(ctx, id, cmd)
		require.NoError(t, err)
	}

	mgr.Evict(id)
	assert.Equal(t, 0, mgr.Live())

	res, err := mgr.Step(ctx, id, "toggle")
	require.NoError(t, err)
	snap := res.Session.Snapshot
	// The breakpoint defers On's entry action until Continue.
	assert.Equal(t, 10, snap.Variables["count"])
	assert.Equal(t, 3, snap.Tick)
	assert.True(t, snap.Paused)
	assert.Equal(t, []string{"On"}, snap.StateBreakpoints)

	// Replay output is not reported as part of the command.
	for _, line := range res.Log {
		assert.NotContains(t, line, "FSM Initialized")
	}

	res, err = mgr.Continue(ctx, id)
	require.NoError(t, err)
	assert.True(t, res.Resumed)
	assert.Equal(t, 11, res.Session.Snapshot.Variables["count"])
}

func TestManager_StaleReplicaReplays(t *testing.T) {
	store := memory.NewStore()
	a := session.NewManager(store)
	b := session.NewManager(store)
	ctx := context.Background()

	created, err := a.Create(ctx, counterMachine(), counterConfig())
	require.NoError(t, err)
	id := created.Session.ID

	_, err = b.Step(ctx, id, "toggle")
	require.NoError(t, err)
	_, err = b.Step(ctx, id, "toggle")
	require.NoError(t, err)

	// a still holds the simulator at tick 0; it must notice the journal moved on.
	res, err := a.Step(ctx, id, "toggle")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Session.Snapshot.Tick)
	assert.Equal(t, 2, res.Session.Snapshot.Variables["count"])
	assert.Len(t, res.Session.Journal, 3)
}

func TestManager_HaltIsRecorded(t *testing.T) {
	mgr := session.NewManager(memory.NewStore())
	ctx := context.Background()
	m := counterMachine()
	m.States[1].EntryAction = "count = missing + 1"

	created, err := mgr.Create(ctx, m, domain.SessionConfig{HaltOnActionError: true})
	require.NoError(t, err)

	res, err := mgr.Step(ctx, created.Session.ID, "toggle")
	var fsmErr *domain.FSMError
	require.ErrorAs(t, err, &fsmErr)
	require.NotNil(t, res)
	require.NotNil(t, res.Diff.Halted)
	assert.True(t, *res.Diff.Halted)
	assert.Len(t, res.Session.Journal, 1)

	mgr.Evict(created.Session.ID)
	res, err = mgr.Step(ctx, created.Session.ID, "toggle")
	require.NoError(t, err)
	assert.True(t, res.Session.Snapshot.Halted)
	assert.Nil(t, res.Diff)
}

func TestManager_RejectedCommandsAreNotRecorded(t *testing.T) {
	mgr := session.NewManager(memory.NewStore())
	ctx := context.Background()
	created, err := mgr.Create(ctx, counterMachine(), counterConfig())
	require.NoError(t, err)
	id := created.Session.ID

	res, err := mgr.Apply(ctx, id, domain.Command{Op: domain.OpSetVariable, Name: "not valid"})
	assert.ErrorIs(t, err, domain.ErrInvalidVariable)
	assert.Nil(t, res)

	_, err = mgr.Apply(ctx, id, domain.Command{Op: "explode"})
	assert.ErrorIs(t, err, domain.ErrUnknownCommand)

	stored, err := mgr.Get(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, stored.Journal)
}

func TestManager_CreateFailure(t *testing.T) {
	store := memory.NewStore()
	mgr := session.NewManager(store)

	_, err := mgr.Create(context.Background(), domain.Machine{}, domain.SessionConfig{})
	assert.ErrorIs(t, err, domain.ErrNoStates)

	ids, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestManager_DeleteAndList(t *testing.T) {
	mgr := session.NewManager(memory.NewStore())
	ctx := context.Background()

	first, err := mgr.Create(ctx, counterMachine(), counterConfig())
	require.NoError(t, err)
	second, err := mgr.Create(ctx, counterMachine(), counterConfig())
	require.NoError(t, err)

	ids, err := mgr.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{first.Session.ID, second.Session.ID}, ids)

	require.NoError(t, mgr.Delete(ctx, first.Session.ID))
	assert.Equal(t, 1, mgr.Live())

	_, err = mgr.Step(ctx, first.Session.ID, "toggle")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestManager_HooksMutedDuringReplay(t *testing.T) {
	var ticks atomic.Int32
	mgr := session.NewManager(memory.NewStore(), session.WithHooks(domain.LifecycleHooks{
		OnTick: func(context.Context, *domain.TickEvent) { ticks.Add(1) },
	}))
	ctx := context.Background()
	created, err := mgr.Create(ctx, counterMachine(), counterConfig())
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := mgr.Step(ctx, created.Session.ID, "toggle")
		require.NoError(t, err)
	}
	mgr.Evict(created.Session.ID)
	_, err = mgr.Step(ctx, created.Session.ID, "toggle")
	require.NoError(t, err)

	assert.Equal(t, int32(3), ticks.Load())
}

func TestManager_Locking(t *testing.T) {
	mgr := session.NewManager(&SlowStore{memory.NewStore()})
	ctx := context.Background()
	created, err := mgr.Create(ctx, counterMachine(), counterConfig())
	require.NoError(t, err)

	var wg sync.WaitGroup
	concurrentWrites := 10
	for i := 0; i < concurrentWrites; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := mgr.Step(ctx, created.Session.ID, "toggle")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// Serialized read-modify-write: no step is lost.
	stored, err := mgr.Get(ctx, created.Session.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Journal, concurrentWrites)
	assert.Equal(t, concurrentWrites, stored.Snapshot.Tick)
	assert.Equal(t, concurrentWrites/2, stored.Snapshot.Variables["count"])
}

type fakeLocker struct {
	mu       sync.Mutex
	locked   []string
	ttl      time.Duration
	fail     error
	unlocked int
}

func (f *fakeLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	f.locked = append(f.locked, key)
	f.ttl = ttl
	return func(context.Context) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.unlocked++
		return errors.New("already expired")
	}, nil
}

func TestManager_DistributedLocker(t *testing.T) {
	locker := &fakeLocker{}
	mgr := session.NewManager(memory.NewStore(), session.WithLocker(locker), session.WithLockTTL(time.Second))
	ctx := context.Background()

	created, err := mgr.Create(ctx, counterMachine(), counterConfig())
	require.NoError(t, err)
	_, err = mgr.Step(ctx, created.Session.ID, "toggle")
	require.NoError(t, err)

	assert.Equal(t, []string{created.Session.ID, created.Session.ID}, locker.locked)
	assert.Equal(t, time.Second, locker.ttl)
	// A failed unlock is logged, not returned.
	assert.Equal(t, 2, locker.unlocked)

	locker.fail = domain.ErrLockNotAcquired
	_, err = mgr.Step(ctx, created.Session.ID, "toggle")
	assert.ErrorIs(t, err, domain.ErrLockNotAcquired)
}
