package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/fsmsim/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contractMachine() domain.Machine {
	return domain.Machine{
		Name: "contract",
		States: []domain.StateDef{
			{Name: "Off", IsInitial: true},
			{Name: "On", IsSuperstate: true, SubFSM: &domain.SubFSM{
				States: []domain.StateDef{{Name: "Idle", IsInitial: true}},
			}},
		},
		Transitions: []domain.TransitionDef{{Source: "Off", Target: "On", Event: "toggle"}},
	}
}

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore implementation
// adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		session := domain.NewSession(sessionID, contractMachine(), domain.SessionConfig{
			HaltOnActionError: true,
			InitialVariables:  map[string]any{"count": 42},
		})
		session.Record(domain.Command{Op: domain.OpStep, Event: "toggle"}, domain.Snapshot{
			CurrentState:     "On (Idle)",
			CurrentLeafState: "Idle",
			Tick:             1,
			Variables:        map[string]any{"foo": "bar", "count": 42},
		})

		err := store.Save(ctx, session)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, sessionID, loaded.ID)
		assert.Equal(t, "On (Idle)", loaded.Snapshot.CurrentState)
		assert.Equal(t, "bar", loaded.Snapshot.Variables["foo"])
		// Integral numbers must survive serialization as integers.
		assert.Equal(t, 42, loaded.Snapshot.Variables["count"])
		assert.Equal(t, 42, loaded.Config.InitialVariables["count"])
		assert.True(t, loaded.Config.HaltOnActionError)
		require.Len(t, loaded.Journal, 1)
		assert.Equal(t, domain.OpStep, loaded.Journal[0].Op)
		assert.Equal(t, "toggle", loaded.Journal[0].Event)

		sub, ok := loaded.Machine.States[1].Sub()
		require.True(t, ok, "nested machine data must be preserved")
		assert.Equal(t, "Idle", sub.States[0].Name)
	})

	t.Run("Load Returns Copy", func(t *testing.T) {
		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		loaded.Snapshot.Variables["foo"] = "mutated"
		loaded.Journal = nil

		again, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, "bar", again.Snapshot.Variables["foo"])
		assert.Len(t, again.Journal, 1)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, domain.NewSession(sessionID, contractMachine(), domain.SessionConfig{}))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")

		assert.NoError(t, store.Delete(ctx, sessionID), "Deleting twice should not fail")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, domain.NewSession(id1, contractMachine(), domain.SessionConfig{}))
		_ = store.Save(ctx, domain.NewSession(id2, contractMachine(), domain.SessionConfig{}))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
