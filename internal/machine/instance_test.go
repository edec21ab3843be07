package machine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstance_CandidatesInDeclarationOrder(t *testing.T) {
	m := toggle()
	m.Transitions = append(m.Transitions,
		m.Transitions[0],
	)
	m.Transitions[2].Condition = "x > 1"
	d, err := Build(m, true)
	require.NoError(t, err)

	inst := d.Instantiate()
	got := inst.Candidates("toggle")
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Index)
	assert.Equal(t, 2, got[1].Index)
	assert.Empty(t, inst.Candidates("nope"))
}

func TestInstance_MoveAndEvents(t *testing.T) {
	d, err := Build(toggle(), true)
	require.NoError(t, err)

	a := d.Instantiate()
	b := d.Instantiate()
	on, _ := d.State("On")
	a.MoveTo(on.ID)

	assert.Equal(t, "On", a.Current().Name)
	assert.Equal(t, "Off", b.Current().Name)
	assert.Equal(t, []string{"toggle"}, a.Events())
	assert.Len(t, d.Outgoing(on.ID), 1)
}

func TestInstance_Handle(t *testing.T) {
	d, err := Build(toggle(), true)
	require.NoError(t, err)

	h := d.Instantiate().Handle()
	assert.Equal(t, "toggle", h["name"])
	cur := h["current_state"].(map[string]any)
	assert.Equal(t, "Off", cur["id"])
	assert.Equal(t, true, cur["is_initial"])
	assert.Equal(t, false, cur["is_final"])
}
