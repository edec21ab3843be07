package file_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/fsmsim/pkg/adapters/file"
	"github.com/aretw0/fsmsim/pkg/domain"
	contract "github.com/aretw0/fsmsim/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const toggleBSM = `{
  "states": [
    {"name": "Off", "is_initial": true, "entry_action": "is_on = False", "x": 10, "y": 20},
    {"name": "On", "entry_action": "is_on = True"}
  ],
  "transitions": [
    {"source": "Off", "target": "On", "event": "toggle"},
    {"source": "On", "target": "Off", "event": "toggle"}
  ],
  "comments": [{"text": "two states", "x": 5, "y": 6}]
}`

const processingYAML = `
name: processing
states:
  - name: Idle
    is_initial: true
  - name: Processing
    is_superstate: true
    properties:
      retries: 3
    sub_fsm_data:
      states:
        - name: SubIdle
          is_initial: true
        - name: SubDone
          is_final: true
      transitions:
        - source: SubIdle
          target: SubDone
          event: finish
transitions:
  - source: Idle
    target: Processing
    event: start
    condition: "ready == True"
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_BSM(t *testing.T) {
	path := writeFile(t, t.TempDir(), "toggle.bsm", toggleBSM)

	m, err := file.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "toggle", m.Name)
	require.Len(t, m.States, 2)
	assert.True(t, m.States[0].IsInitial)
	assert.Equal(t, "is_on = False", m.States[0].EntryAction)
	assert.Equal(t, "toggle", m.Transitions[1].Event)
	require.Len(t, m.Comments, 1)
	assert.Equal(t, 5.0, m.Comments[0].X)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "machine.yaml", processingYAML)

	m, err := file.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "processing", m.Name)
	assert.Equal(t, "ready == True", m.Transitions[0].Condition)

	st, ok := m.State("Processing")
	require.True(t, ok)
	assert.Equal(t, 3, st.Properties["retries"])
	sub, ok := st.Sub()
	require.True(t, ok)
	assert.Equal(t, "SubIdle", sub.States[0].Name)
	assert.True(t, sub.States[1].IsFinal)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := file.Load(writeFile(t, dir, "empty.bsm", "  \n"))
	assert.ErrorIs(t, err, domain.ErrEmptyFile)

	_, err = file.Load(writeFile(t, dir, "machine.txt", "{}"))
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)

	_, err = file.Load(writeFile(t, dir, "broken.json", "{"))
	assert.ErrorContains(t, err, "invalid JSON")

	_, err = file.Load(writeFile(t, dir, "wrong.json", `{"states": "nope"}`))
	assert.ErrorIs(t, err, domain.ErrInvalidDefinition)

	_, err = file.Load(filepath.Join(dir, "missing.bsm"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSave_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	original, err := file.Load(writeFile(t, dir, "machine.yaml", processingYAML))
	require.NoError(t, err)

	for _, name := range []string{"copy.json", "copy.yml"} {
		path := filepath.Join(dir, name)
		require.NoError(t, file.Save(path, original))

		loaded, err := file.Load(path)
		require.NoError(t, err)
		assert.Equal(t, original, loaded, name)
	}
}

func TestLoader_Contract(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "toggle.bsm", toggleBSM)
	writeFile(t, dir, "nested/processing.yaml", processingYAML)
	writeFile(t, dir, "README.md", "# not a machine")

	loader := file.NewLoader(dir)
	contract.MachineLoaderContractTest(t, loader, map[string]int{
		"toggle.bsm":              2,
		"nested/processing.yaml": 2,
	})

	refs, err := loader.ListMachines()
	require.NoError(t, err)
	assert.Equal(t, []string{"nested/processing.yaml", "toggle.bsm"}, refs)
}
