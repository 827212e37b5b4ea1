package registry

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRegistry = `{
  "version": "1.0.0",
  "activities": [
    {"id": "assistant.message.process", "taskType": "process-family-message",
     "inputSchema": {"type": "object", "required": ["message"]}},
    {"id": "assistant.voice.neutralize", "taskType": "neutralize-message",
     "inputSchema": {"type": "array"}},
    {"id": "", "taskType": "process-family-message"}
  ]
}`

func TestLoadRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleRegistry), 0o600))

	reg, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Len(t, reg.Activities, 3)

	a, ok := reg.Find("process-family-message")
	require.True(t, ok)
	assert.Equal(t, "assistant.message.process", a.ID)

	_, ok = reg.Find("unknown")
	assert.False(t, ok)

	problems := reg.Validate()
	sort.Strings(problems)
	assert.Len(t, problems, 3)
	assert.Contains(t, problems, "activity[2]: missing id")
	assert.Contains(t, problems, "activity assistant.voice.neutralize: inputSchema must have type object")
	assert.Contains(t, problems, "activity : duplicate taskType process-family-message")
}

func TestLoadRegistry_Errors(t *testing.T) {
	_, err := LoadRegistry(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))
	_, err = LoadRegistry(path)
	assert.Error(t, err)
}

func TestRepositoryRegistryIsValid(t *testing.T) {
	reg, err := LoadRegistry("../../configs/activity-registry.json")
	require.NoError(t, err)
	assert.Empty(t, reg.Validate())
	for _, taskType := range []string{"process-family-message", "classify-family-intent", "neutralize-message"} {
		_, ok := reg.Find(taskType)
		assert.True(t, ok, taskType)
	}
}

func TestValidate_ErrorCodesTimeoutAndRetries(t *testing.T) {
	reg := &ActivityRegistry{Activities: []Activity{
		{ID: "ok", TaskType: "a", ErrorCodes: []string{"INVALID_INPUT", "COMPLETION_TIMEOUT"}, Timeout: "30s", Retries: 3},
		{ID: "bad", TaskType: "b", ErrorCodes: []string{"invalid-input"}, Timeout: "soon", Retries: -1},
		{ID: "zero", TaskType: "c", Timeout: "0s"},
	}}

	problems := reg.Validate()
	sort.Strings(problems)
	assert.Equal(t, []string{
		`activity bad: error code "invalid-input" must be upper snake case`,
		`activity bad: invalid timeout "soon"`,
		"activity bad: retries must not be negative",
		`activity zero: invalid timeout "0s"`,
	}, problems)
}
