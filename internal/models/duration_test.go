// internal/models/duration_test.go
package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDurationYAMLString(t *testing.T) {
	var d Duration
	require.NoError(t, yaml.Unmarshal([]byte(`"1m30s"`), &d))
	assert.Equal(t, 90*time.Second, d.Std())
}

func TestDurationYAMLBareSeconds(t *testing.T) {
	var d Duration
	require.NoError(t, yaml.Unmarshal([]byte(`30`), &d))
	assert.Equal(t, 30*time.Second, d.Std())
}

func TestDurationYAMLInvalid(t *testing.T) {
	var d Duration
	assert.Error(t, yaml.Unmarshal([]byte(`"soon"`), &d))
}

func TestDurationYAMLRoundTrip(t *testing.T) {
	in := Duration(250 * time.Millisecond)
	data, err := yaml.Marshal(in)
	require.NoError(t, err)

	var out Duration
	require.NoError(t, yaml.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestDurationJSON(t *testing.T) {
	data, err := json.Marshal(Duration(5 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, `"5s"`, string(data))

	var d Duration
	require.NoError(t, json.Unmarshal(data, &d))
	assert.Equal(t, 5*time.Second, d.Std())
}
