package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alejandrodnm/ftmorisk/internal/governor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGovernorStateLabel(t *testing.T) {
	cases := []struct {
		name     string
		decision governor.Decision
		want     string
	}{
		{"allowed", governor.Decision{Allow: true}, "healthy"},
		{"flatten", governor.Decision{Allow: false, Flatten: true}, "flatten"},
		{"reduce only", governor.Decision{Allow: false, ReduceOnly: true}, "reduce"},
		{"buffered", governor.Decision{Allow: false}, "buffered_daily"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, governorStateLabel(tc.decision))
		})
	}
}

func TestSelectBroker_FallsBackToPaperForUnknownName(t *testing.T) {
	assert.NotNil(t, selectBroker("some-unconfigured-live-broker"))
	assert.NotNil(t, selectBroker(""))
	assert.NotNil(t, selectBroker("paper"))
}

func TestConfigFileHash_IsStableAndDetectsChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: test-bot\n"), 0o644))

	first, err := configFileHash(path)
	require.NoError(t, err)
	second, err := configFileHash(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, first, 64)

	require.NoError(t, os.WriteFile(path, []byte("name: other-bot\n"), 0o644))
	changed, err := configFileHash(path)
	require.NoError(t, err)
	assert.NotEqual(t, first, changed)
}
