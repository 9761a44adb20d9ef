package reasoning

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseThresholds(t *testing.T) {
	doc := `
defaults:
  min_confidence: 0.6
customers:
  cust-strict:
    max_warnings: 2
    min_robustness: 0.5
`
	o, err := ParseThresholds(strings.NewReader(doc))
	require.NoError(t, err)

	base := o.ThresholdsFor("anyone")
	assert.Equal(t, Thresholds{MinDataQuality: 0.5, MinConfidence: 0.6, MaxWarnings: 5, MinRobustness: 0.3}, base)

	strict := o.ThresholdsFor("cust-strict")
	assert.Equal(t, Thresholds{MinDataQuality: 0.5, MinConfidence: 0.6, MaxWarnings: 2, MinRobustness: 0.5}, strict)
}

func TestParseThresholds_Empty(t *testing.T) {
	o, err := ParseThresholds(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultThresholds(), o.ThresholdsFor("x"))
}

func TestParseThresholds_Rejects(t *testing.T) {
	for name, doc := range map[string]string{
		"out of range":  "defaults:\n  min_confidence: 1.5\n",
		"negative":      "customers:\n  c1:\n    max_warnings: -1\n",
		"unknown field": "defaults:\n  min_confidance: 0.5\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseThresholds(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadThresholds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.yaml")
	require.NoError(t, os.WriteFile(path, []byte("defaults:\n  max_warnings: 7\n"), 0o600))

	o, err := LoadThresholds(path)
	require.NoError(t, err)
	assert.Equal(t, 7, o.ThresholdsFor("x").MaxWarnings)

	_, err = LoadThresholds(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestStaticThresholds(t *testing.T) {
	p := StaticThresholds(DefaultThresholds())
	assert.Equal(t, DefaultThresholds(), p.ThresholdsFor("any"))
}
