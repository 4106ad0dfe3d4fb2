package destination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "entrypass/pkg/domain-errors"
)

func TestDefaultRegistry(t *testing.T) {
	r := Default()
	cfg, err := r.Get("TH")
	require.NoError(t, err)

	assert.Equal(t, 72*time.Hour, cfg.SubmissionWindow)
	assert.Contains(t, cfg.RequiredFields(), "passportNo")
	assert.Contains(t, cfg.RequiredFields(), "accommodationAddress")

	rule, ok := cfg.Rule("passportNo")
	require.True(t, ok)
	assert.True(t, rule.Matches("AB123456"))
	assert.False(t, rule.Matches("ab-12"))
}

func TestRegistry_UnknownDestination(t *testing.T) {
	_, err := Default().Get("XX")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestParse_Rejects(t *testing.T) {
	t.Run("bad pattern", func(t *testing.T) {
		_, err := Parse([]byte(`destinations: [{id: AA, fields: [{name: x, pattern: "("}]}]`))
		assert.Error(t, err)
	})
	t.Run("duplicate field", func(t *testing.T) {
		_, err := Parse([]byte(`destinations: [{id: AA, fields: [{name: x}, {name: x}]}]`))
		assert.Error(t, err)
	})
	t.Run("missing id", func(t *testing.T) {
		_, err := Parse([]byte(`destinations: [{name: nowhere}]`))
		assert.Error(t, err)
	})
}

func TestSelectorsFor(t *testing.T) {
	cfg, err := Default().Get("TH")
	require.NoError(t, err)

	configured := cfg.SelectorsFor("flightNo")
	assert.Equal(t, "Flight / Vehicle No.", configured[3].Value)

	derived := cfg.SelectorsFor("accommodationProvince")
	require.Len(t, derived, 4)
	assert.Equal(t, SelectorExactAttribute, derived[0].Kind)
	assert.Equal(t, "accommodation province", derived[2].Value)
	assert.Equal(t, SelectorLabel, derived[3].Kind)
}
