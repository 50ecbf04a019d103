package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logicforge/internal/domain"
)

func TestBuiltinTemplatesAreWellFormed(t *testing.T) {
	c, err := Builtin()
	require.NoError(t, err)
	all := c.List("")
	require.NotEmpty(t, all)
	for _, tpl := range all {
		assert.True(t, domain.ValidTheme(tpl.Theme), tpl.ID)
		assert.NotEmpty(t, tpl.ProblemStatement.ChallengeText, tpl.ID)
		assert.NotEmpty(t, tpl.Stakeholders, tpl.ID)
		assert.NotEmpty(t, tpl.Outcomes, tpl.ID)
		for _, o := range tpl.Outcomes {
			for _, ind := range o.Indicators {
				assert.Contains(t, []string{"outcome", "output"}, ind.Type, tpl.ID)
			}
		}
	}
}

func TestListFiltersByTheme(t *testing.T) {
	c, err := Builtin()
	require.NoError(t, err)
	fln := c.List("fln")
	require.Len(t, fln, 1)
	assert.Equal(t, "fln-remedial-reading", fln[0].ID)

	_, ok := c.Get("missing")
	assert.False(t, ok)
}
