package clinical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	t.Run("extracts weight in kilograms", func(t *testing.T) {
		fields := Extract("chest tube size for an 80kg patient")
		require.NotNil(t, fields)
		assert.Equal(t, "80kg", fields["weight"])
	})

	t.Run("converts pounds to kilograms", func(t *testing.T) {
		fields := Extract("dosing for a 220 lb patient")
		require.NotNil(t, fields)
		assert.Equal(t, "99.79kg", fields["weight"])
	})

	t.Run("computes weight-based dose", func(t *testing.T) {
		fields := Extract("ketamine dose for a 80kg patient")
		require.NotNil(t, fields)
		assert.Equal(t, "ketamine", fields["drug"])
		assert.Equal(t, "40mg IV", fields["ketamine dose"])
	})

	t.Run("caps dose at the ceiling", func(t *testing.T) {
		fields := Extract("ketamine for a 150kg patient")
		require.NotNil(t, fields)
		assert.Equal(t, "50mg IV (max dose)", fields["ketamine dose"])
	})

	t.Run("drug without weight yields no dose", func(t *testing.T) {
		fields := Extract("when do I give ketamine")
		require.NotNil(t, fields)
		assert.Equal(t, "ketamine", fields["drug"])
		assert.NotContains(t, fields, "ketamine dose")
	})

	t.Run("multiple drugs resolve the same fields every time", func(t *testing.T) {
		for i := 0; i < 20; i++ {
			fields := Extract("ketamine or midazolam for an 80kg patient")
			require.NotNil(t, fields)
			assert.Equal(t, "midazolam", fields["drug"])
			assert.Equal(t, "40mg IV", fields["ketamine dose"])
			assert.Equal(t, "8mg IV", fields["midazolam dose"])
		}
	})

	t.Run("query without parameters returns nil", func(t *testing.T) {
		assert.Nil(t, Extract("how do I pack a junctional wound"))
	})

	t.Run("does not mistake minutes for weight", func(t *testing.T) {
		fields := Extract("repeat epinephrine every 3-5 minutes")
		assert.Nil(t, fields)
	})
}
