package securitas

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	op, ok := Lookup("xSArmPanel")
	require.True(t, ok)
	require.Equal(t, "xSArmPanel", op.Name)
	require.Contains(t, op.Query, "mutation xSArmPanel")

	_, ok = Lookup("NotAnOperation")
	require.False(t, ok)
}

func TestRegisterDuplicatePanics(t *testing.T) {
	require.Panics(t, func() {
		Register(Operation{Name: "xSArmPanel", Query: "query {}"})
	})
}

func TestRegisterAdditive(t *testing.T) {
	op := Register(Operation{
		Name:  "xSNewPanelType",
		Query: "query xSNewPanelType { xSNewPanelType { res } }",
	})
	t.Cleanup(func() { delete(registry, op.Name) })

	got, ok := Lookup("xSNewPanelType")
	require.True(t, ok)
	require.Equal(t, op, got)
}
