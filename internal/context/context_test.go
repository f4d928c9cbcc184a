package context

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUniformVerbositySetsAllStages(t *testing.T) {
	v := Uniform(2)
	require.Equal(t, 2, v.Level(StageParse))
	require.Equal(t, 2, v.Level(StageLinearize))
	require.Equal(t, 2, v.Level(StageRegalloc))
	require.Equal(t, 2, v.Level(StageCodegen))
}

func TestTempCounterIsMonotonicPerInstance(t *testing.T) {
	c := &TempCounter{}
	require.Equal(t, ".t0", c.Next())
	require.Equal(t, ".t1", c.Next())
	require.Equal(t, ".t2", c.Next())

	other := &TempCounter{}
	require.Equal(t, ".t0", other.Next(), "counters are per-function-local, not global")
}
