package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePC(t *testing.T) {
	t.Parallel()

	cases := map[string]PC{
		"0x1000": 0x1000,
		"0X1f":   0x1f,
		"42":     42,
		" 0x2 ":  2,
		"0":      0,
	}
	for token, want := range cases {
		got, err := ParsePC(token)
		require.NoError(t, err, token)
		assert.Equal(t, want, got, token)
		assert.Equal(t, want.String(), got.String(), token)
	}

	for _, bad := range []string{"", "main+4", "-1", "0x", "0x100000000"} {
		_, err := ParsePC(bad)
		assert.Error(t, err, bad)
	}
}

func TestPCString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0x0", PC(0).String())
	assert.Equal(t, "0x1000", PC(4096).String())
}

func TestReasonStatus(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "step", ReasonStep.String())
	assert.Equal(t, "running", ReasonReached.String())
	assert.Equal(t, "paused", ReasonPaused.String())
	assert.Equal(t, "finished", ReasonFinished.String())
	assert.Equal(t, "trapped", ReasonTrapped.String())
	assert.Equal(t, "out-of-resource", ReasonOutOfResource.String())
	assert.Equal(t, Until(3), StopCondition{Kind: StopAt, Target: 3})
}
