package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseControlCallValid(t *testing.T) {
	call, err := parseControlCall("override-build", `{"function":"stage","args":["foo","bar"]}`)
	require.NoError(t, err)
	assert.Equal(t, "stage", call.Function)
	assert.Equal(t, []string{"foo", "bar"}, call.Args)
}

func TestParseControlCallInvalidJSON(t *testing.T) {
	_, err := parseControlCall("override-build", `not json`)
	assert.Error(t, err)
}

func TestParseControlCallMissingFunction(t *testing.T) {
	_, err := parseControlCall("override-build", `{"args":[]}`)
	assert.Error(t, err)
}

func TestParseControlCallMissingArgs(t *testing.T) {
	_, err := parseControlCall("override-build", `{"function":"build"}`)
	assert.Error(t, err)
}
