package command

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abc...(truncated)", Truncate("abcdef", 3))
}

func TestRequire_Missing(t *testing.T) {
	sentinel := errors.New("tool unavailable")

	_, err := Require("definitely-not-a-real-binary-xyz", sentinel)

	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.True(t, strings.Contains(err.Error(), "definitely-not-a-real-binary-xyz"))
}

func TestExecRunner_MissingBinary(t *testing.T) {
	_, _, err := ExecRunner{}.Run(context.Background(), nil, "definitely-not-a-real-binary-xyz")

	require.Error(t, err)
}
