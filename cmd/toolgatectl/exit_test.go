package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExitWith_ExtractableThroughWrapping(t *testing.T) {
	err := fmt.Errorf("loading config: %w", exitWith(2, "config: catalogPath is required"))

	var exitErr exitError
	require.True(t, errors.As(err, &exitErr))
	require.Equal(t, 2, exitErr.code)
	require.Equal(t, "config: catalogPath is required", exitErr.message)
	require.EqualError(t, exitWith(3, "not found"), "not found")
}
