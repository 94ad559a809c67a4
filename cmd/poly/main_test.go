package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCleanShutdown(t *testing.T) {
	require.True(t, cleanShutdown(context.Canceled))
	// Run modes wrap the cancellation before it reaches main.
	require.True(t, cleanShutdown(fmt.Errorf("ingestion loop: %w", context.Canceled)))

	require.False(t, cleanShutdown(errors.New("db down")))
	require.False(t, cleanShutdown(context.DeadlineExceeded))
}
