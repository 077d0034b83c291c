// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package redis_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisstore "github.com/taibuivan/storefront/internal/platform/redis"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

/*
TestNewClient verifies URL parsing, the startup ping and readiness after an outage.
*/
func TestNewClient(t *testing.T) {
	server := miniredis.RunT(t)

	client, err := redisstore.NewClient(context.Background(), "redis://"+server.Addr()+"/0", discard)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	assert.NoError(t, redisstore.Ping(context.Background(), client))

	server.Close()
	assert.Error(t, redisstore.Ping(context.Background(), client))
}

/*
TestNewClient_Rejects verifies that bad URLs and unreachable servers fail at startup.
*/
func TestNewClient_Rejects(t *testing.T) {
	_, err := redisstore.NewClient(context.Background(), "not-a-url", discard)
	assert.ErrorContains(t, err, "invalid URL")

	server := miniredis.RunT(t)
	addr := server.Addr()
	server.Close()

	_, err = redisstore.NewClient(context.Background(), "redis://"+addr, discard)
	assert.ErrorContains(t, err, "ping failed")
}
