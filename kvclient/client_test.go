package kvclient

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientDefaults(t *testing.T) {
	c, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	assert.Equal(t, "nats://localhost:4222", c.URL())
	assert.Equal(t, StatusDisconnected, c.Status())
	assert.False(t, c.IsHealthy())
	assert.Equal(t, -1, c.maxReconnects)
	assert.Equal(t, 5*time.Second, c.timeout)
}

func TestNewClientRequiresURL(t *testing.T) {
	_, err := NewClient("")
	assert.Error(t, err)
}

func TestClientOptions(t *testing.T) {
	c, err := NewClient("nats://localhost:4222",
		WithMaxReconnects(3),
		WithReconnectWait(time.Second),
		WithPingInterval(10*time.Second),
		WithTimeout(2*time.Second),
		WithUserInfo("svc", "secret"),
		WithClientName("crm-test"),
	)
	require.NoError(t, err)

	assert.Equal(t, 3, c.maxReconnects)
	assert.Equal(t, time.Second, c.reconnectWait)
	assert.Equal(t, 10*time.Second, c.pingInterval)
	assert.Equal(t, 2*time.Second, c.timeout)
	assert.Equal(t, "svc", c.username)
	assert.Equal(t, "crm-test", c.clientName)
}

func TestConnectionStatusString(t *testing.T) {
	tests := []struct {
		status ConnectionStatus
		want   string
	}{
		{StatusDisconnected, "disconnected"},
		{StatusConnecting, "connecting"},
		{StatusConnected, "connected"},
		{StatusReconnecting, "reconnecting"},
		{ConnectionStatus(99), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.String())
	}
}

func TestJetStreamBeforeConnect(t *testing.T) {
	c, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	_, err = c.JetStream()
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = c.RTT()
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestCloseBeforeConnectIsSafe(t *testing.T) {
	c, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close(), "double close must be a no-op")
}

func TestErrorClassification(t *testing.T) {
	assert.True(t, isNotFoundError(jetstream.ErrKeyNotFound))
	assert.True(t, isNotFoundError(jetstream.ErrKeyDeleted))
	assert.True(t, isNotFoundError(stderrors.New("nats: key not found")))
	assert.False(t, isNotFoundError(nil))
	assert.False(t, isNotFoundError(stderrors.New("timeout")))

	assert.True(t, isAlreadyExistsError(jetstream.ErrBucketExists))
	assert.True(t, isAlreadyExistsError(stderrors.New("stream name already in use")))
	assert.False(t, isAlreadyExistsError(nil))

	assert.True(t, isNoKeysError(jetstream.ErrNoKeysFound))
	assert.False(t, isNoKeysError(stderrors.New("other")))
}

func TestDefaultBucketOptions(t *testing.T) {
	opts := DefaultBucketOptions()
	assert.Equal(t, 3, opts.MaxRetries)
	assert.Equal(t, 10*time.Millisecond, opts.RetryDelay)
	assert.Equal(t, 5*time.Second, opts.Timeout)
}
