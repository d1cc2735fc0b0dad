package handshake

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testServiceName(t *testing.T) string {
	return fmt.Sprintf("com.pushflx4.aggregate.test.%d", time.Now().UnixNano())
}

func TestHandshakeLoopback(t *testing.T) {
	name := testServiceName(t)
	server := NewServer(name)
	layout, err := server.Start()
	require.NoError(t, err)
	defer server.Stop()

	go server.Serve()
	// Give the accept loop a moment to enter its first Accept call.
	time.Sleep(10 * time.Millisecond)

	layout.HelperStatus.Store(1)

	client := NewClient(name)
	region, err := client.Connect()
	require.NoError(t, err)
	defer region.Close()

	require.Equal(t, uint32(1), region.Layout().HelperStatus.Load())

	region.Layout().MasterState.Store(2)
	require.Equal(t, uint32(2), layout.MasterState.Load())
}

func TestHandshakeClientFailsWithoutServer(t *testing.T) {
	client := NewClient(testServiceName(t))
	_, err := client.Connect()
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrCapabilityUnavailable))
}

func TestHandshakeServerRejectsSecondStart(t *testing.T) {
	name := testServiceName(t)
	first := NewServer(name)
	_, err := first.Start()
	require.NoError(t, err)
	defer first.Stop()

	second := NewServer(name)
	_, err = second.Start()
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrAlreadyRunning))
}
