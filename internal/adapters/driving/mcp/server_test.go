package mcp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer(t *testing.T) {
	t.Run("nil query service returns error", func(t *testing.T) {
		ports := &Ports{}
		server, err := NewServer(ports)
		require.Error(t, err)
		assert.Nil(t, server)
		assert.ErrorIs(t, err, ErrMissingQueryService)
	})

	t.Run("valid ports creates server", func(t *testing.T) {
		ports := &Ports{
			Query: &mockQueryService{},
		}
		server, err := NewServer(ports)
		require.NoError(t, err)
		assert.NotNil(t, server)
	})
}

func TestPorts_Validate(t *testing.T) {
	t.Run("nil query service returns error", func(t *testing.T) {
		ports := &Ports{}
		err := ports.Validate()
		assert.ErrorIs(t, err, ErrMissingQueryService)
	})

	t.Run("query only is valid", func(t *testing.T) {
		ports := &Ports{
			Query: &mockQueryService{},
		}
		err := ports.Validate()
		assert.NoError(t, err)
	})

	t.Run("all ports is valid", func(t *testing.T) {
		ports := &Ports{
			Query:    &mockQueryService{},
			Ingestor: &mockIngestor{},
		}
		err := ports.Validate()
		assert.NoError(t, err)
	})
}

func TestServer_Tools(t *testing.T) {
	t.Run("read-only exposes query and stats", func(t *testing.T) {
		server, err := NewServer(&Ports{Query: &mockQueryService{}})
		require.NoError(t, err)
		assert.Equal(t, []string{"query", "stats"}, server.Tools())
	})

	t.Run("ingestor adds the ingest tool", func(t *testing.T) {
		server, err := NewServer(&Ports{Query: &mockQueryService{}, Ingestor: &mockIngestor{}})
		require.NoError(t, err)
		assert.Equal(t, []string{"query", "stats", "ingest"}, server.Tools())
	})
}

func TestServer_Version(t *testing.T) {
	server, err := NewServer(&Ports{Query: &mockQueryService{}})
	require.NoError(t, err)
	assert.Equal(t, DefaultVersion, server.Version())

	server, err = NewServer(&Ports{Query: &mockQueryService{}}, WithVersion("1.2.3"))
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", server.Version())

	server, err = NewServer(&Ports{Query: &mockQueryService{}}, WithVersion(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultVersion, server.Version())
}

func TestServer_RunHTTP_StopsOnCancel(t *testing.T) {
	server, err := NewServer(&Ports{Query: &mockQueryService{}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- server.RunHTTP(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("RunHTTP did not return after cancel")
	}
}
