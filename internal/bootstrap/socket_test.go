package bootstrap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehrlich-b/go-netring/internal/ring"
)

func TestParseHostValid(t *testing.T) {
	ip, err := ParseHost("127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", ip.String())
}

func TestParseHostRejectsHostname(t *testing.T) {
	_, err := ParseHost("localhost")
	assert.Error(t, err)
}

func TestParseHostRejectsIPv6(t *testing.T) {
	_, err := ParseHost("::1")
	assert.Error(t, err)
}

func TestListenBindsAndBuildsRing(t *testing.T) {
	var builtWith ring.Config
	stub := func(cfg ring.Config) (ring.Ring, error) {
		builtWith = cfg
		return ring.NewLoopbackRing(8), nil
	}

	bound, err := Listen(Settings{
		Host:       "127.0.0.1",
		Port:       0,
		MaxQueue:   16,
		MaxClients: 4,
	}, stub)
	require.NoError(t, err)
	defer bound.Ring.Close()

	assert.GreaterOrEqual(t, bound.ListenFD, 0)
	assert.EqualValues(t, 4, builtWith.Entries)
}

func TestListenRollsBackOnRingFailure(t *testing.T) {
	failing := func(ring.Config) (ring.Ring, error) {
		return nil, assert.AnError
	}

	_, err := Listen(Settings{Host: "127.0.0.1", Port: 0, MaxQueue: 4, MaxClients: 4}, failing)
	require.Error(t, err)
}
