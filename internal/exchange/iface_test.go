package exchange

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPickAddressPrefersWireless(t *testing.T) {
	candidates := []Interface{
		{Name: "eth0", IP: net.IPv4(192, 168, 1, 10)},
		{Name: "docker0", IP: net.IPv4(172, 17, 0, 1)},
		{Name: "wlp3s0", IP: net.IPv4(192, 168, 1, 20)},
	}
	ip, err := pickAddress(candidates, DefaultPreferredInterfaces)
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.20", ip.String())
}

func TestPickAddressFallsBack(t *testing.T) {
	candidates := []Interface{
		{Name: "lo", IP: net.IPv4(127, 0, 0, 1)},
		{Name: "eth0", IP: net.IPv4(192, 168, 1, 10)},
		{Name: "eth1", IP: net.IPv4(10, 0, 0, 2)},
	}
	ip, err := pickAddress(candidates, DefaultPreferredInterfaces)
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.10", ip.String())
}

func TestPickAddressCustomPreference(t *testing.T) {
	candidates := []Interface{
		{Name: "wlan0", IP: net.IPv4(192, 168, 1, 20)},
		{Name: "tailscale0", IP: net.IPv4(100, 64, 0, 3)},
	}
	ip, err := pickAddress(candidates, []string{"tailscale*"})
	require.NoError(t, err)
	assert.Equal(t, "100.64.0.3", ip.String())
}

func TestPickAddressNone(t *testing.T) {
	_, err := pickAddress(nil, DefaultPreferredInterfaces)
	assert.ErrorIs(t, err, ErrNoInterface)

	_, err = pickAddress([]Interface{{Name: "lo", IP: net.IPv4(127, 0, 0, 1)}}, DefaultPreferredInterfaces)
	assert.ErrorIs(t, err, ErrNoInterface)
}
