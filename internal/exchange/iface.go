package exchange

import (
	"errors"
	"net"
	"path"
	"strings"
)

var ErrNoInterface = errors.New("no eligible network interface")

// DefaultPreferredInterfaces are the name patterns of wireless adapters on
// macOS and Linux.
var DefaultPreferredInterfaces = []string{"en0", "wlan*", "wlp*", "wl*"}

// Interface is one candidate address the share URL can be built from.
type Interface struct {
	Name string
	IP   net.IP
}

// SystemInterfaces lists the IPv4 addresses of every interface that is up and
// not a loopback.
func SystemInterfaces() ([]Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var out []Interface
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ip := ipNet.IP.To4()
			if ip == nil || ip.IsLoopback() {
				continue
			}
			out = append(out, Interface{Name: iface.Name, IP: ip})
		}
	}
	return out, nil
}

// pickAddress returns the first candidate whose name matches a preferred pattern,
// else the first eligible candidate.
func pickAddress(candidates []Interface, preferred []string) (net.IP, error) {
	var eligible []Interface
	for _, c := range candidates {
		if ip := c.IP.To4(); ip != nil && !ip.IsLoopback() {
			eligible = append(eligible, Interface{Name: c.Name, IP: ip})
		}
	}
	if len(eligible) == 0 {
		return nil, ErrNoInterface
	}

	for _, c := range eligible {
		if matchesAny(c.Name, preferred) {
			return c.IP, nil
		}
	}
	return eligible[0].IP, nil
}

func matchesAny(name string, patterns []string) bool {
	name = strings.ToLower(name)
	for _, p := range patterns {
		if ok, _ := path.Match(strings.ToLower(p), name); ok {
			return true
		}
	}
	return false
}
