package parser

import "strings"

// Descriptor is the normalized form of one share link.
//
// The set of variants is closed: Vless, Vmess, VmessLegacy, Trojan and Shadowsocks.
// Consumers switch on the concrete type and must handle every variant; adding a
// dialect means revisiting each of those switches.
// A descriptor is recomputed from the raw link whenever it is needed and is never stored.
type Descriptor interface {
	// Protocol returns the scheme family: vless, vmess, trojan or shadowsocks.
	Protocol() string
	// Endpoint returns the server host and port.
	Endpoint() (string, int)
	// DisplayName returns the link name, or the host when the name is blank.
	DisplayName() string

	descriptor()
}

// Vless is a vless://<id>@<host>:<port>?<query>#<name> link.
type Vless struct {
	ID     string
	Host   string
	Port   int
	Params map[string]string
	Name   string
}

// Vmess is the URI dialect of vmess, shaped like vless.
type Vmess struct {
	ID     string
	Host   string
	Port   int
	Params map[string]string
	Name   string
}

// VmessLegacy is the base64-embedded JSON dialect of vmess (v2rayN style).
type VmessLegacy struct {
	ID          string
	Address     string
	Port        int
	AlterID     int
	Security    string // scy
	Network     string // net
	Type        string // header type
	Host        string // request host, not the server address
	Path        string
	TLS         string
	SNI         string
	ALPN        string
	Fingerprint string // fp
	Name        string // ps
}

// Trojan is a trojan://<password>@<host>:<port>?<query>#<name> link.
type Trojan struct {
	Password string
	Host     string
	Port     int
	Params   map[string]string
	Name     string
}

// Shadowsocks covers both SIP002 and the legacy whole-base64 form.
type Shadowsocks struct {
	Method   string
	Password string
	Host     string
	Port     int
	Name     string
}

func (*Vless) Protocol() string       { return "vless" }
func (*Vmess) Protocol() string       { return "vmess" }
func (*VmessLegacy) Protocol() string { return "vmess" }
func (*Trojan) Protocol() string      { return "trojan" }
func (*Shadowsocks) Protocol() string { return "shadowsocks" }

func (d *Vless) Endpoint() (string, int)       { return d.Host, d.Port }
func (d *Vmess) Endpoint() (string, int)       { return d.Host, d.Port }
func (d *VmessLegacy) Endpoint() (string, int) { return d.Address, d.Port }
func (d *Trojan) Endpoint() (string, int)      { return d.Host, d.Port }
func (d *Shadowsocks) Endpoint() (string, int) { return d.Host, d.Port }

func (d *Vless) DisplayName() string       { return displayName(d.Name, d.Host) }
func (d *Vmess) DisplayName() string       { return displayName(d.Name, d.Host) }
func (d *VmessLegacy) DisplayName() string { return displayName(d.Name, d.Address) }
func (d *Trojan) DisplayName() string      { return displayName(d.Name, d.Host) }
func (d *Shadowsocks) DisplayName() string { return displayName(d.Name, d.Host) }

func (*Vless) descriptor()       {}
func (*Vmess) descriptor()       {}
func (*VmessLegacy) descriptor() {}
func (*Trojan) descriptor()      {}
func (*Shadowsocks) descriptor() {}

func displayName(name, host string) string {
	if strings.TrimSpace(name) == "" {
		return host
	}
	return name
}
