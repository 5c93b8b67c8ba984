package parser

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// MaxVmessPayload bounds the encoded length of a legacy vmess blob. Longer input is
// rejected before it is decoded.
const MaxVmessPayload = 20000

// Parse decodes a share link into a Descriptor. Every failure is a *LinkError.
func Parse(raw string) (Descriptor, error) {
	raw = FixIllegalUrl(raw)
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return nil, &LinkError{Protocol: "unknown", Detail: "missing scheme separator", Err: ErrUnsupportedProtocol}
	}

	switch strings.ToLower(scheme) {
	case "vless":
		return descriptorOf(parseVLESS(rest))
	case "vmess":
		return parseVMess(rest)
	case "trojan":
		return descriptorOf(parseTrojan(rest))
	case "ss":
		return descriptorOf(parseShadowsocks(rest))
	default:
		return nil, &LinkError{Protocol: strings.ToLower(scheme), Detail: "scheme " + scheme, Err: ErrUnsupportedProtocol}
	}
}

// descriptorOf keeps a nil variant pointer from becoming a non-nil Descriptor.
func descriptorOf[T Descriptor](d T, err error) (Descriptor, error) {
	if err != nil {
		return nil, err
	}
	return d, nil
}

// --- VLESS / VMess URI ---

type idLink struct {
	id     string
	host   string
	port   int
	params map[string]string
	name   string
}

// parseIDLink handles the <uuid>@<host>:<port>?<query>#<name> shape shared by vless
// and the URI dialect of vmess.
func parseIDLink(protocol, rest string) (*idLink, error) {
	p := splitURI(rest)
	if p.Host == "" {
		return nil, missing(protocol, "host")
	}
	port, err := parsePort(protocol, p.Port)
	if err != nil {
		return nil, err
	}
	id := unescape(p.UserInfo)
	if !p.HasUser || id == "" {
		return nil, missing(protocol, "id")
	}
	if !isCanonicalUUID(id) {
		return nil, &LinkError{Protocol: protocol, Field: "id", Detail: "not a canonical uuid: " + id, Err: ErrInvalidUUID}
	}
	return &idLink{
		id:     id,
		host:   p.Host,
		port:   port,
		params: ParseQuery(p.Query),
		name:   fragmentName(p.Fragment),
	}, nil
}

func parseVLESS(rest string) (*Vless, error) {
	l, err := parseIDLink("vless", rest)
	if err != nil {
		return nil, err
	}
	return &Vless{ID: l.id, Host: l.host, Port: l.port, Params: l.params, Name: l.name}, nil
}

// --- VMess ---

type vmessJSON struct {
	V    interface{} `json:"v"`
	Ps   string      `json:"ps"`
	Add  string      `json:"add"`
	Port interface{} `json:"port"`
	Id   string      `json:"id"`
	Aid  interface{} `json:"aid"`
	Scy  string      `json:"scy"`
	Net  string      `json:"net"`
	Type string      `json:"type"`
	Host string      `json:"host"`
	Path string      `json:"path"`
	Tls  string      `json:"tls"`
	Sni  string      `json:"sni"`
	Alpn string      `json:"alpn"`
	Fp   string      `json:"fp"`
}

func parseVMess(rest string) (Descriptor, error) {
	// URI dialect: vmess://<uuid>@<host>:<port>?...
	if strings.Contains(rest, "@") {
		l, err := parseIDLink("vmess", rest)
		if err != nil {
			return nil, err
		}
		if _, ok := l.params["encryption"]; !ok {
			l.params["encryption"] = "auto"
		}
		return &Vmess{ID: l.id, Host: l.host, Port: l.port, Params: l.params, Name: l.name}, nil
	}

	// Base64 JSON (legacy)
	if len(rest) >= MaxVmessPayload {
		return nil, &LinkError{
			Protocol: "vmess",
			Detail:   fmt.Sprintf("encoded payload is %d characters, limit is %d", len(rest), MaxVmessPayload),
			Err:      ErrPayloadTooLarge,
		}
	}
	jsonStr, err := DecodeBase64(rest)
	if err != nil {
		return nil, malformed("vmess", "", "vmess base64 error: "+err.Error())
	}
	if jsonStr == "" {
		return nil, missing("vmess", "payload")
	}

	var v vmessJSON
	if err := json.Unmarshal([]byte(jsonStr), &v); err != nil {
		return nil, malformed("vmess", "", "vmess json error: "+err.Error())
	}

	d := &VmessLegacy{
		ID:          strings.TrimSpace(v.Id),
		Address:     strings.TrimSpace(v.Add),
		Port:        looseInt(v.Port),
		AlterID:     looseInt(v.Aid),
		Security:    v.Scy,
		Network:     v.Net,
		Type:        v.Type,
		Host:        v.Host,
		Path:        v.Path,
		TLS:         v.Tls,
		SNI:         v.Sni,
		ALPN:        v.Alpn,
		Fingerprint: v.Fp,
		Name:        strings.TrimSpace(v.Ps),
	}

	if d.Address == "" {
		return nil, missing("vmess", "add")
	}
	if d.Port == 0 {
		return nil, missing("vmess", "port")
	}
	if d.Port < 0 || d.Port > 65535 {
		return nil, malformed("vmess", "port", fmt.Sprintf("port out of range: %d", d.Port))
	}
	if d.ID == "" {
		return nil, missing("vmess", "id")
	}
	if !isCanonicalUUID(d.ID) {
		return nil, &LinkError{Protocol: "vmess", Field: "id", Detail: "not a canonical uuid: " + d.ID, Err: ErrInvalidUUID}
	}
	return d, nil
}

// looseInt reads a JSON number or numeric string; anything else is 0.
func looseInt(v interface{}) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0
		}
		return i
	default:
		return 0
	}
}

// --- Trojan ---

func parseTrojan(rest string) (*Trojan, error) {
	p := splitURI(rest)
	if p.Host == "" {
		return nil, missing("trojan", "host")
	}
	port, err := parsePort("trojan", p.Port)
	if err != nil {
		return nil, err
	}
	password := unescape(p.UserInfo)
	if !p.HasUser || password == "" {
		return nil, missing("trojan", "password")
	}
	return &Trojan{
		Password: password,
		Host:     p.Host,
		Port:     port,
		Params:   ParseQuery(p.Query),
		Name:     fragmentName(p.Fragment),
	}, nil
}

// --- Shadowsocks ---

func parseShadowsocks(rest string) (*Shadowsocks, error) {
	var name string
	if i := strings.IndexByte(rest, '#'); i >= 0 {
		name = fragmentName(rest[i+1:])
		rest = rest[:i]
	}
	// SIP002 plugin options are not modeled; the raw link keeps them.
	if i := strings.IndexByte(rest, '?'); i >= 0 {
		rest = rest[:i]
	}
	rest = strings.TrimSuffix(rest, "/")

	if !strings.Contains(rest, "@") {
		// Legacy: ss://base64(method:password@host:port)
		decoded, err := DecodeBase64(unescape(rest))
		if err != nil {
			return nil, malformed("shadowsocks", "", "shadowsocks base64 error: "+err.Error())
		}
		if !strings.Contains(decoded, "@") {
			// Older variants carry only method:password.
			if _, _, err := splitMethod(decoded); err != nil {
				return nil, err
			}
			return nil, missing("shadowsocks", "host")
		}
		d, err := parseShadowsocksPlain(decoded, false)
		if err != nil {
			return nil, err
		}
		d.Name = name
		return d, nil
	}

	d, err := parseShadowsocksPlain(rest, true)
	if err != nil {
		return nil, err
	}
	d.Name = name
	return d, nil
}

// parseShadowsocksPlain reads <userinfo>@<host>:<port>. With sip002 set, a userinfo
// without ':' is the base64 of method:password.
func parseShadowsocksPlain(s string, sip002 bool) (*Shadowsocks, error) {
	at := strings.LastIndexByte(s, '@')
	userInfo, hostPort := s[:at], s[at+1:]

	if sip002 {
		userInfo = unescape(userInfo)
		if !strings.Contains(userInfo, ":") {
			decoded, err := DecodeBase64(userInfo)
			if err != nil {
				return nil, malformed("shadowsocks", "userinfo", "shadowsocks userinfo base64 error: "+err.Error())
			}
			userInfo = decoded
		}
	}

	method, password, err := splitMethod(userInfo)
	if err != nil {
		return nil, err
	}

	p := splitURI(hostPort)
	if p.Host == "" {
		return nil, missing("shadowsocks", "host")
	}
	port, err := parsePort("shadowsocks", p.Port)
	if err != nil {
		return nil, err
	}
	return &Shadowsocks{Method: method, Password: password, Host: p.Host, Port: port}, nil
}

// splitMethod splits on the first colon only; the password may contain colons.
func splitMethod(userInfo string) (string, string, error) {
	method, password, ok := strings.Cut(userInfo, ":")
	if !ok {
		return "", "", malformed("shadowsocks", "userinfo", "expected method:password")
	}
	if method == "" {
		return "", "", missing("shadowsocks", "method")
	}
	if password == "" {
		return "", "", missing("shadowsocks", "password")
	}
	return method, password, nil
}
