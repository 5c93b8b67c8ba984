package xray

import (
	"encoding/json"
	"strings"

	"linkdrop/internal/logger"
	"linkdrop/internal/xray/parser"

	"github.com/xtls/xray-core/infra/conf"
)

// Document is what gets handed to the tunnel engine: either a structured outbound
// or the original text, forwarded unmodified.
type Document struct {
	Outbound *conf.OutboundDetourConfig
	Raw      string
}

// IsRaw reports whether the engine has to interpret the text itself.
func (d Document) IsRaw() bool {
	return d.Outbound == nil
}

// Build maps a descriptor to an xray outbound. Only VLESS has a structured mapping;
// every other variant returns false and the caller forwards the raw link instead.
func Build(d parser.Descriptor) (*conf.OutboundDetourConfig, bool) {
	switch v := d.(type) {
	case *parser.Vless:
		return buildVLESS(v), true
	case *parser.Vmess, *parser.VmessLegacy, *parser.Trojan, *parser.Shadowsocks:
		return nil, false
	default:
		logger.Log.Warnf("config builder: unhandled descriptor %T", d)
		return nil, false
	}
}

// Prepare turns stored profile text into the document for the engine.
func Prepare(raw string) Document {
	d, err := parser.Parse(raw)
	if err != nil {
		logger.Log.Debugf("Passing raw config through: %v", err)
		return Document{Raw: raw}
	}
	if out, ok := Build(d); ok {
		return Document{Outbound: out}
	}
	return Document{Raw: raw}
}

// --- JSON Builders ---

func buildVLESS(v *parser.Vless) *conf.OutboundDetourConfig {
	encryption := v.Params["encryption"]
	if encryption == "" {
		encryption = "none"
	}

	settings := jsonRaw(map[string]interface{}{
		"vnext": []interface{}{
			map[string]interface{}{
				"address": v.Host,
				"port":    v.Port,
				"users": []interface{}{
					map[string]interface{}{
						"id":         v.ID,
						"encryption": encryption,
						"flow":       v.Params["flow"],
					},
				},
			},
		},
	})

	return &conf.OutboundDetourConfig{
		Tag:           "proxy",
		Protocol:      "vless",
		Settings:      &settings,
		StreamSetting: streamFromParams(v.Params),
	}
}

// transport holds the stream-level options common to every link dialect.
type transport struct {
	Network     string
	Security    string
	SNI         string
	Fingerprint string
	ALPN        []string
	HeaderType  string
	Host        string
	Path        string
	ServiceName string
	Mode        string
	Pbk         string
	Sid         string
	SpiderX     string
}

// streamFromParams reads the v2rayN query keys (type, security, sni, ...).
func streamFromParams(q map[string]string) *conf.StreamConfig {
	t := transport{
		Network:     q["type"],
		Security:    q["security"],
		SNI:         q["sni"],
		Fingerprint: q["fp"],
		HeaderType:  q["headerType"],
		Host:        q["host"],
		Path:        q["path"],
		ServiceName: q["serviceName"],
		Mode:        q["mode"],
		Pbk:         q["pbk"],
		Sid:         q["sid"],
		SpiderX:     q["spx"],
	}
	if alpn := q["alpn"]; alpn != "" {
		t.ALPN = strings.Split(alpn, ",")
	}
	return buildStreamSettings(t)
}

func buildStreamSettings(t transport) *conf.StreamConfig {
	network := strings.ToLower(t.Network)
	if network == "" {
		network = "tcp"
	}
	security := strings.ToLower(t.Security)
	if security == "none" {
		security = ""
	}

	proto := conf.TransportProtocol(network)
	sc := &conf.StreamConfig{
		Network:  &proto,
		Security: security,
	}

	// TLS / REALITY
	if security == "tls" {
		sc.TLSSettings = &conf.TLSConfig{
			ServerName:  t.SNI,
			Fingerprint: t.Fingerprint,
		}
		if len(t.ALPN) > 0 {
			alpn := conf.StringList(t.ALPN)
			sc.TLSSettings.ALPN = &alpn
		}
	}
	if security == "reality" {
		sc.REALITYSettings = &conf.REALITYConfig{
			Fingerprint: t.Fingerprint,
			ServerName:  t.SNI,
			PublicKey:   t.Pbk,
			ShortId:     t.Sid,
			SpiderX:     t.SpiderX,
		}
	}

	// Transports
	switch network {
	case "ws":
		sc.WSSettings = &conf.WebSocketConfig{
			Path: t.Path,
			Headers: map[string]string{
				"Host": t.Host,
			},
		}
	case "grpc":
		sc.GRPCSettings = &conf.GRPCConfig{
			ServiceName: t.ServiceName,
			MultiMode:   t.Mode == "multi",
		}
	case "tcp", "raw":
		if t.HeaderType == "http" {
			sc.TCPSettings = &conf.TCPConfig{
				HeaderConfig: jsonRaw(map[string]interface{}{
					"type": "http",
					"request": map[string]interface{}{
						"headers": map[string]interface{}{
							"Host": []string{t.Host},
						},
						"path": []string{orDefault(t.Path, "/")},
					},
				}),
			}
		}
	}

	return sc
}

// --- Internal Helper Functions ---

func jsonRaw(v interface{}) json.RawMessage {
	b, _ := json.Marshal(v)
	return json.RawMessage(b)
}

func toRawMessagePtr(s string) *json.RawMessage {
	msg := json.RawMessage(s)
	return &msg
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
