package xray

import (
	"encoding/json"
	"fmt"
	"strings"

	"linkdrop/internal/xray/parser"

	"github.com/xtls/xray-core/infra/conf"
)

// OutboundFor builds an outbound for every descriptor variant. Build stays limited to
// VLESS; this is what the engine uses when it receives a raw share link.
func OutboundFor(d parser.Descriptor) (*conf.OutboundDetourConfig, error) {
	var protocol string
	var settings json.RawMessage
	var stream *conf.StreamConfig

	switch v := d.(type) {
	case *parser.Vless:
		return buildVLESS(v), nil
	case *parser.Vmess:
		protocol = "vmess"
		settings = buildVMess(v.Host, v.Port, v.ID, 0, v.Params["encryption"])
		stream = streamFromParams(v.Params)
	case *parser.VmessLegacy:
		protocol = "vmess"
		settings = buildVMess(v.Address, v.Port, v.ID, v.AlterID, v.Security)
		t := transport{
			Network:     v.Network,
			Security:    v.TLS,
			SNI:         v.SNI,
			Fingerprint: v.Fingerprint,
			HeaderType:  v.Type,
			Host:        v.Host,
			Path:        v.Path,
			ServiceName: v.Path,
		}
		if v.ALPN != "" {
			t.ALPN = strings.Split(v.ALPN, ",")
		}
		stream = buildStreamSettings(t)
	case *parser.Trojan:
		protocol = "trojan"
		settings = buildTrojan(v)
		params := v.Params
		if params["security"] == "" {
			params = cloneParams(params)
			params["security"] = "tls"
		}
		stream = streamFromParams(params)
	case *parser.Shadowsocks:
		protocol = "shadowsocks"
		settings = buildShadowsocks(v)
	default:
		return nil, fmt.Errorf("protocol conversion not implemented: %T", d)
	}

	return &conf.OutboundDetourConfig{
		Tag:           "proxy",
		Protocol:      protocol,
		Settings:      &settings,
		StreamSetting: stream,
	}, nil
}

func buildVMess(address string, port int, id string, alterID int, security string) json.RawMessage {
	return jsonRaw(map[string]interface{}{
		"vnext": []interface{}{
			map[string]interface{}{
				"address": address,
				"port":    port,
				"users": []interface{}{
					map[string]interface{}{
						"id":       id,
						"alterId":  alterID,
						"security": orDefault(security, "auto"),
					},
				},
			},
		},
	})
}

func buildTrojan(t *parser.Trojan) json.RawMessage {
	return jsonRaw(map[string]interface{}{
		"servers": []interface{}{
			map[string]interface{}{
				"address":  t.Host,
				"port":     t.Port,
				"password": t.Password,
			},
		},
	})
}

func buildShadowsocks(s *parser.Shadowsocks) json.RawMessage {
	return jsonRaw(map[string]interface{}{
		"servers": []interface{}{
			map[string]interface{}{
				"address":  s.Host,
				"port":     s.Port,
				"method":   s.Method,
				"password": s.Password,
			},
		},
	})
}

func cloneParams(in map[string]string) map[string]string {
	out := make(map[string]string, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}
