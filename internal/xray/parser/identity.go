package parser

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Fingerprint identifies the server a descriptor points at, independent of its
// display name, so the same server shared under two names can be recognized.
func Fingerprint(d Descriptor) string {
	var parts []string

	// --- 1. Protocol & Endpoint ---
	host, port := d.Endpoint()
	parts = append(parts, d.Protocol(), strings.ToLower(host), fmt.Sprintf("%d", port))

	// --- 2. Credentials & Transport ---
	switch v := d.(type) {
	case *Vless:
		parts = append(parts, strings.ToLower(v.ID))
		parts = append(parts, normalizedParams(v.Params)...)
	case *Vmess:
		parts = append(parts, strings.ToLower(v.ID))
		parts = append(parts, normalizedParams(v.Params)...)
	case *VmessLegacy:
		net := strings.ToLower(v.Network)
		if net == "" {
			net = "tcp"
		}
		header := strings.ToLower(v.Type)
		if header == "none" {
			header = ""
		}
		parts = append(parts, strings.ToLower(v.ID), net, header, v.Host, v.Path, strings.ToLower(v.TLS), v.SNI)
	case *Trojan:
		parts = append(parts, v.Password)
		parts = append(parts, normalizedParams(v.Params)...)
	case *Shadowsocks:
		parts = append(parts, strings.ToLower(v.Method), v.Password)
	default:
		panic(fmt.Sprintf("parser: unhandled descriptor %T", d))
	}

	signature := strings.Join(parts, "|")
	hash := sha256.Sum256([]byte(signature))
	return hex.EncodeToString(hash[:])
}

// normalizedParams drops values that mean "default" and sorts the rest.
func normalizedParams(params map[string]string) []string {
	var out []string
	for k, v := range params {
		lv := strings.ToLower(v)
		switch {
		case v == "":
			continue
		case k == "type" && lv == "tcp":
			continue
		case k == "headerType" && lv == "none":
			continue
		case k == "encryption" && (lv == "none" || lv == "auto"):
			continue
		}
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
