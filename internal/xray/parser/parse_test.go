package parser_test

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"linkdrop/internal/xray/parser"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUUID = "b831381d-6324-4d53-ad4f-8cda48b30811"

func legacyVmess(t *testing.T, fields map[string]interface{}) string {
	t.Helper()
	b, err := json.Marshal(fields)
	require.NoError(t, err)
	return "vmess://" + base64.StdEncoding.EncodeToString(b)
}

func TestParseRecoversEndpointAndName(t *testing.T) {
	ssUser := base64.RawURLEncoding.EncodeToString([]byte("aes-256-gcm:secret"))
	ssLegacy := base64.StdEncoding.EncodeToString([]byte("aes-256-gcm:secret@ss.example.net:8388"))

	tests := []struct {
		name     string
		link     string
		protocol string
		host     string
		port     int
		display  string
	}{
		{"vless", "vless://" + testUUID + "@example.com:443?type=ws&security=tls#My%20Server", "vless", "example.com", 443, "My Server"},
		{"vless upper scheme", "VLESS://" + testUUID + "@example.com:443#Up", "vless", "example.com", 443, "Up"},
		{"trojan", "trojan://s3cret@t.example.org:8443?sni=t.example.org#Trojan%20One", "trojan", "t.example.org", 8443, "Trojan One"},
		{"vmess uri", "vmess://" + testUUID + "@v.example.com:10086?type=tcp#VM", "vmess", "v.example.com", 10086, "VM"},
		{"ss sip002", "ss://" + ssUser + "@ss.example.net:8388#SS", "shadowsocks", "ss.example.net", 8388, "SS"},
		{"ss legacy", "ss://" + ssLegacy + "#SS", "shadowsocks", "ss.example.net", 8388, "SS"},
		{"ipv6 host", "trojan://pw@[2001:db8::1]:443#v6", "trojan", "2001:db8::1", 443, "v6"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := parser.Parse(tt.link)
			require.NoError(t, err)

			host, port := d.Endpoint()
			assert.Equal(t, tt.protocol, d.Protocol())
			assert.Equal(t, tt.host, host)
			assert.Equal(t, tt.port, port)
			assert.Equal(t, tt.display, d.DisplayName())
		})
	}
}

func TestParseBlankNameFallsBackToHost(t *testing.T) {
	ssUser := base64.RawURLEncoding.EncodeToString([]byte("chacha20-ietf-poly1305:pw"))
	links := []string{
		"vless://" + testUUID + "@a.example.com:443",
		"vless://" + testUUID + "@a.example.com:443#",
		"vless://" + testUUID + "@a.example.com:443#%20%20",
		"vmess://" + testUUID + "@a.example.com:443#",
		"trojan://pw@a.example.com:443#",
		"ss://" + ssUser + "@a.example.com:443#",
		"ss://" + ssUser + "@a.example.com:443",
		legacyVmess(t, map[string]interface{}{"add": "a.example.com", "port": 443, "id": testUUID, "ps": " "}),
	}
	for _, link := range links {
		d, err := parser.Parse(link)
		require.NoError(t, err, link)
		assert.Equal(t, "a.example.com", d.DisplayName(), link)
	}
}

func TestParseVlessParams(t *testing.T) {
	d, err := parser.Parse("vless://" + testUUID + "@example.com:443?path=%2Fws%3Fed%3D2048&host=cdn.example.com&spx=/a+b&flow=xtls-rprx-vision&flow=last#n")
	require.NoError(t, err)

	v, ok := d.(*parser.Vless)
	require.True(t, ok)
	assert.Equal(t, testUUID, v.ID)
	assert.Equal(t, "/ws?ed=2048", v.Params["path"])
	assert.Equal(t, "cdn.example.com", v.Params["host"])
	assert.Equal(t, "/a+b", v.Params["spx"], "plus is not a space")
	assert.Equal(t, "last", v.Params["flow"], "last duplicate wins")
}

func TestParseVmessURIDefaultsEncryption(t *testing.T) {
	d, err := parser.Parse("vmess://" + testUUID + "@v.example.com:443?type=ws")
	require.NoError(t, err)
	v := d.(*parser.Vmess)
	assert.Equal(t, "auto", v.Params["encryption"])

	d, err = parser.Parse("vmess://" + testUUID + "@v.example.com:443?encryption=aes-128-gcm")
	require.NoError(t, err)
	assert.Equal(t, "aes-128-gcm", d.(*parser.Vmess).Params["encryption"])
}

func TestParseVmessLegacyNumericForms(t *testing.T) {
	asNumbers := legacyVmess(t, map[string]interface{}{
		"v": 2, "ps": "Legacy", "add": "l.example.com", "port": 443, "id": testUUID, "aid": 4,
		"scy": "auto", "net": "ws", "type": "none", "host": "h.example.com", "path": "/p", "tls": "tls",
		"sni": "s.example.com", "alpn": "h2", "fp": "chrome",
	})
	asStrings := legacyVmess(t, map[string]interface{}{
		"v": "2", "ps": "Legacy", "add": "l.example.com", "port": "443", "id": testUUID, "aid": "4",
		"scy": "auto", "net": "ws", "type": "none", "host": "h.example.com", "path": "/p", "tls": "tls",
		"sni": "s.example.com", "alpn": "h2", "fp": "chrome",
	})

	for _, link := range []string{asNumbers, asStrings} {
		d, err := parser.Parse(link)
		require.NoError(t, err)
		v, ok := d.(*parser.VmessLegacy)
		require.True(t, ok)
		assert.Equal(t, 443, v.Port)
		assert.Equal(t, 4, v.AlterID)
		assert.Equal(t, "l.example.com", v.Address)
		assert.Equal(t, "h.example.com", v.Host)
		assert.Equal(t, "ws", v.Network)
		assert.Equal(t, "chrome", v.Fingerprint)
		assert.Equal(t, "Legacy", v.DisplayName())
	}
}

func TestParseVmessLegacyAidDefaultsToZero(t *testing.T) {
	d, err := parser.Parse(legacyVmess(t, map[string]interface{}{
		"add": "l.example.com", "port": "443", "id": testUUID, "aid": "not-a-number",
	}))
	require.NoError(t, err)
	assert.Equal(t, 0, d.(*parser.VmessLegacy).AlterID)
}

func TestParseVmessLegacyURLSafeUnpadded(t *testing.T) {
	b, err := json.Marshal(map[string]interface{}{"add": "u.example.com", "port": 80, "id": testUUID, "ps": "??>>"})
	require.NoError(t, err)
	d, err := parser.Parse("vmess://" + base64.RawURLEncoding.EncodeToString(b))
	require.NoError(t, err)
	assert.Equal(t, "??>>", d.DisplayName())
}

func TestParseShadowsocksDialectsAgree(t *testing.T) {
	method, password := "2022-blake3-aes-128-gcm", "pa:ss:word"
	sip002 := "ss://" + base64.URLEncoding.EncodeToString([]byte(method+":"+password)) + "@1.2.3.4:8388/?plugin=obfs-local#A"
	legacy := "ss://" + base64.StdEncoding.EncodeToString([]byte(method+":"+password+"@1.2.3.4:8388")) + "#A"
	literal := "ss://" + method + ":" + password + "@1.2.3.4:8388#A"

	var got []*parser.Shadowsocks
	for _, link := range []string{sip002, legacy, literal} {
		d, err := parser.Parse(link)
		require.NoError(t, err, link)
		got = append(got, d.(*parser.Shadowsocks))
	}
	for _, s := range got {
		assert.Equal(t, method, s.Method)
		assert.Equal(t, password, s.Password, "password keeps its colons")
		assert.Equal(t, "1.2.3.4", s.Host)
		assert.Equal(t, 8388, s.Port)
		assert.Equal(t, "A", s.Name)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		link  string
		want  error
		field string
	}{
		{"unknown scheme", "ftp://x", parser.ErrUnsupportedProtocol, ""},
		{"no scheme", "just some text", parser.ErrUnsupportedProtocol, ""},
		{"vless bad uuid", "vless://not-a-uuid@example.com:443", parser.ErrInvalidUUID, "id"},
		{"vless braced uuid", "vless://{" + testUUID + "}@example.com:443", parser.ErrInvalidUUID, "id"},
		{"vless no id", "vless://example.com:443", parser.ErrMissingField, "id"},
		{"vless no port", "vless://" + testUUID + "@example.com", parser.ErrMissingField, "port"},
		{"vless no host", "vless://" + testUUID + "@:443", parser.ErrMissingField, "host"},
		{"vless port range", "vless://" + testUUID + "@example.com:70000", parser.ErrInvalidFormat, "port"},
		{"trojan no password", "trojan://@example.com:443", parser.ErrMissingField, "password"},
		{"vmess uri bad uuid", "vmess://abc@example.com:443", parser.ErrInvalidUUID, "id"},
		{"vmess bad base64", "vmess://!!!notbase64!!!", parser.ErrInvalidFormat, ""},
		{"vmess bad json", "vmess://" + base64.StdEncoding.EncodeToString([]byte("{nope")), parser.ErrInvalidFormat, ""},
		{"ss legacy without host", "ss://" + base64.StdEncoding.EncodeToString([]byte("aes-256-gcm:pw")), parser.ErrMissingField, "host"},
		{"ss without colon", "ss://" + base64.StdEncoding.EncodeToString([]byte("nocolon")) + "@1.2.3.4:1", parser.ErrInvalidFormat, "userinfo"},
		{"ss no port", "ss://aes-256-gcm:pw@1.2.3.4", parser.ErrMissingField, "port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := parser.Parse(tt.link)
			require.Error(t, err)
			assert.Nil(t, d)
			assert.ErrorIs(t, err, tt.want)

			var linkErr *parser.LinkError
			require.True(t, errors.As(err, &linkErr), "all failures are LinkError")
			assert.NotEmpty(t, linkErr.Detail)
			assert.Equal(t, tt.field, linkErr.Field)
		})
	}
}

func TestParseVmessLegacyMissingFields(t *testing.T) {
	_, err := parser.Parse(legacyVmess(t, map[string]interface{}{"port": 443, "id": testUUID}))
	assert.ErrorIs(t, err, parser.ErrMissingField)

	_, err = parser.Parse(legacyVmess(t, map[string]interface{}{"add": "x.example.com", "id": testUUID}))
	assert.ErrorIs(t, err, parser.ErrMissingField)

	_, err = parser.Parse(legacyVmess(t, map[string]interface{}{"add": "x.example.com", "port": 1, "id": "nope"}))
	assert.ErrorIs(t, err, parser.ErrInvalidUUID)
}

func TestParseVmessPayloadTooLarge(t *testing.T) {
	// Valid base64 of the right shape, so only the length check can reject it.
	blob := strings.Repeat("A", parser.MaxVmessPayload)
	_, err := parser.Parse("vmess://" + blob)
	require.Error(t, err)
	assert.ErrorIs(t, err, parser.ErrPayloadTooLarge)

	_, err = parser.Parse("vmess://" + strings.Repeat("A", parser.MaxVmessPayload-4))
	assert.NotErrorIs(t, err, parser.ErrPayloadTooLarge)
}

func TestFingerprintIgnoresName(t *testing.T) {
	a, err := parser.Parse("vless://" + testUUID + "@example.com:443?type=tcp&security=tls#One")
	require.NoError(t, err)
	b, err := parser.Parse("vless://" + strings.ToUpper(testUUID) + "@EXAMPLE.com:443?security=tls#Two")
	require.NoError(t, err)
	c, err := parser.Parse("vless://" + testUUID + "@example.com:8443?security=tls#One")
	require.NoError(t, err)

	assert.Equal(t, parser.Fingerprint(a), parser.Fingerprint(b))
	assert.NotEqual(t, parser.Fingerprint(a), parser.Fingerprint(c))
}

func TestDecodeBase64(t *testing.T) {
	for _, in := range []string{"aGVsbG8", "aGVsbG8=", " aGVsbG8= "} {
		out, err := parser.DecodeBase64(in)
		require.NoError(t, err)
		assert.Equal(t, "hello", out)
	}
	_, err := parser.DecodeBase64("***")
	assert.Error(t, err)
}
