package parser

import (
	"encoding/base64"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// DecodeBase64 attempts to decode standard and URL-safe base64 strings,
// automatically fixing missing padding.
func DecodeBase64(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	s = strings.TrimRight(s, "=")
	if n := len(s) % 4; n != 0 {
		s += strings.Repeat("=", 4-n)
	}

	b, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return string(b), nil
	}

	b, err = base64.URLEncoding.DecodeString(s)
	if err == nil {
		return string(b), nil
	}

	return "", err
}

// FixIllegalUrl cleans up common issues in pasted or scraped links.
func FixIllegalUrl(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	return s
}

// uriParts is the common decomposition of <userinfo>@<host>:<port>?<query>#<fragment>.
type uriParts struct {
	UserInfo string
	HasUser  bool
	Host     string
	Port     string
	Query    string
	Fragment string
}

// splitURI splits the part after "scheme://". The fragment is cut first so a '?'
// inside a name is kept; userinfo ends at the last '@' so passwords may contain one.
func splitURI(rest string) uriParts {
	var p uriParts
	if i := strings.IndexByte(rest, '#'); i >= 0 {
		p.Fragment = rest[i+1:]
		rest = rest[:i]
	}
	if i := strings.IndexByte(rest, '?'); i >= 0 {
		p.Query = rest[i+1:]
		rest = rest[:i]
	}
	rest = strings.TrimSuffix(rest, "/")
	if i := strings.LastIndexByte(rest, '@'); i >= 0 {
		p.UserInfo = rest[:i]
		p.HasUser = true
		rest = rest[i+1:]
	}
	if host, port, err := net.SplitHostPort(rest); err == nil {
		p.Host, p.Port = host, port
	} else {
		p.Host = strings.Trim(rest, "[]")
	}
	return p
}

// ParseQuery splits an '&'-joined query into a map. Values are percent-decoded
// but '+' stays a literal plus; when a key repeats the last value wins.
func ParseQuery(raw string) map[string]string {
	params := make(map[string]string)
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		if key == "" {
			continue
		}
		params[unescape(key)] = unescape(value)
	}
	return params
}

// unescape percent-decodes s and returns it unchanged when it is not valid encoding.
func unescape(s string) string {
	if v, err := url.PathUnescape(s); err == nil {
		return v
	}
	return s
}

// fragmentName decodes a fragment into a display name; blank means no name.
func fragmentName(fragment string) string {
	name := strings.TrimSpace(unescape(fragment))
	return name
}

func parsePort(protocol, raw string) (int, error) {
	if raw == "" {
		return 0, missing(protocol, "port")
	}
	port, err := strconv.Atoi(raw)
	if err != nil {
		return 0, malformed(protocol, "port", "port is not a number: "+raw)
	}
	if port < 1 || port > 65535 {
		return 0, malformed(protocol, "port", "port out of range: "+raw)
	}
	return port, nil
}

// isCanonicalUUID accepts only the 36-character hyphenated form.
func isCanonicalUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
