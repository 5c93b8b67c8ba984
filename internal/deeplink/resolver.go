// Package deeplink decodes universal links that carry a pending profile or group:
// https://<host>/?data=<base64 of "type=..&name=..&url=..&autoupdate=..&autoupdateinterval=..">.
package deeplink

import (
	"encoding/base64"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"linkdrop/internal/xray/parser"
)

type Kind int

const (
	None Kind = iota
	Profile
	Group
	Invalid
)

func (k Kind) String() string {
	switch k {
	case Profile:
		return "profile"
	case Group:
		return "group"
	case Invalid:
		return "invalid"
	default:
		return "none"
	}
}

const DefaultInterval = 15

var (
	ErrNoLinkData = errors.New("url carries no link data")
	ErrInvalid    = errors.New("invalid deep link")
)

// Err maps a result kind to the error callers report; nil for Profile and Group.
func (r Result) Err() error {
	switch r.Kind {
	case None:
		return ErrNoLinkData
	case Invalid:
		return ErrInvalid
	default:
		return nil
	}
}

// Pending is a profile or group the user has not confirmed yet.
type Pending struct {
	Group              bool
	Name               string
	URL                string
	AutoUpdate         bool
	AutoUpdateInterval int
}

// Result carries Pending only for Profile and Group.
type Result struct {
	Kind    Kind
	Pending *Pending
}

type Resolver struct {
	Host string
}

// Resolve never returns partially populated data: a recognized link that fails
// decoding or lacks name or url is Invalid.
func (r Resolver) Resolve(raw string) Result {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Result{Kind: None}
	}
	data, ok := rawParam(u.RawQuery, "data")
	if !ok {
		return Result{Kind: None}
	}
	if !strings.EqualFold(u.Hostname(), r.Host) {
		return Result{Kind: Invalid}
	}

	decoded, err := parser.DecodeBase64(data)
	if err != nil || decoded == "" {
		return Result{Kind: Invalid}
	}

	fields := make(map[string]string)
	for _, pair := range strings.Split(decoded, "&") {
		key, value, _ := strings.Cut(pair, "=")
		if key != "" {
			fields[key] = value
		}
	}

	p := &Pending{
		Group:              fields["type"] == "group",
		Name:               fields["name"],
		URL:                fields["url"],
		AutoUpdateInterval: DefaultInterval,
	}
	if p.Name == "" || p.URL == "" {
		return Result{Kind: Invalid}
	}
	// Unreadable optional fields fall back to their defaults.
	if b, err := strconv.ParseBool(fields["autoupdate"]); err == nil {
		p.AutoUpdate = b
	}
	if n, err := strconv.Atoi(fields["autoupdateinterval"]); err == nil && n > 0 {
		p.AutoUpdateInterval = n
	}

	if p.Group {
		return Result{Kind: Group, Pending: p}
	}
	return Result{Kind: Profile, Pending: p}
}

// rawParam finds key in a raw query and percent-decodes its value without turning
// '+' into a space, since '+' is a base64 character.
func rawParam(rawQuery, key string) (string, bool) {
	for _, pair := range strings.Split(rawQuery, "&") {
		k, v, _ := strings.Cut(pair, "=")
		if k != key {
			continue
		}
		if dec, err := url.PathUnescape(v); err == nil {
			v = dec
		}
		return v, v != ""
	}
	return "", false
}

// Build produces the link Resolve accepts for p.
func Build(host string, p Pending) string {
	kind := "profile"
	if p.Group {
		kind = "group"
	}
	interval := p.AutoUpdateInterval
	if interval == 0 {
		interval = DefaultInterval
	}
	inner := strings.Join([]string{
		"type=" + kind,
		"name=" + p.Name,
		"url=" + p.URL,
		"autoupdate=" + strconv.FormatBool(p.AutoUpdate),
		"autoupdateinterval=" + strconv.Itoa(interval),
	}, "&")
	data := base64.StdEncoding.EncodeToString([]byte(inner))
	return "https://" + host + "/?data=" + url.QueryEscape(data)
}
