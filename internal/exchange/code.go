package exchange

import (
	"errors"
	"strings"

	"github.com/skip2/go-qrcode"
)

const DefaultCodeScheme = "linkdrop"

var ErrInvalidCode = errors.New("invalid exchange code")

// Code is the out-of-band message a receiver shows and a sender scans:
// <scheme>://p2p?url=<shareUrl>&token=<token>.
type Code struct {
	Scheme string
	URL    string
	Token  string
}

func (c Code) String() string {
	scheme := c.Scheme
	if scheme == "" {
		scheme = DefaultCodeScheme
	}
	return scheme + "://p2p?url=" + c.URL + "&token=" + c.Token
}

// ParseCode splits on the literal "url=" and "&token=" markers. The URL is not
// percent-decoded.
func ParseCode(s string) (Code, error) {
	s = strings.TrimSpace(s)
	scheme, _, _ := strings.Cut(s, "://")

	i := strings.Index(s, "url=")
	if i < 0 {
		return Code{}, ErrInvalidCode
	}
	rest := s[i+len("url="):]
	j := strings.Index(rest, "&token=")
	if j < 0 {
		return Code{}, ErrInvalidCode
	}

	c := Code{
		Scheme: scheme,
		URL:    rest[:j],
		Token:  rest[j+len("&token="):],
	}
	if c.URL == "" || c.Token == "" {
		return Code{}, ErrInvalidCode
	}
	return c, nil
}

// QR renders the code as a 256px PNG.
func (c Code) QR() ([]byte, error) {
	return qrcode.Encode(c.String(), qrcode.Medium, 256)
}

// Terminal renders the code with half-block characters for printing to a terminal.
func (c Code) Terminal() (string, error) {
	q, err := qrcode.New(c.String(), qrcode.Medium)
	if err != nil {
		return "", err
	}
	return q.ToSmallString(false), nil
}
