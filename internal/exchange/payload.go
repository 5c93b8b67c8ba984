package exchange

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"linkdrop/internal/crypto"
)

type Kind string

const (
	KindProfile Kind = "profile"
	KindGroup   Kind = "group"
)

var ErrInvalidPayload = errors.New("invalid payload")

// Payload is one profile or group in transit between two devices.
type Payload struct {
	DeviceName         string   `json:"deviceName"`
	Type               Kind     `json:"type"`
	Name               string   `json:"name"`
	Content            string   `json:"content,omitempty"`
	URL                string   `json:"url,omitempty"`
	AutoUpdate         bool     `json:"autoUpdate"`
	AutoUpdateInterval int      `json:"autoUpdateInterval"`
	Links              []string `json:"links,omitempty"`
	Token              string   `json:"token"`
}

// Envelope is the request body of POST /share.
type Envelope struct {
	Data string `json:"data"`
}

func EncodePayload(p Payload) ([]byte, error) {
	if p.Type == "" {
		p.Type = KindProfile
	}
	return json.Marshal(p)
}

// DecodePayload parses and validates a payload. A missing type means profile.
func DecodePayload(b []byte) (Payload, error) {
	p, err := unmarshalPayload(b)
	if err != nil {
		return Payload{}, err
	}
	if err := p.validate(); err != nil {
		return Payload{}, err
	}
	return p, nil
}

func unmarshalPayload(b []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(b, &p); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return p, nil
}

func (p *Payload) validate() error {
	switch p.Type {
	case "":
		p.Type = KindProfile
	case KindProfile, KindGroup:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidPayload, p.Type)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidPayload)
	}
	return nil
}

// Seal encodes p and encrypts it with token.
func Seal(p Payload, token string) (Envelope, error) {
	b, err := EncodePayload(p)
	if err != nil {
		return Envelope{}, err
	}
	data, err := crypto.Encrypt(b, token)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Data: data}, nil
}

// Open reverses Seal. Decryption failures wrap crypto.ErrDecryptionFailed and
// decode failures wrap ErrInvalidPayload.
func Open(env Envelope, token string) (Payload, error) {
	b, err := crypto.Decrypt(env.Data, token)
	if err != nil {
		return Payload{}, err
	}
	return DecodePayload(b)
}
