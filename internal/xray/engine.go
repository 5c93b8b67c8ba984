package xray

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"linkdrop/internal/logger"
	"linkdrop/internal/xray/parser"

	"github.com/xtls/xray-core/core"
	"github.com/xtls/xray-core/infra/conf"

	// Import distro to register all protocols/transports
	_ "github.com/xtls/xray-core/main/distro/all"
)

var ErrUnsupportedDocument = errors.New("document is neither a share link nor an xray json config")

// instance is the part of *core.Instance the engine drives.
type instance interface {
	Start() error
	Close() error
}

type launcher func(*conf.Config) (instance, error)

// Engine runs one xray-core instance at a time, exposing the active profile on a
// local SOCKS inbound.
type Engine struct {
	mu        sync.Mutex
	listen    string
	socksPort int
	launch    launcher

	current   instance
	profileID uint
}

func NewEngine(listen string, socksPort int) *Engine {
	if listen == "" {
		listen = "127.0.0.1"
	}
	return &Engine{
		listen:    listen,
		socksPort: socksPort,
		launch:    startCore,
	}
}

func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current != nil
}

// ActiveProfileID returns the profile the running instance was started for.
func (e *Engine) ActiveProfileID() (uint, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return 0, false
	}
	return e.profileID, true
}

// SocksAddress is where applications should point their proxy settings.
func (e *Engine) SocksAddress() string {
	return fmt.Sprintf("socks5://%s:%d", e.listen, e.socksPort)
}

// Restart stops any running instance and starts a new one for doc. When the new
// config cannot be built the old instance keeps running.
func (e *Engine) Restart(ctx context.Context, profileID uint, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cfg, err := e.resolve(doc)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current != nil {
		if err := e.current.Close(); err != nil {
			logger.Log.Warnf("Closing previous xray instance: %v", err)
		}
		e.current = nil
	}

	inst, err := e.launch(cfg)
	if err != nil {
		return fmt.Errorf("start xray: %w", err)
	}
	e.current = inst
	e.profileID = profileID
	logger.Log.Infof("Tunnel up for profile %d on %s", profileID, e.SocksAddress())
	return nil
}

func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return nil
	}
	err := e.current.Close()
	e.current = nil
	return err
}

// resolve turns a document into a complete xray config. Raw documents are either a
// full JSON config, used as-is, or a share link this engine builds itself.
func (e *Engine) resolve(doc Document) (*conf.Config, error) {
	if !doc.IsRaw() {
		return e.wrap(doc.Outbound), nil
	}

	raw := strings.TrimSpace(doc.Raw)
	if strings.HasPrefix(raw, "{") {
		var full conf.Config
		if err := json.Unmarshal([]byte(raw), &full); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedDocument, err)
		}
		return &full, nil
	}

	d, err := parser.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedDocument, err)
	}
	out, err := OutboundFor(d)
	if err != nil {
		return nil, err
	}
	return e.wrap(out), nil
}

// wrap puts a single outbound behind the local SOCKS inbound.
func (e *Engine) wrap(out *conf.OutboundDetourConfig) *conf.Config {
	outbound := *out
	outbound.Tag = "proxy"

	rule, _ := json.Marshal(map[string]interface{}{
		"type":        "field",
		"inboundTag":  []string{"socks-in"},
		"outboundTag": "proxy",
	})

	return &conf.Config{
		LogConfig: &conf.LogConfig{
			LogLevel:  "warning",
			AccessLog: "none",
		},
		InboundConfigs: []conf.InboundDetourConfig{{
			Tag:      "socks-in",
			Protocol: "socks",
			PortList: &conf.PortList{Range: []conf.PortRange{{From: uint32(e.socksPort), To: uint32(e.socksPort)}}},
			Settings: toRawMessagePtr(`{"auth": "noauth", "udp": true}`),
			ListenOn: toAddress(e.listen),
		}},
		OutboundConfigs: []conf.OutboundDetourConfig{outbound},
		RouterConfig: &conf.RouterConfig{
			RuleList: []json.RawMessage{rule},
		},
	}
}

func startCore(cfg *conf.Config) (inst instance, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Errorf("CRITICAL: Xray Core Panic recovered: %v", r)
			err = fmt.Errorf("xray core panic: %v", r)
		}
	}()

	pbConfig, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	ci, err := core.New(pbConfig)
	if err != nil {
		return nil, err
	}
	if err := ci.Start(); err != nil {
		ci.Close()
		return nil, err
	}
	return ci, nil
}

func toAddress(s string) *conf.Address {
	var addr conf.Address
	_ = json.Unmarshal([]byte(fmt.Sprintf("%q", s)), &addr)
	return &addr
}
