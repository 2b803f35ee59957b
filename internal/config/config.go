package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Default configuration values (production)
const (
	DefaultDomain    = "warpchat.qzz.io"
	DefaultSTUN      = "stun:stun.l.google.com:19302"
	DefaultKeepAlive = 30 * time.Second

	DefaultDemoDelayMin = 2 * time.Second
	DefaultDemoDelayMax = 5 * time.Second
	DefaultSkipDelay    = 1 * time.Second

	DefaultAddr        = ":8080"
	DefaultMatchPolicy = "overlap"
	DefaultSendQueue   = 256
)

// Config holds the chat client configuration
type Config struct {
	// Domain is the relay server domain
	Domain string

	// WebSocketURL is constructed from domain unless given explicitly
	WebSocketURL string

	// ICE servers for WebRTC
	STUNServers []string
	TURNServer  string
	TURNUser    string
	TURNPass    string

	Interests []string
	Handle    string

	KeepAlive    time.Duration
	DemoDelayMin time.Duration
	DemoDelayMax time.Duration
	SkipDelay    time.Duration

	// Binary selects the msgpack envelope codec
	Binary bool
}

// Options for loading config with CLI flag overrides
type Options struct {
	Domain     string
	URL        string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	Interests  []string
	Handle     string
	KeepAlive  time.Duration
	Binary     bool
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	domain := pick(opts.Domain, "DOMAIN", DefaultDomain)

	wsURL := pick(opts.URL, "WARPCHAT_URL", "")
	if wsURL == "" {
		wsURL = fmt.Sprintf("wss://%s/ws", domain)
	}
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid relay url %q: %w", wsURL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("invalid relay url %q: scheme must be ws or wss", wsURL)
	}

	interests := opts.Interests
	if len(interests) == 0 {
		interests = splitList(os.Getenv("WARPCHAT_INTERESTS"))
	}

	keepAlive := opts.KeepAlive
	if keepAlive == 0 {
		keepAlive, err = durationEnv("WARPCHAT_KEEPALIVE", DefaultKeepAlive)
		if err != nil {
			return nil, err
		}
	}
	if keepAlive < 0 {
		return nil, fmt.Errorf("keepalive must be positive, got %s", keepAlive)
	}

	binary := opts.Binary
	if !binary {
		binary = os.Getenv("WARPCHAT_CODEC") == "msgpack"
	}

	return &Config{
		Domain:       domain,
		WebSocketURL: wsURL,
		STUNServers:  splitList(pick(opts.STUNServer, "STUN_SERVER", DefaultSTUN)),
		TURNServer:   pick(opts.TURNServer, "TURN_SERVER", ""),
		TURNUser:     pick(opts.TURNUser, "TURN_USERNAME", ""),
		TURNPass:     pick(opts.TURNPass, "TURN_PASSWORD", ""),
		Interests:    interests,
		Handle:       pick(opts.Handle, "WARPCHAT_HANDLE", ""),
		KeepAlive:    keepAlive,
		DemoDelayMin: DefaultDemoDelayMin,
		DemoDelayMax: DefaultDemoDelayMax,
		SkipDelay:    DefaultSkipDelay,
		Binary:       binary,
	}, nil
}

// GetTURNServers returns TURN server URLs if configured
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("turn:%s:3478?transport=tcp", c.TURNServer),
		fmt.Sprintf("turns:%s:5349?transport=tcp", c.TURNServer),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}

// StatsURL returns the relay's /stats endpoint derived from the websocket URL.
func (c *Config) StatsURL() string {
	u, err := url.Parse(c.WebSocketURL)
	if err != nil {
		return ""
	}
	if u.Scheme == "wss" {
		u.Scheme = "https"
	} else {
		u.Scheme = "http"
	}
	u.Path = "/stats"
	u.RawQuery = ""
	return u.String()
}

// ServerConfig holds the relay server configuration
type ServerConfig struct {
	Addr        string
	MatchPolicy string
	SendQueue   int
}

// ServerOptions for loading server config with CLI flag overrides
type ServerOptions struct {
	Addr        string
	MatchPolicy string
	SendQueue   int
}

// LoadServer resolves server settings with the same priority as Load.
func LoadServer(opts ServerOptions) (*ServerConfig, error) {
	addr := pick(opts.Addr, "ADDR", "")
	if addr == "" {
		if port := os.Getenv("PORT"); port != "" {
			addr = ":" + port
		} else {
			addr = DefaultAddr
		}
	}

	queue := opts.SendQueue
	if queue == 0 {
		if v := os.Getenv("SEND_QUEUE"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("invalid SEND_QUEUE %q: %w", v, err)
			}
			queue = n
		}
	}
	if queue == 0 {
		queue = DefaultSendQueue
	}
	if queue < 0 {
		return nil, fmt.Errorf("send queue must be positive, got %d", queue)
	}

	return &ServerConfig{
		Addr:        addr,
		MatchPolicy: pick(opts.MatchPolicy, "MATCH_POLICY", DefaultMatchPolicy),
		SendQueue:   queue,
	}, nil
}

// pick returns flag, then the environment variable, then def.
func pick(flag, env, def string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv(env); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func durationEnv(env string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(env)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", env, v, err)
	}
	return d, nil
}
