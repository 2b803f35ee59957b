package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"DOMAIN", "WARPCHAT_URL", "STUN_SERVER", "TURN_SERVER", "TURN_USERNAME",
		"TURN_PASSWORD", "WARPCHAT_INTERESTS", "WARPCHAT_HANDLE", "WARPCHAT_KEEPALIVE",
		"WARPCHAT_CODEC", "ADDR", "PORT", "MATCH_POLICY", "SEND_QUEUE",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(Options{})
	require.NoError(t, err)

	assert.Equal(t, DefaultDomain, cfg.Domain)
	assert.Equal(t, "wss://"+DefaultDomain+"/ws", cfg.WebSocketURL)
	assert.Equal(t, []string{DefaultSTUN}, cfg.STUNServers)
	assert.Nil(t, cfg.GetTURNServers())
	assert.Equal(t, DefaultKeepAlive, cfg.KeepAlive)
	assert.Empty(t, cfg.Interests)
	assert.False(t, cfg.Binary)
}

func TestLoadFlagBeatsEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("DOMAIN", "env.example.com")
	t.Setenv("WARPCHAT_INTERESTS", "music, films ,,")
	t.Setenv("WARPCHAT_HANDLE", "@env")

	cfg, err := Load(Options{Handle: "@flag"})
	require.NoError(t, err)
	assert.Equal(t, "wss://env.example.com/ws", cfg.WebSocketURL)
	assert.Equal(t, []string{"music", "films"}, cfg.Interests)
	assert.Equal(t, "@flag", cfg.Handle)

	cfg, err = Load(Options{Domain: "flag.example.com", Interests: []string{"chess"}})
	require.NoError(t, err)
	assert.Equal(t, "wss://flag.example.com/ws", cfg.WebSocketURL)
	assert.Equal(t, []string{"chess"}, cfg.Interests)
}

func TestLoadExplicitURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("WARPCHAT_URL", "ws://localhost:8080/ws")

	cfg, err := Load(Options{})
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/ws", cfg.WebSocketURL)
	assert.Equal(t, "http://localhost:8080/stats", cfg.StatsURL())

	_, err = Load(Options{URL: "http://localhost:8080/ws"})
	assert.Error(t, err)
}

func TestLoadKeepAlive(t *testing.T) {
	clearEnv(t)
	t.Setenv("WARPCHAT_KEEPALIVE", "10s")
	cfg, err := Load(Options{})
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.KeepAlive)

	t.Setenv("WARPCHAT_KEEPALIVE", "soon")
	_, err = Load(Options{})
	assert.Error(t, err)
}

func TestTURNServers(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(Options{TURNServer: "turn.example.com", TURNUser: "u", TURNPass: "p"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"turn:turn.example.com:3478?transport=udp",
		"turn:turn.example.com:3478?transport=tcp",
		"turns:turn.example.com:5349?transport=tcp",
	}, cfg.GetTURNServers())
	user, pass := cfg.GetTURNCredentials()
	assert.Equal(t, "u", user)
	assert.Equal(t, "p", pass)
}

func TestLoadServer(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadServer(ServerOptions{})
	require.NoError(t, err)
	assert.Equal(t, DefaultAddr, cfg.Addr)
	assert.Equal(t, DefaultMatchPolicy, cfg.MatchPolicy)
	assert.Equal(t, DefaultSendQueue, cfg.SendQueue)

	t.Setenv("PORT", "9000")
	t.Setenv("MATCH_POLICY", "fifo")
	cfg, err = LoadServer(ServerOptions{})
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "fifo", cfg.MatchPolicy)

	t.Setenv("SEND_QUEUE", "lots")
	_, err = LoadServer(ServerOptions{})
	assert.Error(t, err)
}
