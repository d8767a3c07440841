// Package config holds runtime configuration, resolved from CLI flags,
// environment variables, and defaults, in that priority order.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

// Default configuration values.
const (
	DefaultListenAddr = ":8080"
	DefaultServerURL  = "ws://localhost:8080/ws"
	DefaultSTUN       = "stun:stun.l.google.com:19302"
)

// Config holds application configuration for both the relay and the
// client.
type Config struct {
	// ListenAddr is where the relay listens (serve only).
	ListenAddr string

	// ServerURL is the relay's websocket endpoint (client only).
	ServerURL string

	// ICE servers for WebRTC.
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
}

// Options carries CLI flag overrides into Load.
type Options struct {
	ListenAddr string
	ServerURL  string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
}

// Load resolves configuration: CLI flags beat environment variables beat
// defaults.
func Load(opts Options) (*Config, error) {
	listenAddr := pick(opts.ListenAddr, "HUDDLE_ADDR", DefaultListenAddr)
	serverURL := pick(opts.ServerURL, "HUDDLE_SERVER", DefaultServerURL)
	stunServer := pick(opts.STUNServer, "STUN_SERVER", DefaultSTUN)
	turnServer := pick(opts.TURNServer, "TURN_SERVER", "")
	turnUser := pick(opts.TURNUser, "TURN_USERNAME", "")
	turnPass := pick(opts.TURNPass, "TURN_PASSWORD", "")

	if _, err := url.Parse(serverURL); err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", serverURL, err)
	}

	return &Config{
		ListenAddr: listenAddr,
		ServerURL:  serverURL,
		STUNServer: stunServer,
		TURNServer: turnServer,
		TURNUser:   turnUser,
		TURNPass:   turnPass,
	}, nil
}

func pick(flag, env, fallback string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv(env); v != "" {
		return v
	}
	return fallback
}

// HealthURL derives the health probe endpoint from the websocket URL.
func (c *Config) HealthURL() string {
	u := c.ServerURL
	u = strings.Replace(u, "wss://", "https://", 1)
	u = strings.Replace(u, "ws://", "http://", 1)
	u = strings.TrimSuffix(u, "/ws")
	return u + "/health"
}

// GetSTUNServers returns STUN server URLs as strings.
func (c *Config) GetSTUNServers() []string {
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured.
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("%s:3478?transport=tcp", c.TURNServer),
	}
}

// GetTURNCredentials returns the TURN username and password.
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}
