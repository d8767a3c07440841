package config

import "testing"

func TestLoadPriority(t *testing.T) {
	t.Setenv("HUDDLE_SERVER", "ws://from-env/ws")

	cfg, err := Load(Options{ServerURL: "ws://from-flag/ws"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ServerURL != "ws://from-flag/ws" {
		t.Errorf("flag must beat env, got %s", cfg.ServerURL)
	}

	cfg, err = Load(Options{})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ServerURL != "ws://from-env/ws" {
		t.Errorf("env must beat default, got %s", cfg.ServerURL)
	}
}

func TestHealthURL(t *testing.T) {
	cases := []struct{ in, want string }{
		{"ws://localhost:8080/ws", "http://localhost:8080/health"},
		{"wss://relay.example.com/ws", "https://relay.example.com/health"},
	}
	for _, c := range cases {
		cfg := &Config{ServerURL: c.in}
		if got := cfg.HealthURL(); got != c.want {
			t.Errorf("HealthURL(%s) = %s, want %s", c.in, got, c.want)
		}
	}
}

func TestTURNServersOptional(t *testing.T) {
	cfg := &Config{}
	if cfg.GetTURNServers() != nil {
		t.Error("no TURN servers expected when unconfigured")
	}

	cfg.TURNServer = "turn:relay.example.com"
	if got := cfg.GetTURNServers(); len(got) != 2 {
		t.Errorf("expected udp+tcp TURN URLs, got %v", got)
	}
}
