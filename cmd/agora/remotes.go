package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
)

// RemotesConfig is the on-disk profile file: named servers plus the active one.
type RemotesConfig struct {
	Active  string            `toml:"active"`
	Remotes map[string]Remote `toml:"remotes"`
}

// Remote is a named server profile. Deliberation and Actor, when set,
// replace the built-in defaults of --deliberation and --actor.
type Remote struct {
	URL          string `toml:"url"`
	GRPCAddr     string `toml:"grpc_addr,omitempty"`
	Token        string `toml:"token,omitempty"`
	NATSURL      string `toml:"nats_url,omitempty"`
	Deliberation string `toml:"deliberation,omitempty"`
	Actor        string `toml:"actor,omitempty"`
}

// validateRemoteURL accepts absolute http(s) URLs only.
func validateRemoteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid URL %q: want http://host[:port] or https://host[:port]", raw)
	}
	return nil
}

// maskToken hides all but the first eight characters of a token. Short
// form ends in "..."; long form keeps the length visible.
func maskToken(token string, long bool) string {
	if len(token) <= 8 {
		return token
	}
	if long {
		return token[:8] + strings.Repeat("*", len(token)-8)
	}
	return token[:8] + "..."
}

func remoteConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".local", "state", "agora")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "remotes.toml"), nil
}

func loadRemotesConfig() (RemotesConfig, error) {
	path, err := remoteConfigPath()
	if err != nil {
		return RemotesConfig{}, err
	}
	cfg := RemotesConfig{Remotes: map[string]Remote{}}
	if _, err := toml.DecodeFile(path, &cfg); err != nil && !os.IsNotExist(err) {
		return RemotesConfig{}, fmt.Errorf("reading %s: %w", path, err)
	}
	if cfg.Remotes == nil {
		cfg.Remotes = map[string]Remote{}
	}
	if cfg.Active != "" {
		if _, ok := cfg.Remotes[cfg.Active]; !ok {
			cfg.Active = ""
		}
	}
	return cfg, nil
}

func saveRemotesConfig(cfg RemotesConfig) error {
	path, err := remoteConfigPath()
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

var (
	remoteOnce   sync.Once
	activeRemote Remote
)

// active returns the active remote profile, loaded once per process. The
// zero Remote means none is configured.
func active() Remote {
	remoteOnce.Do(func() {
		cfg, err := loadRemotesConfig()
		if err != nil || cfg.Active == "" {
			return
		}
		activeRemote = cfg.Remotes[cfg.Active]
	})
	return activeRemote
}
