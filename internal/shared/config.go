package shared

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"golang.org/x/oauth2"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Generator   GeneratorConfig   `toml:"generator"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
	YouTube YouTubeConfig `toml:"youtube"`
	LastFM  LastFMConfig  `toml:"lastfm"`
}

// SpotifyConfig contains Spotify API credentials and the most recent OAuth token.
type SpotifyConfig struct {
	ClientID     string    `toml:"client_id"`
	ClientSecret string    `toml:"client_secret"`
	RedirectURI  string    `toml:"redirect_uri"`
	AccessToken  string    `toml:"access_token"`
	RefreshToken string    `toml:"refresh_token"`
	TokenType    string    `toml:"token_type"`
	Expiry       time.Time `toml:"expiry"`
}

// Authorized reports whether a token has been stored.
func (s SpotifyConfig) Authorized() bool {
	return s.AccessToken != "" || s.RefreshToken != ""
}

// Token builds an [oauth2.Token] from the stored fields.
func (s SpotifyConfig) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    s.TokenType,
		Expiry:       s.Expiry,
	}
}

// Update copies token fields into the config. A refresh token is only replaced when the new token carries one.
func (s *SpotifyConfig) Update(token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: empty token", ErrInvalidCredentials)
	}

	s.AccessToken = token.AccessToken
	s.TokenType = token.TokenType
	s.Expiry = token.Expiry
	if token.RefreshToken != "" {
		s.RefreshToken = token.RefreshToken
	}
	return nil
}

// YouTubeConfig contains YouTube Music settings.
//
// Publisher selects how playlists are written: "proxy" (default) goes through
// the ytmusicapi proxy, "data_api" uses the YouTube Data API v3.
type YouTubeConfig struct {
	ProxyURL          string  `toml:"proxy_url"`
	AuthFile          string  `toml:"auth_file"`
	Publisher         string  `toml:"publisher"`
	ClientID          string  `toml:"client_id"`
	ClientSecret      string  `toml:"client_secret"`
	RefreshToken      string  `toml:"refresh_token"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// Enabled reports whether the YouTube Music side is configured for seed fetching.
func (y YouTubeConfig) Enabled() bool {
	return y.ProxyURL != "" && y.AuthFile != ""
}

// LastFMConfig contains settings for the Last.fm similarity API.
type LastFMConfig struct {
	APIKey            string  `toml:"api_key"`
	BaseURL           string  `toml:"base_url"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains settings for the local OAuth callback server.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// GeneratorConfig tunes playlist generation.
type GeneratorConfig struct {
	LastN               int      `toml:"last_n"`
	Shuffle             bool     `toml:"shuffle"`
	IncludeOriginals    bool     `toml:"include_originals"`
	Standalone          bool     `toml:"standalone"`
	SearchLimit         int      `toml:"search_limit"`
	DurationWindow      int      `toml:"duration_window"`
	GraphLimit          int      `toml:"graph_limit"`
	CatalogLimit        int      `toml:"catalog_limit"`
	CatalogChunkSize    int      `toml:"catalog_chunk_size"`
	SameArtistMargin    int      `toml:"same_artist_margin"`
	SameTrackMargin     int      `toml:"same_track_margin"`
	PlaylistDescription string   `toml:"playlist_description"`
	BlockedArtists      []string `toml:"blocked_artists"`
	StaleLockMinutes    int      `toml:"stale_lock_minutes"`
}

// StaleLockAfter returns how long an in-progress flag is honoured before it is treated as abandoned.
func (g GeneratorConfig) StaleLockAfter() time.Duration {
	if g.StaleLockMinutes <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(g.StaleLockMinutes) * time.Minute
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file fall back to the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig writes config to path as TOML. The file holds tokens so it is written owner-only.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadEnv reads a dotenv file into the process environment. A missing file is not an error.
func LoadEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides secrets with environment variables when they are set.
func (c *Config) ApplyEnv() {
	for env, dst := range map[string]*string{
		"SPOTIFY_CLIENT_ID":     &c.Credentials.Spotify.ClientID,
		"SPOTIFY_CLIENT_SECRET": &c.Credentials.Spotify.ClientSecret,
		"YOUTUBE_CLIENT_ID":     &c.Credentials.YouTube.ClientID,
		"YOUTUBE_CLIENT_SECRET": &c.Credentials.YouTube.ClientSecret,
		"YTMUSIC_AUTH_FILE":     &c.Credentials.YouTube.AuthFile,
		"LASTFM_API_KEY":        &c.Credentials.LastFM.APIKey,
	} {
		if v, ok := os.LookupEnv(env); ok && v != "" {
			*dst = v
		}
	}
}
