package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/ytmix/internal/server"
	"github.com/desertthunder/ytmix/internal/services"
	"github.com/desertthunder/ytmix/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const oauthTimeout = 2 * time.Minute

func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authorize ytmix with streaming services",
		Commands: []*cli.Command{
			{
				Name:   "spotify",
				Usage:  "Authorize Spotify using OAuth2",
				Action: r.AuthSpotify,
			},
			{
				Name:   "youtube",
				Usage:  "Authorize the YouTube Data API publisher using OAuth2",
				Action: r.AuthYouTube,
			},
			{
				Name:  "status",
				Usage: "Show which services are ready",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Output as JSON"},
				},
				Action: r.AuthStatus,
			},
		},
	}
}

// AuthSpotify runs the authorization code flow and stores the token in the config.
func (r *Runner) AuthSpotify(ctx context.Context, cmd *cli.Command) error {
	sp, err := services.NewSpotifyService(r.config.Credentials.Spotify, services.WithSpotifyLogger(r.logger))
	if err != nil {
		return err
	}

	state, err := shared.GenerateState()
	if err != nil {
		return fmt.Errorf("failed to generate state token: %w", err)
	}

	token, err := r.doOAuth(ctx, sp.OAuthConfig(), sp.AuthURL(state), state, "Spotify")
	if err != nil {
		return err
	}

	if err := r.saveTokens(token); err != nil {
		return err
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Tokens saved to %s\n", r.configPath)
	return nil
}

// AuthYouTube obtains a refresh token for the Data API publisher.
func (r *Runner) AuthYouTube(ctx context.Context, cmd *cli.Command) error {
	ytCfg := r.config.Credentials.YouTube
	if ytCfg.ClientID == "" || ytCfg.ClientSecret == "" {
		return fmt.Errorf("%w: youtube client_id and client_secret must be set", shared.ErrMissingCredentials)
	}

	state, err := shared.GenerateState()
	if err != nil {
		return fmt.Errorf("failed to generate state token: %w", err)
	}

	conf := services.YouTubeOAuthConfig(ytCfg, r.callbackURL())
	authURL := conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	token, err := r.doOAuth(ctx, conf, authURL, state, "YouTube")
	if err != nil {
		return err
	}
	if token.RefreshToken == "" {
		return fmt.Errorf("%w: google did not return a refresh token", shared.ErrAuthFailed)
	}

	r.config.Credentials.YouTube.RefreshToken = token.RefreshToken
	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("Set credentials.youtube.publisher = \"%s\" to publish through the Data API\n", publisherDataAPI)
	return nil
}

// serviceStatus is the readiness report printed by auth status.
type serviceStatus struct {
	SpotifyAuthorized bool   `json:"spotify_authorized"`
	LastFMConfigured  bool   `json:"lastfm_configured"`
	DataAPIAuthorized bool   `json:"data_api_authorized"`
	ProxyConfigured   bool   `json:"proxy_configured"`
	ProxyStatus       string `json:"proxy_status,omitempty"`
	ProxyAuthorized   bool   `json:"proxy_authenticated"`
	ProxyError        string `json:"proxy_error,omitempty"`
}

// AuthStatus reports credential presence and the proxy's health.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	creds := r.config.Credentials
	status := serviceStatus{
		SpotifyAuthorized: creds.Spotify.Authorized(),
		LastFMConfigured:  creds.LastFM.APIKey != "",
		DataAPIAuthorized: creds.YouTube.RefreshToken != "",
		ProxyConfigured:   creds.YouTube.Enabled(),
	}

	if status.ProxyConfigured {
		proxy := services.NewProxyClient(creds.YouTube.ProxyURL, creds.YouTube.AuthFile, r.httpClient, 0)
		health, authenticated, err := proxy.Health(ctx)
		if err != nil {
			status.ProxyError = err.Error()
		} else {
			status.ProxyStatus = health
			status.ProxyAuthorized = authenticated
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, true)
	}

	mark := func(ok bool) string {
		if ok {
			return "✓"
		}
		return "✗"
	}

	r.writePlain("%s Spotify authorized\n", mark(status.SpotifyAuthorized))
	r.writePlain("%s Last.fm api key\n", mark(status.LastFMConfigured))
	r.writePlain("%s YouTube Data API refresh token\n", mark(status.DataAPIAuthorized))
	switch {
	case !status.ProxyConfigured:
		r.writePlain("✗ YouTube Music proxy not configured\n")
	case status.ProxyError != "":
		r.writePlain("✗ YouTube Music proxy unreachable: %s\n", status.ProxyError)
	default:
		r.writePlain("%s YouTube Music proxy %s\n", mark(status.ProxyAuthorized), status.ProxyStatus)
	}
	return nil
}

func (r *Runner) callbackURL() string {
	return fmt.Sprintf("http://%s:%d%s", r.config.Server.Host, r.config.Server.Port, server.CallbackPath)
}

// doOAuth serves the local callback, opens the browser at authURL and waits for the token.
func (r *Runner) doOAuth(ctx context.Context, conf *oauth2.Config, authURL, state, service string) (*oauth2.Token, error) {
	handler := server.NewOAuthHandler(conf, state)
	addr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	srv := server.NewCallbackServer(addr, handler, r.logger)

	go func() {
		select {
		case <-srv.Ready():
		case <-ctx.Done():
			return
		}
		r.writePlain("→ Opening browser for %s authorization...\n", service)
		if err := shared.OpenBrowser(authURL); err != nil {
			r.logger.Warnf("failed to open browser automatically %v", err)
			r.writePlainln("⚠ Could not open browser automatically.")
			r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
		}
		r.writePlain("→ Waiting for authorization (%v timeout)...\n", oauthTimeout)
	}()

	return srv.Wait(ctx, oauthTimeout)
}
