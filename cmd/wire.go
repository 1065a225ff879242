package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/ytmix/internal/models"
	"github.com/desertthunder/ytmix/internal/services"
	"github.com/desertthunder/ytmix/internal/shared"
	"github.com/desertthunder/ytmix/internal/tasks"
	"github.com/desertthunder/ytmix/internal/ui"
	"golang.org/x/oauth2"
)

// publisherDataAPI selects the YouTube Data API for writing YouTube playlists.
const publisherDataAPI = "data_api"

// pipeline returns the generator, wiring it from config on first use.
func (r *Runner) pipeline(ctx context.Context) (ui.Generator, error) {
	if r.generator != nil {
		return r.generator, nil
	}

	gen, err := r.wire(ctx)
	if err != nil {
		return nil, err
	}
	r.generator = gen
	return gen, nil
}

// wire builds every configured service and assembles the generation pipeline around them.
//
// Unconfigured services are skipped with a warning; the generator reports them when they are needed.
func (r *Runner) wire(ctx context.Context) (*tasks.Generator, error) {
	cfg := r.config
	gcfg := cfg.Generator
	logger := r.logger

	store, err := r.openStore()
	if err != nil {
		return nil, err
	}

	var (
		svcs       []services.Service
		publishers = map[models.Platform]services.Publisher{}
		primary    = map[models.Platform]tasks.Recommender{}
		similarity tasks.Recommender
	)

	spotifyCfg := cfg.Credentials.Spotify
	switch {
	case spotifyCfg.ClientID == "" || spotifyCfg.ClientSecret == "":
		logger.Warn("spotify credentials missing, skipping")
	case !spotifyCfg.Authorized():
		logger.Warn("spotify not authorized, run `ytmix auth spotify`")
	default:
		sp, err := services.NewSpotifyService(spotifyCfg,
			services.WithSpotifyLogger(shared.WithLogger(logger, "service", "spotify")),
			services.WithTokenRefresh(func(token *oauth2.Token) {
				if err := r.saveTokens(token); err != nil {
					logger.Warn("failed to persist refreshed spotify token", "error", err)
				}
			}),
		)
		if err != nil {
			return nil, err
		}
		if err := sp.Authenticate(ctx, spotifyCfg.Token()); err != nil {
			return nil, fmt.Errorf("failed to authenticate with spotify: %w", err)
		}
		svcs = append(svcs, sp)
		publishers[models.Spotify] = sp
		primary[models.YouTube] = tasks.NewCatalog(sp, gcfg.CatalogLimit, gcfg.CatalogChunkSize, gcfg.Standalone, logger)
	}

	ytCfg := cfg.Credentials.YouTube
	if ytCfg.Enabled() {
		proxy := services.NewProxyClient(ytCfg.ProxyURL, ytCfg.AuthFile, r.httpClient, ytCfg.RequestsPerSecond)
		yt := services.NewYouTubeService(proxy, shared.WithLogger(logger, "service", "ytmusic"))
		svcs = append(svcs, yt)
		primary[models.Spotify] = tasks.NewGraphWalk(yt, gcfg.GraphLimit, logger)

		if ytCfg.Publisher == publisherDataAPI {
			pub, err := services.NewYouTubeDataPublisher(ctx, ytCfg, shared.WithLogger(logger, "service", "youtube-data"))
			if err != nil {
				return nil, err
			}
			publishers[models.YouTube] = pub
		} else {
			publishers[models.YouTube] = yt
		}
	} else {
		logger.Warn("youtube music proxy_url or auth_file missing, skipping")
	}

	if cfg.Credentials.LastFM.APIKey != "" {
		// Similarity only reads the first same_track_margin+1 results per seed.
		lastfm, err := services.NewLastFMService(cfg.Credentials.LastFM, gcfg.SameTrackMargin+1, shared.WithLogger(logger, "service", "lastfm"))
		if err != nil {
			return nil, err
		}
		similarity = tasks.NewSimilarity(lastfm, gcfg.SameArtistMargin, gcfg.SameTrackMargin, logger)
	} else {
		logger.Warn("last.fm api_key missing, similar tracks disabled")
	}

	resolver := tasks.NewResolver(svcs, tasks.ResolverOptions{
		SearchLimit:    gcfg.SearchLimit,
		DurationWindow: gcfg.DurationWindow,
	}, logger)

	aggregator := tasks.NewAggregator(resolver, tasks.AggregatorConfig{
		Primary:        primary,
		Similarity:     similarity,
		BlockedArtists: gcfg.BlockedArtists,
	}, logger)

	assembler := tasks.NewAssembler(publishers, logger)

	return tasks.NewGenerator(svcs, resolver, aggregator, assembler,
		tasks.WithLock(store),
		tasks.WithRecorder(store),
		tasks.WithDescription(gcfg.PlaylistDescription),
		tasks.WithLogger(logger),
	), nil
}
