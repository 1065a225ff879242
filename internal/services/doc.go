// Package services implements the streaming and similarity clients used by playlist generation.
//
// # Service Interface
//
// Every streaming platform implements [Service]: it can list the listener's recent tracks,
// search its catalog and publish playlists through the embedded [Publisher].
// Platform-specific recommendation sources are expressed as small interfaces:
//   - [CatalogRecommender] : Spotify recommendations endpoint
//   - [Continuer] : YouTube Music watch playlist ("up next")
//   - [SimilarityClient] : Last.fm track.getsimilar
//
// # Spotify Implementation
//
// [SpotifyService] wraps github.com/zmb3/spotify/v2. Tokens come from config and are
// refreshed by an [oauth2.TokenSource]; refreshed tokens are handed to a callback so
// the CLI can persist them.
//
// # YouTube Music Implementation
//
// [YouTubeService] communicates with the FastAPI proxy server wrapping ytmusicapi
// through [ProxyClient]. The auth_file path is sent via X-Auth-File header on each request.
//
// [YouTubeDataPublisher] is an alternative [Publisher] backed by the YouTube Data API v3
// for accounts that publish through OAuth rather than browser headers.
//
// # Last.fm
//
// [LastFMService] calls track.getsimilar over plain HTTP with a short timeout and a
// client-side rate limit. Last.fm durations are not trusted.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrNotAuthenticated] : no token or auth file configured
//   - [shared.ErrTokenExpired] : OAuth token rejected, reauthorization needed
//   - [shared.ErrAPIRequest] : HTTP request failed
//   - [shared.ErrMissingCredentials] : API key or client credentials missing
//
// # Payload Mapping
//
// Every payload is converted to [models.Track]. A parser sets the identity of the
// platform it read from and marks the other platform absent.
package services
