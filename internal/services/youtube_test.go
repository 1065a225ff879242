package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/ytmix/internal/models"
	"github.com/desertthunder/ytmix/internal/shared"
)

func newTestYouTube(t *testing.T, handler http.HandlerFunc) *YouTubeService {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	proxy := NewProxyClient(server.URL, "/path/to/browser.json", server.Client(), 0)
	return NewYouTubeService(proxy, shared.NewLogger(io.Discard))
}

func TestYouTubeService(t *testing.T) {
	t.Run("Name", func(t *testing.T) {
		svc := NewYouTubeService(NewProxyClient("", "", nil, 0), nil)
		if svc.Name() != "YouTube Music" {
			t.Errorf("expected name to be 'YouTube Music', got %s", svc.Name())
		}
		if svc.Platform() != models.YouTube {
			t.Errorf("expected platform youtube, got %s", svc.Platform())
		}
		if svc.BatchSize() != 0 {
			t.Errorf("expected unlimited batch size, got %d", svc.BatchSize())
		}
	})

	t.Run("SearchTracks", func(t *testing.T) {
		svc := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/search" {
				t.Errorf("expected path /api/search, got %s", r.URL.Path)
			}
			q := r.URL.Query()
			if q.Get("q") != "Daft Punk One More Time" || q.Get("filter") != "songs" || q.Get("limit") != "2" {
				t.Errorf("unexpected query %v", q)
			}

			json.NewEncoder(w).Encode([]map[string]any{
				{
					"videoId":          "vid1",
					"title":            "One More Time",
					"artists":          []map[string]string{{"name": "Daft Punk", "id": "UC1"}},
					"duration_seconds": 320,
					"isExplicit":       false,
				},
				{"videoId": "vid2", "title": "No Artists", "artists": []map[string]string{}},
				{"videoId": "vid3", "title": "Extra", "artists": []map[string]string{{"name": "X"}}, "duration": "4:00"},
			})
		})

		tracks, err := svc.SearchTracks(context.Background(), "Daft Punk One More Time", 2)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(tracks) != 1 {
			t.Fatalf("expected 1 track after truncation and filtering, got %d", len(tracks))
		}

		track := tracks[0]
		if track.TrackID(models.YouTube) != "vid1" || track.Duration != 320 {
			t.Errorf("unexpected track %+v", track)
		}
		if track.Spotify.State != models.IdentityAbsent {
			t.Errorf("expected spotify identity absent, got %v", track.Spotify.State)
		}
	})

	t.Run("SeedTracks uses largest playlist", func(t *testing.T) {
		svc := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/api/library/playlists":
				json.NewEncoder(w).Encode([]map[string]any{
					{"playlistId": "small", "title": "Small", "count": 3},
					{"playlistId": "big", "title": "Big", "count": "1,204"},
					{"playlistId": "mid", "title": "Mid", "count": 40},
				})
			case "/api/playlists/big":
				if r.URL.Query().Get("limit") != "2" {
					t.Errorf("expected limit=2, got %s", r.URL.Query().Get("limit"))
				}
				json.NewEncoder(w).Encode(map[string]any{
					"tracks": []map[string]any{
						{"videoId": "a", "title": "A", "artists": []map[string]string{{"name": "Artist"}}, "duration": "3:05"},
						{"videoId": "b", "title": "B", "artists": []map[string]string{{"name": "Artist"}}},
						{"videoId": "c", "title": "C", "artists": []map[string]string{{"name": "Artist"}}},
					},
				})
			default:
				t.Errorf("unexpected path %s", r.URL.Path)
				w.WriteHeader(http.StatusNotFound)
			}
		})

		tracks, err := svc.SeedTracks(context.Background(), 2)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(tracks) != 2 {
			t.Fatalf("expected 2 tracks, got %d", len(tracks))
		}
		if tracks[0].Duration != 185 {
			t.Errorf("expected duration parsed from clock string, got %d", tracks[0].Duration)
		}
		if tracks[1].HasDuration() {
			t.Errorf("expected unknown duration, got %d", tracks[1].Duration)
		}
	})

	t.Run("SeedTracks without playlists", func(t *testing.T) {
		svc := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("[]"))
		})

		if _, err := svc.SeedTracks(context.Background(), 5); !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", err)
		}
	})

	t.Run("Continuation", func(t *testing.T) {
		svc := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/watch" || r.URL.Query().Get("videoId") != "seed" {
				t.Errorf("unexpected request %s", r.URL)
			}
			json.NewEncoder(w).Encode(map[string]any{
				"tracks": []map[string]any{
					{"videoId": "seed", "title": "Seed", "artists": []map[string]string{{"name": "A"}}, "length": "3:00"},
					{"videoId": "next", "title": "Next", "artists": []map[string]string{{"name": "B"}}, "length": "1:02:03"},
				},
			})
		})

		tracks, err := svc.Continuation(context.Background(), "seed")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(tracks) != 2 || tracks[0].TrackID(models.YouTube) != "seed" {
			t.Fatalf("unexpected continuation %v", tracks)
		}
		// 1:02:03 is 3723 seconds, which the over-1000 rule reads as milliseconds.
		if tracks[1].Duration != 4 {
			t.Errorf("expected hour-long clock to be misread as 4 seconds, got %d", tracks[1].Duration)
		}
	})

	t.Run("CreatePlaylist", func(t *testing.T) {
		svc := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/api/playlists" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}

			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			if body["title"] != "Mix" || body["privacy_status"] != "PRIVATE" {
				t.Errorf("unexpected body %v", body)
			}
			json.NewEncoder(w).Encode(map[string]string{"playlist_id": "PL123"})
		})

		pl, err := svc.CreatePlaylist(context.Background(), "Mix", "desc")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if pl.ID != "PL123" || pl.URL != "https://music.youtube.com/playlist?list=PL123" {
			t.Errorf("unexpected playlist %+v", pl)
		}
	})

	t.Run("CreatePlaylist without id", func(t *testing.T) {
		svc := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("{}"))
		})

		if _, err := svc.CreatePlaylist(context.Background(), "Mix", ""); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})

	t.Run("AddItems", func(t *testing.T) {
		var got []string
		svc := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/playlists/PL123/items" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			var body struct {
				VideoIDs []string `json:"video_ids"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			got = body.VideoIDs
			w.Write([]byte(`{"status":"ok"}`))
		})

		if err := svc.AddItems(context.Background(), "PL123", []string{"a", "b", "c"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(got) != 3 {
			t.Errorf("expected 3 video ids, got %v", got)
		}

		if err := svc.AddItems(context.Background(), "PL123", nil); err != nil {
			t.Errorf("expected empty add to be a no-op, got %v", err)
		}
	})

	t.Run("Proxy error detail", func(t *testing.T) {
		svc := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":"auth file expired"}`))
		})

		_, err := svc.SearchTracks(context.Background(), "q", 5)
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Fatalf("expected ErrNotAuthenticated, got %v", err)
		}

		var proxyErr *ProxyError
		if !errors.As(err, &proxyErr) || proxyErr.Detail != "auth file expired" {
			t.Errorf("expected proxy error detail, got %v", err)
		}
	})
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"3:45", 225},
		{"0:07", 7},
		{"1:00:00", 3600},
		{"abc", 0},
		{"3:xx", 0},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := parseClock(tt.in); got != tt.want {
				t.Errorf("parseClock(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestYouTubePlaylistTrackCount(t *testing.T) {
	tests := []struct {
		name  string
		count any
		want  int
	}{
		{"number", float64(12), 12},
		{"string", "1,234", 1234},
		{"missing", nil, 0},
		{"garbage", "lots", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := YouTubePlaylist{Count: tt.count}
			if got := p.TrackCount(); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}
