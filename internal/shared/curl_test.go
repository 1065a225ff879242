package shared

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestParseCurlCommand(t *testing.T) {
	tt := []struct {
		name        string
		curlCmd     string
		wantHeaders map[string]string
		wantCookie  string
		wantErr     bool
	}{
		{
			name:        "single quoted header",
			curlCmd:     `curl -H 'Authorization: SAPISIDHASH abc' https://music.youtube.com`,
			wantHeaders: map[string]string{"authorization": "SAPISIDHASH abc"},
		},
		{
			name:        "double quoted long flag",
			curlCmd:     `curl --header "X-Goog-AuthUser: 0" https://music.youtube.com`,
			wantHeaders: map[string]string{"x-goog-authuser": "0"},
		},
		{
			name:        "cookie header is split out",
			curlCmd:     `curl -H 'Cookie: SID=1; HSID=2' -H 'User-Agent: test' https://music.youtube.com`,
			wantHeaders: map[string]string{"user-agent": "test"},
			wantCookie:  "SID=1; HSID=2",
		},
		{
			name:        "-b cookie takes precedence over header",
			curlCmd:     `curl -H 'Cookie: old=value' -b 'new=value' https://music.youtube.com`,
			wantHeaders: map[string]string{},
			wantCookie:  "new=value",
		},
		{
			name: "multiline browser copy",
			curlCmd: `curl 'https://music.youtube.com/youtubei/v1/browse' \
  -H 'accept: */*' \
  -H 'authorization: SAPISIDHASH token_here' \
  -H 'cookie: VISITOR_INFO=xyz; CONSENT=YES' \
  --data-raw '{"context":{}}'`,
			wantHeaders: map[string]string{
				"accept":        "*/*",
				"authorization": "SAPISIDHASH token_here",
			},
			wantCookie: "VISITOR_INFO=xyz; CONSENT=YES",
		},
		{
			name:    "no headers or cookies",
			curlCmd: `curl https://music.youtube.com`,
			wantErr: true,
		},
		{
			name:    "empty command",
			wantErr: true,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseCurlCommand([]byte(tc.curlCmd))
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Errorf("expected ErrInvalidInput, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if !reflect.DeepEqual(got.Headers, tc.wantHeaders) {
				t.Errorf("headers = %v, want %v", got.Headers, tc.wantHeaders)
			}
			if got.Cookie != tc.wantCookie {
				t.Errorf("cookie = %q, want %q", got.Cookie, tc.wantCookie)
			}
		})
	}
}

func TestParseCurlFile(t *testing.T) {
	t.Run("reads the file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "curl.sh")
		if err := os.WriteFile(path, []byte(`curl -H 'Accept: */*' -b 'SID=1'`), 0644); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}

		got, err := ParseCurlFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Headers["accept"] != "*/*" || got.Cookie != "SID=1" {
			t.Errorf("unexpected result %+v", got)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := ParseCurlFile(filepath.Join(t.TempDir(), "nope.sh")); err == nil {
			t.Error("expected error for missing file")
		}
	})
}

func TestBrowserHeaders(t *testing.T) {
	t.Run("BrowserJSON includes cookie", func(t *testing.T) {
		h := &BrowserHeaders{
			Headers: map[string]string{"authorization": "SAPISIDHASH x", "x-goog-authuser": "0"},
			Cookie:  "SID=1",
		}

		data, err := h.BrowserJSON()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var decoded map[string]string
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		want := map[string]string{"authorization": "SAPISIDHASH x", "x-goog-authuser": "0", "cookie": "SID=1"}
		if !reflect.DeepEqual(decoded, want) {
			t.Errorf("got %v, want %v", decoded, want)
		}
		if _, ok := h.Headers["cookie"]; ok {
			t.Error("expected receiver headers to be left untouched")
		}
	})

	t.Run("BrowserJSON without cookie", func(t *testing.T) {
		h := &BrowserHeaders{Headers: map[string]string{"accept": "*/*"}}
		if _, err := h.BrowserJSON(); !errors.Is(err, ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("Names are sorted", func(t *testing.T) {
		h := &BrowserHeaders{Headers: map[string]string{"b": "2", "a": "1", "c": "3"}}
		if got := h.Names(); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
			t.Errorf("got %v", got)
		}
	})
}
