package shared

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

var (
	curlHeaderRe = regexp.MustCompile(`(?:-H|--header)\s+'([^']+)'|(?:-H|--header)\s+"([^"]+)"`)
	curlCookieRe = regexp.MustCompile(`(?:-b|--cookie)\s+'([^']+)'|(?:-b|--cookie)\s+"([^"]+)"`)
)

// BrowserHeaders are the request headers of an authenticated music.youtube.com request,
// as captured by "Copy as cURL" in a browser's network tab.
type BrowserHeaders struct {
	Headers map[string]string
	Cookie  string
}

// ParseCurlFile reads a file holding a copied cURL command.
func ParseCurlFile(path string) (*BrowserHeaders, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read curl file: %w", err)
	}
	return ParseCurlCommand(content)
}

// ParseCurlCommand extracts headers and the cookie from a cURL command.
//
// Header names are lowercased. A cookie passed with -b wins over a Cookie header.
func ParseCurlCommand(data []byte) (*BrowserHeaders, error) {
	cmd := strings.ReplaceAll(string(data), "\\\n", " ")
	cmd = strings.ReplaceAll(cmd, "\\", "")

	h := &BrowserHeaders{Headers: make(map[string]string)}
	for _, match := range curlHeaderRe.FindAllStringSubmatch(cmd, -1) {
		key, value, ok := strings.Cut(firstGroup(match), ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if key == "cookie" {
			if h.Cookie == "" {
				h.Cookie = value
			}
			continue
		}
		h.Headers[key] = value
	}

	if match := curlCookieRe.FindStringSubmatch(cmd); match != nil {
		h.Cookie = firstGroup(match)
	}

	if len(h.Headers) == 0 && h.Cookie == "" {
		return nil, fmt.Errorf("%w: no headers found in curl command", ErrInvalidInput)
	}
	return h, nil
}

func firstGroup(match []string) string {
	if match[1] != "" {
		return match[1]
	}
	return match[2]
}

// BrowserJSON renders the headers in the browser.json layout read by the ytmusicapi proxy.
//
// The proxy cannot authenticate without a cookie, so its absence is an error.
func (h *BrowserHeaders) BrowserJSON() ([]byte, error) {
	if h.Cookie == "" {
		return nil, fmt.Errorf("%w: curl command carries no cookie", ErrMissingCredentials)
	}

	out := make(map[string]string, len(h.Headers)+1)
	for k, v := range h.Headers {
		out[k] = v
	}
	out["cookie"] = h.Cookie

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal browser headers: %w", err)
	}
	return append(data, '\n'), nil
}

// Names returns the captured header names, sorted.
func (h *BrowserHeaders) Names() []string {
	names := make([]string, 0, len(h.Headers))
	for k := range h.Headers {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
