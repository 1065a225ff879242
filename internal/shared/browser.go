package shared

import (
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// OpenBrowser starts the user's browser on an http(s) authorization URL and returns without waiting.
//
// $BROWSER, when set, names the command to run; otherwise the platform opener is used.
func OpenBrowser(rawURL string) error {
	name, args, err := browserCommand(runtime.GOOS, os.Getenv("BROWSER"), rawURL)
	if err != nil {
		return err
	}

	if err := exec.Command(name, args...).Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}

// browserCommand picks the command line that opens rawURL on goos.
//
// On Windows the URL goes through rundll32 because `cmd /c start` splits on the
// '&' separating OAuth query parameters.
func browserCommand(goos, override, rawURL string) (string, []string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", nil, fmt.Errorf("%w: refusing to open %q", ErrInvalidArgument, rawURL)
	}

	if fields := strings.Fields(override); len(fields) > 0 {
		return fields[0], append(fields[1:], rawURL), nil
	}

	switch goos {
	case "darwin":
		return "open", []string{rawURL}, nil
	case "linux", "freebsd", "openbsd", "netbsd":
		return "xdg-open", []string{rawURL}, nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", rawURL}, nil
	default:
		return "", nil, fmt.Errorf("unsupported platform: %s", goos)
	}
}
