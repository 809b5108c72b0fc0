package auth

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// OpenBrowser opens rawURL with the platform's default handler.
func OpenBrowser(rawURL string) error {
	target := strings.TrimSpace(rawURL)
	if target == "" {
		return fmt.Errorf("empty URL")
	}

	var candidates [][]string
	switch runtime.GOOS {
	case "darwin":
		candidates = [][]string{{"open"}}
	case "windows":
		candidates = [][]string{{"rundll32", "url.dll,FileProtocolHandler"}}
	default:
		candidates = [][]string{{"xdg-open"}, {"sensible-browser"}, {"open"}}
	}

	for _, candidate := range candidates {
		bin, err := exec.LookPath(candidate[0])
		if err != nil || strings.TrimSpace(bin) == "" {
			continue
		}
		args := append(append([]string(nil), candidate[1:]...), target)
		return exec.Command(bin, args...).Start()
	}
	return fmt.Errorf("no opener command found")
}
