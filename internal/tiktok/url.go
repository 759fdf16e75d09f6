package tiktok

import (
	"fmt"
	"net/url"
	"strings"
)

// ParseLiveURL extracts the username from a live page URL such as
// https://www.tiktok.com/@user/live.
func ParseLiveURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parsing live url: %w", err)
	}
	if !strings.HasSuffix(u.Hostname(), "tiktok.com") {
		return "", fmt.Errorf("not a tiktok url: %q", raw)
	}
	for _, seg := range strings.Split(u.Path, "/") {
		if strings.HasPrefix(seg, "@") && len(seg) > 1 {
			return strings.TrimPrefix(seg, "@"), nil
		}
	}
	return "", fmt.Errorf("no @user in live url %q", raw)
}
