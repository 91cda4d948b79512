package share

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Address is the result of parsing a share location string.
type Address struct {
	Host  string
	Port  int
	Share string
	// WebUI marks http(s) URLs, which point at a NAS admin interface rather
	// than an SMB share.
	WebUI bool
}

// ParseShareURL extracts host and share from the location formats admins
// paste in: UNC paths, smb:// URLs, http(s) URLs, or a bare hostname.
func ParseShareURL(raw string) (Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Address{}, fmt.Errorf("empty share location")
	}

	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		parsed, err := url.Parse(trimmed)
		if err != nil {
			return Address{}, fmt.Errorf("parse share url: %w", err)
		}
		port := 80
		if parsed.Scheme == "https" {
			port = 443
		}
		if p := parsed.Port(); p != "" {
			if n, err := strconv.Atoi(p); err == nil {
				port = n
			}
		}
		return Address{Host: parsed.Hostname(), Port: port, WebUI: true}, nil
	}

	if strings.HasPrefix(trimmed, `\\`) {
		rest := strings.TrimPrefix(trimmed, `\\`)
		parts := strings.SplitN(rest, `\`, 3)
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return Address{}, fmt.Errorf("malformed UNC path %q", raw)
		}
		return Address{Host: parts[0], Share: parts[1]}, nil
	}

	if strings.HasPrefix(trimmed, "smb://") {
		rest := strings.TrimPrefix(trimmed, "smb://")
		parts := strings.SplitN(rest, "/", 3)
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return Address{}, fmt.Errorf("malformed smb url %q", raw)
		}
		return Address{Host: parts[0], Share: parts[1]}, nil
	}

	return Address{Host: trimmed}, nil
}
