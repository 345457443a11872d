package form

import (
	"fmt"
	"net/url"
	"strings"
)

// Resolve derives the provider tag and stable form identifier from a form
// URL. It is deterministic and total: every URL either resolves or returns
// ErrUnresolved.
func Resolve(rawURL string) (provider, formID string, err error) {
	parsed, parseErr := url.Parse(strings.TrimSpace(rawURL))
	if parseErr != nil {
		return "", "", fmt.Errorf("%w: %q", ErrUnresolved, rawURL)
	}

	host := strings.ToLower(parsed.Hostname())
	switch {
	case host == "forms.office.com":
		id := parsed.Query().Get("id")
		if id == "" {
			return "", "", fmt.Errorf("%w: missing id parameter in %q", ErrUnresolved, rawURL)
		}
		return ProviderMicrosoft, id, nil

	case host == "docs.google.com" && strings.HasPrefix(parsed.Path, "/forms"):
		id := googleFormID(parsed.Path)
		if id == "" {
			return "", "", fmt.Errorf("%w: missing form id in %q", ErrUnresolved, rawURL)
		}
		return ProviderGoogle, id, nil
	}

	return "", "", fmt.Errorf("%w: %q", ErrUnresolved, rawURL)
}

// googleFormID extracts the path segment following /e/, which Google keeps
// stable across a published form's lifetime.
func googleFormID(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, segment := range segments {
		if segment == "e" && i+1 < len(segments) {
			return segments[i+1]
		}
	}
	return ""
}
