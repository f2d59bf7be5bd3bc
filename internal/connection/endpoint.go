package connection

import (
	"fmt"
	"net/url"
	"strings"
)

// BuildURL derives the chat socket URL from the HTTP API base URL:
// ws(s)://<host>/ws/chat/{conversationID}/{userID}. https maps to wss.
func BuildURL(baseURL, conversationID, userID string) (string, error) {
	if strings.TrimSpace(conversationID) == "" || strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("%w: conversation and user ids are required", ErrInvalidTarget)
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}

	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidTarget, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: base url %q has no host", ErrInvalidTarget, baseURL)
	}

	u.Path = "/ws/chat/" + conversationID + "/" + userID
	u.RawPath = "/ws/chat/" + url.PathEscape(conversationID) + "/" + url.PathEscape(userID)
	u.RawQuery = ""
	u.Fragment = ""
	u.User = nil

	return u.String(), nil
}
