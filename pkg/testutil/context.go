package testutil

import (
	"net/http"

	"cscexplorer/pkg/requestcontext"
)

// SessionHeader is the header carrying the explorer session id.
const SessionHeader = "X-Session-ID"

// WithSession sets the session header and the session id in the request context,
// the state the session middleware produces.
func WithSession(req *http.Request, sessionID string) *http.Request {
	req.Header.Set(SessionHeader, sessionID)
	ctx := requestcontext.WithSessionID(req.Context(), sessionID)
	return req.WithContext(ctx)
}
