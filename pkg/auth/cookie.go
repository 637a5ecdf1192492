package auth

import (
	"crypto/sha256"
	"net/http"

	"github.com/gorilla/sessions"
)

// ReplayStore is the cookie-based session store for the invite-accept flow.
// When an invitation link is opened without a session, the handler parks the
// invite token here, redirects to authentication, and replays the token once
// the user is logged in.
var ReplayStore *sessions.CookieStore

// ReplaySessionName is the name of the invite-replay cookie.
const ReplaySessionName = "invite-replay"

// Replay session value keys.
const (
	ReplayKeyInviteToken = "invite_token"
	ReplayKeyReturnURL   = "return_url"
)

// InitReplayStore initializes the cookie store for the invite-replay flow.
//
// The secret can be any passphrase - it is SHA-256 hashed to derive a
// 32-byte signing key. It must be consistent across server restarts and
// replicas. The session has a short TTL since it only needs to survive the
// authentication redirect.
func InitReplayStore(secret string, secure bool) {
	key := sha256.Sum256([]byte(secret))

	ReplayStore = sessions.NewCookieStore(key[:])
	ReplayStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   900, // 15 minutes (authentication redirect duration)
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// GetReplaySession retrieves the invite-replay session from the request.
// Creates a new session if one doesn't exist.
func GetReplaySession(r *http.Request) (*sessions.Session, error) {
	return ReplayStore.Get(r, ReplaySessionName)
}

// ClearReplayValues removes the parked invite token after a successful
// accept.
func ClearReplayValues(session *sessions.Session) {
	delete(session.Values, ReplayKeyInviteToken)
	delete(session.Values, ReplayKeyReturnURL)
}
