package gateway

import (
	"crypto/subtle"
	"net/http"
	"os"
	"strings"

	"github.com/soyeahso/switchboard/internal/config"
)

// ResolvedAuth holds the resolved gateway credential.
type ResolvedAuth struct {
	Token string
}

// ResolveAuth resolves the gateway token from config and environment.
// Precedence: config value, then SWITCHBOARD_GATEWAY_TOKEN, then empty
// (which rejects every request).
func ResolveAuth(cfg config.GatewayAuth) ResolvedAuth {
	auth := ResolvedAuth{Token: cfg.Token}
	if auth.Token == "" {
		auth.Token = os.Getenv("SWITCHBOARD_GATEWAY_TOKEN")
	}
	return auth
}

// Authorize checks the request's bearer token against the resolved auth.
// WebSocket clients may pass the token as a query parameter instead, since
// browsers cannot set headers on upgrade requests.
func (a ResolvedAuth) Authorize(r *http.Request) bool {
	if a.Token == "" {
		return false
	}

	presented := ""
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		presented = strings.TrimPrefix(h, "Bearer ")
	} else if q := r.URL.Query().Get("token"); q != "" {
		presented = q
	}
	if presented == "" {
		return false
	}
	return safeEqual(presented, a.Token)
}

// safeEqual performs a constant-time string comparison to prevent timing
// attacks, without an early return on length mismatch.
func safeEqual(a, b string) bool {
	lenMatch := subtle.ConstantTimeEq(int32(len(a)), int32(len(b)))
	cmp := subtle.ConstantTimeCompare([]byte(a), []byte(b))
	return subtle.ConstantTimeSelect(lenMatch, cmp, 0) == 1
}
