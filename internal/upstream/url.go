package upstream

import (
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
)

// defaultToken is substituted when a configured gateway URL has no token
// query parameter at all.
const defaultToken = "your-secret-token"

// NormalizeGatewayURL rewrites a configured gateway URL into the
// ws(s)://host:port/api?token=... form the gateway expects, warning (not
// failing) when a rewrite was necessary so a misconfigured URL still
// connects.
func NormalizeGatewayURL(raw string) (string, error) {
	target := raw
	rewrote := false
	if !strings.Contains(target, "://") {
		// a bare host:port would otherwise parse with the host as its scheme
		target = "ws://" + target
		rewrote = true
	}
	u, err := url.Parse(target)
	if err != nil {
		return "", err
	}

	if u.Scheme != "ws" && u.Scheme != "wss" {
		u.Scheme = "ws"
		rewrote = true
	}
	if !strings.HasSuffix(u.Path, "/api") {
		u.Path = strings.TrimSuffix(u.Path, "/") + "/api"
		rewrote = true
	}
	q := u.Query()
	if q.Get("token") == "" {
		q.Set("token", defaultToken)
		u.RawQuery = q.Encode()
		rewrote = true
	}

	if rewrote {
		log.Warn().Str("original", raw).Str("normalized", u.String()).
			Msg("gateway URL missing /api or token, rewrote with defaults")
	}
	return u.String(), nil
}
