package prober

import (
	"net/url"
	"strings"
)

// trackingParams are query parameters stripped from listen URLs before they
// are probed or used as the catalog identity key.
var trackingParams = []string{
	"ref", "source", "fbclid", "gclid", "mc_cid", "mc_eid", "igshid",
}

// NormalizeURL canonicalizes a candidate stream URL: tracking query
// parameters are stripped, a trailing bare "?" is removed, default ports are
// collapsed, and plain http is upgraded to https. The engine always probes
// the secure variant; a TLS failure is recorded as offline rather than
// retried over plaintext. The function is total and returns its input
// (trimmed) when the URL cannot be parsed.
func NormalizeURL(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, "?")

	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return s
	}
	u.ForceQuery = false

	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			if isTrackingParam(key) {
				q.Del(key)
			}
		}
		u.RawQuery = q.Encode()
	}

	if p := u.Port(); p == "80" || p == "443" {
		u.Host = u.Hostname()
	}
	if u.Scheme == "http" {
		u.Scheme = "https"
	}

	return u.String()
}

func isTrackingParam(key string) bool {
	lower := strings.ToLower(key)
	if strings.HasPrefix(lower, "utm_") {
		return true
	}
	for _, p := range trackingParams {
		if lower == p {
			return true
		}
	}
	return false
}

// validProbeURL reports whether raw parses as an absolute http, https, or ftp
// URL. Anything else is rejected before a network call is made.
func validProbeURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	switch u.Scheme {
	case "http", "https", "ftp":
		return true
	}
	return false
}
