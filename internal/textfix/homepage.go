package textfix

import (
	"net"
	"strings"
)

// compoundSuffixes are public suffixes made of two labels. Without them the
// domain/extension split would cut "bbc.co.uk" into domain "co".
var compoundSuffixes = map[string]bool{
	"co.uk": true, "org.uk": true, "ac.uk": true, "gov.uk": true, "me.uk": true,
	"com.au": true, "net.au": true, "org.au": true,
	"co.nz": true, "net.nz": true, "org.nz": true,
	"co.jp": true, "ne.jp": true, "or.jp": true,
	"com.br": true, "com.mx": true, "com.ar": true,
	"co.za": true, "co.in": true, "co.kr": true,
	"com.tr": true, "com.cn": true, "com.tw": true, "com.ua": true,
}

// sentinel non-values submitted instead of a real homepage.
var homepageSentinels = map[string]bool{
	"": true, "unknown": true, "none": true, "n/a": true, "-": true,
	"http://": true, "https://": true, "http": true, "https": true,
}

// parsedURL holds the pieces RebuildHomepage extracts before reassembly.
type parsedURL struct {
	protocol  string
	subdomain string
	domain    string
	ext       string
	ip        string
	port      string
	path      string
	query     string
	hash      string
}

// RebuildHomepage turns a possibly malformed homepage string into a canonical
// absolute URL. It returns false when no usable domain or IP address could be
// extracted. Reconstruction is idempotent: a URL that round-trips once is
// returned unchanged by further calls.
func RebuildHomepage(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if homepageSentinels[strings.ToLower(s)] {
		return "", false
	}

	p, ok := splitHomepage(s)
	if !ok {
		return "", false
	}
	if p.ip == "" && (p.domain == "" || p.ext == "") {
		return "", false
	}

	var b strings.Builder
	b.WriteString(p.protocol)
	b.WriteString("://")
	if p.ip != "" {
		b.WriteString(p.ip)
	} else {
		if p.subdomain != "" {
			b.WriteString(p.subdomain)
			b.WriteByte('.')
		}
		b.WriteString(p.domain)
		b.WriteByte('.')
		b.WriteString(p.ext)
	}
	if p.port != "" {
		b.WriteByte(':')
		b.WriteString(p.port)
	}
	if p.path != "" && p.path != "/" {
		b.WriteString(p.path)
	}
	if p.query != "" {
		b.WriteByte('?')
		b.WriteString(p.query)
	}
	if p.hash != "" {
		b.WriteByte('#')
		b.WriteString(p.hash)
	}
	return b.String(), true
}

func splitHomepage(s string) (parsedURL, bool) {
	var p parsedURL

	p.protocol = "https"
	if i := strings.Index(s, "://"); i >= 0 {
		proto := strings.ToLower(s[:i])
		if proto != "http" && proto != "https" {
			return p, false
		}
		p.protocol = proto
		s = s[i+3:]
	} else {
		s = strings.TrimPrefix(s, "//")
	}
	if s == "" {
		return p, false
	}

	if i := strings.IndexByte(s, '#'); i >= 0 {
		p.hash = s[i+1:]
		s = s[:i]
	}
	if i := strings.IndexByte(s, '?'); i >= 0 {
		p.query = s[i+1:]
		s = s[:i]
	}
	if i := strings.IndexByte(s, '/'); i >= 0 {
		p.path = s[i:]
		s = s[:i]
	}

	host := strings.ToLower(s)
	// Strip credentials some submissions carry.
	if i := strings.LastIndexByte(host, '@'); i >= 0 {
		host = host[i+1:]
	}
	if i := strings.IndexByte(host, ':'); i >= 0 {
		port := host[i+1:]
		host = host[:i]
		if !validPort(port) {
			return p, false
		}
		if !defaultPort(p.protocol, port) {
			p.port = port
		}
	}
	if host == "" || host == "localhost" {
		return p, false
	}

	if ip := net.ParseIP(host); ip != nil && ip.To4() != nil {
		// IPv4 literals have no subdomain/extension split.
		p.ip = host
		return p, true
	}

	labels := strings.Split(host, ".")
	for _, l := range labels {
		if l == "" {
			return p, false
		}
	}
	if len(labels) < 2 {
		return p, false
	}

	ext := labels[len(labels)-1]
	rest := labels[:len(labels)-1]
	if len(labels) >= 3 {
		if compound := labels[len(labels)-2] + "." + ext; compoundSuffixes[compound] {
			ext = compound
			rest = labels[:len(labels)-2]
		}
	}
	if !alphaLabel(ext[strings.LastIndexByte(ext, '.')+1:]) {
		return p, false
	}

	p.ext = ext
	p.domain = rest[len(rest)-1]
	if len(rest) > 1 {
		p.subdomain = strings.Join(rest[:len(rest)-1], ".")
	}
	return p, true
}

func validPort(port string) bool {
	if port == "" || len(port) > 5 {
		return false
	}
	for i := 0; i < len(port); i++ {
		if port[i] < '0' || port[i] > '9' {
			return false
		}
	}
	return true
}

func defaultPort(protocol, port string) bool {
	return (protocol == "http" && port == "80") || (protocol == "https" && port == "443")
}

func alphaLabel(s string) bool {
	if len(s) < 2 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 'a' || s[i] > 'z' {
			return false
		}
	}
	return true
}
