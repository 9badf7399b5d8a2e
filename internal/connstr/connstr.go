// Package connstr classifies MongoDB connection strings and renders them safe
// for display. Nothing here performs I/O.
package connstr

import (
	"net"
	"strings"
)

type Format string

const (
	FormatSRV      Format = "service-discovery"
	FormatStandard Format = "address-literal"
	FormatUnknown  Format = "unrecognized"
)

const (
	SchemeSRV      = "mongodb+srv://"
	SchemeStandard = "mongodb://"
)

// Redacted replaces every secret in a displayed connection string.
const Redacted = "****"

const (
	guidanceSRV = "Service-discovery form resolves its hosts through DNS SRV/TXT records at connect time. " +
		"If those lookups fail on this network, switch to the fallback address-literal (mongodb://) string that lists the hosts directly."
	guidanceStandard = "Address-literal form lists the hosts directly and needs no SRV lookup; it should work as long as the hosts are reachable."
	guidanceUnknown  = "Unrecognized format: a MongoDB connection string must start with mongodb:// or mongodb+srv://."
)

func (f Format) Label() string {
	switch f {
	case FormatSRV:
		return "service-discovery form (mongodb+srv://)"
	case FormatStandard:
		return "address-literal form (mongodb://)"
	default:
		return "unrecognized format"
	}
}

type Classification struct {
	Format   Format `json:"format"`
	Masked   string `json:"masked"`
	Guidance string `json:"guidance"`
}

// Classify determines the format of s by its scheme prefix and attaches the
// masked display string and canned guidance.
func Classify(s string) Classification {
	f := Detect(s)
	c := Classification{Format: f, Masked: Mask(s)}
	switch f {
	case FormatSRV:
		c.Guidance = guidanceSRV
	case FormatStandard:
		c.Guidance = guidanceStandard
	default:
		c.Guidance = guidanceUnknown
	}
	return c
}

func Detect(s string) Format {
	lower := strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.HasPrefix(lower, SchemeSRV):
		return FormatSRV
	case strings.HasPrefix(lower, SchemeStandard):
		return FormatStandard
	default:
		return FormatUnknown
	}
}

// Mask replaces the password in the authority component and the values of
// password-like query parameters with Redacted. The username is kept.
func Mask(s string) string {
	if s == "" {
		return s
	}
	scheme, rest := splitScheme(s)
	if at := maskedUserinfoEnd(rest); at >= 0 {
		user, _, hasPass := strings.Cut(rest[:at], ":")
		if hasPass {
			user += ":" + Redacted
		}
		rest = user + rest[at:]
	}
	return scheme + maskQuery(rest)
}

// Scrub removes the raw connection string and its password from text such as
// a driver error message.
func Scrub(text, uri string) string {
	if text == "" || uri == "" {
		return text
	}
	text = strings.ReplaceAll(text, uri, Mask(uri))
	if pw := password(uri); pw != "" {
		text = strings.ReplaceAll(text, pw, Redacted)
	}
	return text
}

// Redact applies Scrub for every known uri and then masks any connection
// string still embedded in text, such as one quoted in a panic value.
func Redact(text string, uris ...string) string {
	for _, uri := range uris {
		text = Scrub(text, strings.TrimSpace(uri))
	}
	b := &strings.Builder{}
	for {
		i := indexScheme(text)
		if i < 0 {
			b.WriteString(text)
			return b.String()
		}
		end := strings.IndexFunc(text[i:], isTokenEnd)
		if end < 0 {
			end = len(text)
		} else {
			end += i
		}
		b.WriteString(text[:i])
		b.WriteString(Mask(text[i:end]))
		text = text[end:]
	}
}

// indexScheme returns the offset of the first connection string scheme in
// text, ignoring case, or -1.
func indexScheme(text string) int {
	for i := 0; i < len(text); i++ {
		for _, scheme := range []string{SchemeSRV, SchemeStandard} {
			if len(text)-i >= len(scheme) && strings.EqualFold(text[i:i+len(scheme)], scheme) {
				return i
			}
		}
	}
	return -1
}

func isTokenEnd(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '"', '\'', '`', '<', '>':
		return true
	}
	return false
}

func password(uri string) string {
	_, rest := splitScheme(uri)
	at := maskedUserinfoEnd(rest)
	if at < 0 {
		return ""
	}
	_, pw, _ := strings.Cut(rest[:at], ":")
	return pw
}

// Host returns the first host of s without port or credentials. s may be a
// connection string or a bare hostname.
func Host(s string) string {
	hosts := Hosts(s)
	if len(hosts) == 0 {
		return ""
	}
	return stripPort(hosts[0])
}

// Hosts returns the host[:port] entries of the host list.
func Hosts(s string) []string {
	section := hostSection(s)
	if section == "" {
		return nil
	}
	var out []string
	for _, h := range strings.Split(section, ",") {
		if h = strings.TrimSpace(h); h != "" {
			out = append(out, h)
		}
	}
	return out
}

// Database returns the database named in the path, or "" when there is none.
func Database(s string) string {
	_, rest := splitScheme(strings.TrimSpace(s))
	if at := userinfoEnd(rest); at >= 0 {
		rest = rest[at+1:]
	}
	slash := strings.Index(rest, "/")
	if slash < 0 {
		return ""
	}
	db := rest[slash+1:]
	if q := strings.Index(db, "?"); q >= 0 {
		db = db[:q]
	}
	return db
}

func hostSection(s string) string {
	_, rest := splitScheme(strings.TrimSpace(s))
	if at := userinfoEnd(rest); at >= 0 {
		rest = rest[at+1:]
	}
	if end := strings.IndexAny(rest, "/?"); end >= 0 {
		rest = rest[:end]
	}
	return rest
}

func splitScheme(s string) (string, string) {
	if i := strings.Index(s, "://"); i >= 0 {
		return s[:i+3], s[i+3:]
	}
	return "", s
}

// userinfoEnd returns the index of the '@' that terminates the userinfo, or
// -1. The userinfo ends at the last '@' before the first '/', or before the
// first '?' when there is no path.
func userinfoEnd(rest string) int {
	cut := strings.Index(rest, "/")
	if cut < 0 {
		cut = strings.Index(rest, "?")
	}
	if cut < 0 {
		cut = len(rest)
	}
	return strings.LastIndex(rest[:cut], "@")
}

// maskedUserinfoEnd is userinfoEnd that also accepts an unescaped '/' or '?'
// in the password. An '@' after the first '=' sits in a query value and is
// never taken as the end of the userinfo.
func maskedUserinfoEnd(rest string) int {
	if at := userinfoEnd(rest); at >= 0 {
		return at
	}
	if eq := strings.Index(rest, "="); eq >= 0 {
		rest = rest[:eq]
	}
	return strings.LastIndex(rest, "@")
}

func maskQuery(rest string) string {
	q := strings.Index(rest, "?")
	if q < 0 {
		return rest
	}
	params := strings.Split(rest[q+1:], "&")
	for i, p := range params {
		k, _, ok := strings.Cut(p, "=")
		if ok && sensitiveKey(k) {
			params[i] = k + "=" + Redacted
		}
	}
	return rest[:q+1] + strings.Join(params, "&")
}

// sensitiveKeys lists substrings that mark a query parameter as secret.
var sensitiveKeys = []string{"password", "secret", "token"}

func sensitiveKey(k string) bool {
	low := strings.ToLower(k)
	for _, sk := range sensitiveKeys {
		if strings.Contains(low, sk) {
			return true
		}
	}
	return false
}

func stripPort(hostport string) string {
	if strings.HasPrefix(hostport, "[") {
		if end := strings.Index(hostport, "]"); end > 0 {
			return hostport[1:end]
		}
		return hostport
	}
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		return h
	}
	return hostport
}
