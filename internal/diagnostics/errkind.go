package diagnostics

import (
	"context"
	"crypto/x509"
	"errors"
	"net"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
)

type ErrorKind string

const (
	ErrorKindNone               ErrorKind = ""
	ErrorKindTimeout            ErrorKind = "timeout"
	ErrorKindDNS                ErrorKind = "dns"
	ErrorKindAuth               ErrorKind = "auth"
	ErrorKindConnectionRefused  ErrorKind = "connection_refused"
	ErrorKindNetworkUnreachable ErrorKind = "network_unreachable"
	ErrorKindTLS                ErrorKind = "tls"
	ErrorKindInvalidURI         ErrorKind = "invalid_uri"
	ErrorKindUnknown            ErrorKind = "unknown"
)

// MongoDB server error codes that mean the credentials were rejected.
const (
	codeUnauthorized         = 13
	codeAuthenticationFailed = 18
)

// ClassifyError maps a probe error onto an ErrorKind. Driver errors wrap the
// last connection failure inside a server selection timeout, so the specific
// causes are checked before the generic timeout.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return ErrorKindNone
	}
	if errors.Is(err, ErrNoAddresses) || errors.Is(err, ErrNoSRVRecords) {
		return ErrorKindDNS
	}

	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && (cmdErr.Code == codeAuthenticationFailed || cmdErr.Code == codeUnauthorized) {
		return ErrorKindAuth
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "authentication failed") || strings.Contains(msg, "auth error") ||
		strings.Contains(msg, "bad auth") || strings.Contains(msg, "unable to authenticate") {
		return ErrorKindAuth
	}

	var unknownAuthority x509.UnknownAuthorityError
	if errors.As(err, &unknownAuthority) {
		return ErrorKindTLS
	}
	var certInvalid x509.CertificateInvalidError
	if errors.As(err, &certInvalid) {
		return ErrorKindTLS
	}
	var hostErr x509.HostnameError
	if errors.As(err, &hostErr) {
		return ErrorKindTLS
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && !dnsErr.IsTimeout {
		return ErrorKindDNS
	}

	switch {
	case strings.Contains(msg, "connection refused"):
		return ErrorKindConnectionRefused
	case strings.Contains(msg, "network is unreachable") || strings.Contains(msg, "no route to host"):
		return ErrorKindNetworkUnreachable
	case strings.Contains(msg, "tls") || strings.Contains(msg, "x509") || strings.Contains(msg, "certificate"):
		return ErrorKindTLS
	case strings.Contains(msg, "no such host") || strings.Contains(msg, "server misbehaving") ||
		strings.Contains(msg, "nxdomain") || strings.Contains(msg, "servfail"):
		return ErrorKindDNS
	case strings.Contains(msg, "error parsing uri") || strings.Contains(msg, "scheme must be"):
		return ErrorKindInvalidURI
	}

	if errors.Is(err, context.DeadlineExceeded) || mongo.IsTimeout(err) {
		return ErrorKindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorKindTimeout
	}
	if strings.Contains(msg, "server selection error") || strings.Contains(msg, "timed out") ||
		strings.Contains(msg, "deadline exceeded") {
		return ErrorKindTimeout
	}
	return ErrorKindUnknown
}
