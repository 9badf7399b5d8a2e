package diagnostics

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"mongodoctor/internal/appconfig"
	"mongodoctor/internal/connstr"
)

const defaultResolveTimeout = 10 * time.Second

// NewResolver returns the system resolver, or a pure-Go resolver that sends
// every query to server ("host:port") when one is given.
func NewResolver(server string, timeout time.Duration) *net.Resolver {
	if server == "" {
		return net.DefaultResolver
	}
	return &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
			d := net.Dialer{Timeout: timeout}
			return d.DialContext(ctx, network, server)
		},
	}
}

// ResolveProbe resolves the host of endpoint to IPv4 addresses. Errors are
// returned as a failed result, never as an error.
func (d *Diagnoser) ResolveProbe(ctx context.Context, endpoint string) ProbeResult {
	host := connstr.Host(endpoint)
	if host == "" {
		host = appconfig.PlaceholderHost
	}
	res := ProbeResult{
		Name:   ProbeResolve,
		Label:  "DNS resolution",
		Target: host,
	}

	timeout := d.opts.ResolveTimeout
	if timeout <= 0 {
		timeout = defaultResolveTimeout
	}

	start := time.Now()
	lookupCtx, cancel := context.WithTimeout(ctx, timeout)
	ips, err := d.resolver.LookupIP(lookupCtx, "ip4", host)
	cancel()
	addrs := uniqueIPv4(ips)
	if err == nil && len(addrs) == 0 {
		err = ErrNoAddresses
	}

	if err != nil {
		res.Status = StatusFail
		res.Detail = err.Error()
		res.ErrorKind = ClassifyError(err)
	} else {
		res.Status = StatusPass
		res.Addresses = addrs
		res.Detail = fmt.Sprintf("resolved %d IPv4 address(es)", len(res.Addresses))
	}

	if d.srv != nil && d.opts.LookupSRV && connstr.Detect(endpoint) == connstr.FormatSRV {
		srvCtx, cancel := context.WithTimeout(ctx, timeout)
		targets, err := d.srv.LookupSRV(srvCtx, host)
		cancel()
		if err != nil {
			res.Notes = append(res.Notes, fmt.Sprintf("SRV lookup %s%s failed: %v", SRVRecordPrefix, host, err))
		} else {
			res.SRVTargets = targets
			res.Notes = append(res.Notes, fmt.Sprintf("SRV lookup %s%s returned %d target(s)", SRVRecordPrefix, host, len(targets)))
		}
	}

	res.ElapsedMS = time.Since(start).Milliseconds()
	return res
}

func uniqueIPv4(ips []net.IP) []string {
	seen := make(map[string]bool, len(ips))
	out := make([]string, 0, len(ips))
	for _, ip := range ips {
		v4 := ip.To4()
		if v4 == nil {
			continue
		}
		s := v4.String()
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func hostOnly(s string) string {
	return strings.TrimSuffix(s, ".")
}
