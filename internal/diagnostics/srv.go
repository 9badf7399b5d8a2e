package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"time"

	"github.com/miekg/dns"
)

// SRVRecordPrefix is prepended to the host of a mongodb+srv:// string to
// form the SRV record name drivers query.
const SRVRecordPrefix = "_mongodb._tcp."

const defaultResolvConf = "/etc/resolv.conf"

// DNSLookup queries SRV records directly with miekg/dns, bypassing the
// system stub resolver so the answer reflects what the nameserver returns.
type DNSLookup struct {
	// Server is "host:port"; empty means the first nameserver of ResolvConf.
	Server     string
	ResolvConf string
	Timeout    time.Duration
}

func NewSRVLookup(server string, timeout time.Duration) *DNSLookup {
	return &DNSLookup{Server: server, ResolvConf: defaultResolvConf, Timeout: timeout}
}

func (l *DNSLookup) LookupSRV(ctx context.Context, host string) ([]string, error) {
	server, err := l.server()
	if err != nil {
		return nil, err
	}

	name := dns.Fqdn(SRVRecordPrefix + host)
	m := new(dns.Msg)
	m.SetQuestion(name, dns.TypeSRV)
	m.RecursionDesired = true

	timeout := l.Timeout
	if timeout <= 0 {
		timeout = defaultResolveTimeout
	}
	c := &dns.Client{Timeout: timeout}
	in, _, err := c.ExchangeContext(ctx, m, server)
	if err != nil {
		return nil, fmt.Errorf("query %s via %s: %w", name, server, err)
	}
	if in.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("query %s via %s: %s", name, server, dns.RcodeToString[in.Rcode])
	}

	var records []*dns.SRV
	for _, rr := range in.Answer {
		if srv, ok := rr.(*dns.SRV); ok {
			records = append(records, srv)
		}
	}
	if len(records) == 0 {
		return nil, ErrNoSRVRecords
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Priority != records[j].Priority {
			return records[i].Priority < records[j].Priority
		}
		return records[i].Weight > records[j].Weight
	})
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, net.JoinHostPort(hostOnly(r.Target), strconv.Itoa(int(r.Port))))
	}
	return out, nil
}

func (l *DNSLookup) server() (string, error) {
	if l.Server != "" {
		return l.Server, nil
	}
	path := l.ResolvConf
	if path == "" {
		path = defaultResolvConf
	}
	conf, err := dns.ClientConfigFromFile(path)
	if err != nil {
		return "", fmt.Errorf("read nameservers: %w", err)
	}
	if len(conf.Servers) == 0 {
		return "", errors.New("no nameserver configured in " + path)
	}
	return net.JoinHostPort(conf.Servers[0], conf.Port), nil
}
