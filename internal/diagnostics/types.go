// Package diagnostics runs the connectivity probes for a MongoDB endpoint and
// aggregates them into a Report.
package diagnostics

import (
	"context"
	"errors"
	"net"
	"time"

	"mongodoctor/internal/appconfig"
	"mongodoctor/internal/connstr"
)

// Status is the outcome of a probe.
type Status string

const (
	StatusPass    Status = "pass"
	StatusFail    Status = "fail"
	StatusSkipped Status = "skipped"
)

const (
	ProbeResolve  = "resolve"
	ProbeFallback = "fallback-connect"
)

var (
	ErrNoAddresses  = errors.New("no IPv4 addresses returned")
	ErrNoSRVRecords = errors.New("no SRV records returned")
	ErrUnexpected   = errors.New("unexpected error during diagnosis")
	ErrNilResolver  = errors.New("no resolver configured")
	ErrNilConnector = errors.New("no connector configured")
)

// ProbeResult is the outcome of a single probe. A pass of the resolve probe
// carries Addresses; a pass of the fallback probe carries Database and Host.
// A fail always carries Detail.
type ProbeResult struct {
	Name       string    `json:"name"`
	Label      string    `json:"label"`
	Status     Status    `json:"status"`
	Target     string    `json:"target,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	ErrorKind  ErrorKind `json:"error_kind,omitempty"`
	Addresses  []string  `json:"addresses,omitempty"`
	SRVTargets []string  `json:"srv_targets,omitempty"`
	Database   string    `json:"database,omitempty"`
	Host       string    `json:"host,omitempty"`
	ReplicaSet string    `json:"replica_set,omitempty"`
	Notes      []string  `json:"notes,omitempty"`
	ElapsedMS  int64     `json:"elapsed_ms"`
}

func (r ProbeResult) Passed() bool { return r.Status == StatusPass }
func (r ProbeResult) Failed() bool { return r.Status == StatusFail }
func (r ProbeResult) Skipped() bool { return r.Status == StatusSkipped }

// Report is the outcome of one diagnosis run.
type Report struct {
	RunID              string                  `json:"run_id"`
	StartedAt          time.Time               `json:"started_at"`
	FinishedAt         time.Time               `json:"finished_at"`
	Primary            connstr.Classification  `json:"primary"`
	PrimaryPlaceholder bool                    `json:"primary_placeholder,omitempty"`
	Fallback           *connstr.Classification `json:"fallback,omitempty"`
	Probes             []ProbeResult           `json:"probes"`
	Verdict            Status                  `json:"verdict"`
	Recommendation     string                  `json:"recommendation"`
}

// Probe returns the result of the named probe if it ran.
func (r Report) Probe(name string) (ProbeResult, bool) {
	for _, p := range r.Probes {
		if p.Name == name {
			return p, true
		}
	}
	return ProbeResult{}, false
}

// ConnectOptions are the client settings used by the fallback handshake.
type ConnectOptions struct {
	ServerSelectionTimeout time.Duration
	SocketTimeout          time.Duration
	ConnectTimeout         time.Duration
	MaxPoolSize            uint64
	WriteMajority          bool
	WriteNodes             int
	ForceIPv4              bool
}

func DefaultConnectOptions() ConnectOptions {
	return ConnectOptions{
		ServerSelectionTimeout: 15 * time.Second,
		SocketTimeout:          45 * time.Second,
		ConnectTimeout:         15 * time.Second,
		MaxPoolSize:            10,
		WriteMajority:          true,
		ForceIPv4:              true,
	}
}

// Options is everything the Diagnoser needs. An empty Primary is replaced by
// appconfig.PlaceholderHost; an empty Fallback skips the fallback probe.
type Options struct {
	Primary        string
	Fallback       string
	ResolveTimeout time.Duration
	LookupSRV      bool
	Connect        ConnectOptions
}

func OptionsFromConfig(cfg appconfig.Config) Options {
	majority, nodes := cfg.Mongo.WriteConcernW()
	return Options{
		Primary:        cfg.Primary,
		Fallback:       cfg.Fallback,
		ResolveTimeout: cfg.ResolveTimeoutDuration(),
		LookupSRV:      cfg.LookupSRV,
		Connect: ConnectOptions{
			ServerSelectionTimeout: cfg.Mongo.ServerSelectionTimeoutDuration(),
			SocketTimeout:          cfg.Mongo.SocketTimeoutDuration(),
			ConnectTimeout:         cfg.Mongo.ConnectTimeoutDuration(),
			MaxPoolSize:            cfg.Mongo.MaxPoolSize,
			WriteMajority:          majority,
			WriteNodes:             nodes,
			ForceIPv4:              cfg.Mongo.ForceIPv4,
		},
	}
}

// Resolver is satisfied by *net.Resolver.
type Resolver interface {
	LookupIP(ctx context.Context, network, host string) ([]net.IP, error)
}

// SRVLookup returns "target:port" entries for the _mongodb._tcp record of host.
type SRVLookup interface {
	LookupSRV(ctx context.Context, host string) ([]string, error)
}

// Connector opens a client session against an address-literal connection
// string. The caller owns the returned Session and must Close it.
type Connector interface {
	Open(ctx context.Context, uri string, opts ConnectOptions) (Session, error)
}

type Session interface {
	Handshake(ctx context.Context) (HandshakeInfo, error)
	Close(ctx context.Context) error
}

type HandshakeInfo struct {
	Database   string
	Host       string
	ReplicaSet string
}

// Observer receives progress while the pipeline runs.
type Observer interface {
	ProbeStarted(name, target string)
	ProbeFinished(result ProbeResult)
}

type nopObserver struct{}

func (nopObserver) ProbeStarted(string, string) {}
func (nopObserver) ProbeFinished(ProbeResult) {}
