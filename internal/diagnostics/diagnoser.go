package diagnostics

import (
	"context"
	"fmt"
	"time"

	"mongodoctor/internal/appconfig"
	"mongodoctor/internal/connstr"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// closeTimeout bounds Disconnect so a dead server cannot hang the run.
const closeTimeout = 5 * time.Second

// Diagnoser runs the probe pipeline for one configured endpoint.
type Diagnoser struct {
	opts      Options
	resolver  Resolver
	srv       SRVLookup
	connector Connector
	observer  Observer
	log       zerolog.Logger
	now       func() time.Time
}

type Option func(*Diagnoser)

func WithResolver(r Resolver) Option {
	return func(d *Diagnoser) { d.resolver = r }
}

// WithSRVLookup enables the informational SRV query. Passing nil disables it.
func WithSRVLookup(l SRVLookup) Option {
	return func(d *Diagnoser) { d.srv = l }
}

func WithConnector(c Connector) Option {
	return func(d *Diagnoser) { d.connector = c }
}

func WithObserver(o Observer) Option {
	return func(d *Diagnoser) { d.observer = o }
}

func WithLogger(l zerolog.Logger) Option {
	return func(d *Diagnoser) { d.log = l }
}

func New(opts Options, options ...Option) *Diagnoser {
	d := &Diagnoser{
		opts:      opts,
		resolver:  NewResolver("", opts.ResolveTimeout),
		connector: MongoConnector{},
		observer:  nopObserver{},
		log:       zerolog.Nop(),
		now:       time.Now,
	}
	for _, o := range options {
		o(d)
	}
	if d.observer == nil {
		d.observer = nopObserver{}
	}
	return d
}

// Run resolves the primary host and, only when that fails, attempts the
// fallback handshake. Probe failures are reported in the Report; the error
// is non-nil only for ErrUnexpected.
func (d *Diagnoser) Run(ctx context.Context) (report Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			msg := connstr.Redact(fmt.Sprint(r), d.opts.Primary, d.opts.Fallback)
			d.log.Error().Str("panic", msg).Msg("diagnosis aborted")
			err = fmt.Errorf("%w: %s", ErrUnexpected, msg)
		}
	}()

	switch {
	case d.resolver == nil:
		return Report{}, fmt.Errorf("%w: %w", ErrUnexpected, ErrNilResolver)
	case d.connector == nil:
		return Report{}, fmt.Errorf("%w: %w", ErrUnexpected, ErrNilConnector)
	}

	primary := d.opts.Primary
	report = Report{
		RunID:     uuid.NewString(),
		StartedAt: d.now(),
	}
	if primary == "" {
		primary = appconfig.PlaceholderHost
		report.PrimaryPlaceholder = true
	}
	report.Primary = connstr.Classify(primary)
	if d.opts.Fallback != "" {
		fb := connstr.Classify(d.opts.Fallback)
		report.Fallback = &fb
	}

	log := d.log.With().Str("run_id", report.RunID).Logger()
	log.Debug().Str("primary", report.Primary.Masked).Str("format", string(report.Primary.Format)).Msg("diagnosis started")

	d.observer.ProbeStarted(ProbeResolve, connstr.Host(primary))
	resolve := d.ResolveProbe(ctx, primary)
	d.observer.ProbeFinished(resolve)
	report.Probes = append(report.Probes, resolve)
	log.Info().Str("probe", resolve.Name).Str("target", resolve.Target).
		Str("status", string(resolve.Status)).Int64("elapsed_ms", resolve.ElapsedMS).Msg("probe finished")

	if resolve.Failed() {
		target := ""
		if report.Fallback != nil {
			target = report.Fallback.Masked
		}
		d.observer.ProbeStarted(ProbeFallback, target)
		fallback := d.FallbackProbe(ctx, d.opts.Fallback)
		d.observer.ProbeFinished(fallback)
		report.Probes = append(report.Probes, fallback)
		log.Info().Str("probe", fallback.Name).Str("target", fallback.Target).
			Str("status", string(fallback.Status)).Str("error_kind", string(fallback.ErrorKind)).
			Int64("elapsed_ms", fallback.ElapsedMS).Msg("probe finished")
	}

	report.Verdict = verdict(report.Probes)
	report.Recommendation = Recommend(report)
	report.FinishedAt = d.now()
	log.Debug().Str("verdict", string(report.Verdict)).Msg("diagnosis finished")
	return report, nil
}

// FallbackProbe opens a client on uri, runs the handshake and always closes
// the client again. An empty uri yields a skipped result.
func (d *Diagnoser) FallbackProbe(ctx context.Context, uri string) (res ProbeResult) {
	res = ProbeResult{
		Name:   ProbeFallback,
		Label:  "Direct connection (fallback)",
		Target: connstr.Mask(uri),
	}
	if uri == "" {
		res.Status = StatusSkipped
		res.Detail = "no fallback connection string configured; not attempted"
		return res
	}

	start := time.Now()
	defer func() { res.ElapsedMS = time.Since(start).Milliseconds() }()

	if f := connstr.Detect(uri); f != connstr.FormatStandard {
		res.Notes = append(res.Notes, "fallback is in "+f.Label()+", not address-literal form")
	}

	sess, err := d.connector.Open(ctx, uri, d.opts.Connect)
	if err != nil {
		res.Status = StatusFail
		res.Detail = connstr.Scrub(err.Error(), uri)
		res.ErrorKind = ClassifyError(err)
		return res
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if cerr := sess.Close(closeCtx); cerr != nil {
			d.log.Warn().Str("error", connstr.Scrub(cerr.Error(), uri)).Msg("close fallback client")
			res.Notes = append(res.Notes, "closing the client failed: "+connstr.Scrub(cerr.Error(), uri))
		}
	}()

	info, err := sess.Handshake(ctx)
	if err != nil {
		res.Status = StatusFail
		res.Detail = connstr.Scrub(err.Error(), uri)
		res.ErrorKind = ClassifyError(err)
		return res
	}
	res.Status = StatusPass
	res.Database = info.Database
	res.Host = info.Host
	res.ReplicaSet = info.ReplicaSet
	res.Detail = fmt.Sprintf("connected to database %q", info.Database)
	return res
}
