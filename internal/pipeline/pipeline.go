package pipeline

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"fundscore/internal/alerting"
	"fundscore/internal/analytics"
	"fundscore/internal/composite"
	"fundscore/internal/domain"
	"fundscore/internal/normalize"
	"fundscore/internal/policy"
	"fundscore/internal/source"
	"fundscore/internal/storage"
	"fundscore/internal/telemetry"
	"fundscore/internal/timeseries"
)

var (
	// ErrEmptyUniverse is returned when no fund survives the category filter.
	ErrEmptyUniverse = errors.New("pipeline: empty universe")
	// ErrRunInProgress is returned when another writer holds the category lock.
	ErrRunInProgress = errors.New("pipeline: category run already in progress")
)

// Options tune a scoring service.
type Options struct {
	Workers   int
	MinPeers  int
	Analytics analytics.Options
	// LockKey seeds the per-category advisory lock. Zero disables locking.
	LockKey         int64
	DryRun          bool
	NotifyOnSuccess bool
	Location        *time.Location
}

// Dependencies are the collaborators a Service reads from and writes to.
type Dependencies struct {
	Provider source.Provider
	Sink     storage.ResultSink
	Registry *policy.Registry
	Resolver *policy.BenchmarkResolver
	Notifier alerting.Notifier
	Metrics  *telemetry.Metrics
}

// Service scores categories end to end.
type Service struct {
	provider source.Provider
	sink     storage.ResultSink
	recorder storage.RunRecorder
	locker   storage.AdvisoryLocker
	registry *policy.Registry
	resolver *policy.BenchmarkResolver
	notifier alerting.Notifier
	metrics  *telemetry.Metrics
	opts     Options
	logger   zerolog.Logger

	now   func() time.Time
	newID func() string
}

// Outcome is the per-category result of RunCategories.
type Outcome struct {
	Category string
	Summary  domain.RunSummary
	Err      error
}

// New constructs the scoring service.
func New(deps Dependencies, opts Options, logger zerolog.Logger) *Service {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.MinPeers <= 0 {
		opts.MinPeers = normalize.DefaultMinPeers
	}
	if opts.Analytics.MinDailyPoints <= 0 {
		opts.Analytics = analytics.DefaultOptions()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	registry := deps.Registry
	if registry == nil {
		registry = policy.DefaultRegistry()
	}
	resolver := deps.Resolver
	if resolver == nil {
		resolver = policy.NewBenchmarkResolver(deps.Provider, policy.BenchmarkOverrides{})
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = alerting.NoopNotifier{}
	}

	var recorder storage.RunRecorder
	if r, ok := deps.Sink.(storage.RunRecorder); ok {
		recorder = r
	}
	var locker storage.AdvisoryLocker
	if l, ok := deps.Sink.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		provider: deps.Provider,
		sink:     deps.Sink,
		recorder: recorder,
		locker:   locker,
		registry: registry,
		resolver: resolver,
		notifier: notifier,
		metrics:  deps.Metrics,
		opts:     opts,
		logger:   logger.With().Str("component", "pipeline").Logger(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// RunScoring scores a category as of today and replaces its stored results.
func (s *Service) RunScoring(ctx context.Context, category string) (domain.RunSummary, error) {
	return s.RunScoringAsOf(ctx, category, time.Time{})
}

// RunScoringAsOf scores a category using only data up to asOf. A zero asOf
// means today in the configured location.
func (s *Service) RunScoringAsOf(ctx context.Context, category string, asOf time.Time) (domain.RunSummary, error) {
	started := s.now()
	summary := domain.RunSummary{
		RunID:    s.newID(),
		Category: category,
		AsOf:     s.resolveAsOf(asOf),
		DryRun:   s.opts.DryRun,
	}
	logger := s.logger.With().Str("category", category).Str("run_id", summary.RunID).Logger()

	unlock, proceed, err := s.acquireLock(ctx, category)
	if err != nil {
		return summary, err
	}
	if !proceed {
		logger.Warn().Msg("skip category because advisory lock held elsewhere")
		s.metrics.RunFinished(category, domain.RunStatusSkipped)
		return summary, ErrRunInProgress
	}
	if unlock != nil {
		defer unlock()
	}

	result, err := s.score(ctx, category, summary, logger)
	if err == nil && !s.opts.DryRun {
		if s.sink == nil {
			err = errors.New("result sink not configured")
		} else {
			stage := s.now()
			err = s.sink.ReplaceCategory(ctx, result)
			s.metrics.ObserveStage(category, "persist", s.now().Sub(stage))
			if err != nil {
				err = fmt.Errorf("replace category results: %w", err)
			}
		}
	}

	summary = result.Summary
	summary.Duration = s.now().Sub(started)
	if err != nil {
		s.fail(ctx, summary, err, logger)
		return summary, err
	}

	s.metrics.RunFinished(category, domain.RunStatusCompleted)
	s.metrics.SetFunds(category, summary.UniverseSize, summary.EligibleCount, summary.ExcludedCount, summary.RankedCount, len(summary.Suppressed))
	logger.Info().
		Time("as_of", summary.AsOf).
		Int("universe", summary.UniverseSize).
		Int("eligible", summary.EligibleCount).
		Int("excluded", summary.ExcludedCount).
		Int("ranked", summary.RankedCount).
		Strs("suppressed", summary.Suppressed).
		Bool("dry_run", summary.DryRun).
		Dur("duration", summary.Duration).
		Msg("category scored")

	if s.opts.NotifyOnSuccess {
		note := alerting.Notification{
			Status:  alerting.StatusCompleted,
			Summary: summary,
			Leaders: alerting.LeadersFrom(result.Composite, 5),
		}
		if err := s.notifier.Notify(ctx, note); err != nil {
			logger.Error().Err(err).Msg("failed to dispatch run notification")
		}
	}
	return summary, nil
}

// Score computes a category's records without persisting them.
func (s *Service) Score(ctx context.Context, category string, asOf time.Time) (domain.CategoryResult, error) {
	summary := domain.RunSummary{RunID: s.newID(), Category: category, AsOf: s.resolveAsOf(asOf), DryRun: true}
	logger := s.logger.With().Str("category", category).Str("run_id", summary.RunID).Logger()
	return s.score(ctx, category, summary, logger)
}

// RunCategories scores each category independently. An empty list means every
// registered category. A failure in one category never stops the others.
func (s *Service) RunCategories(ctx context.Context, categories []string, asOf time.Time) []Outcome {
	if len(categories) == 0 {
		categories = s.registry.Names()
	}
	outcomes := make([]Outcome, 0, len(categories))
	for _, category := range categories {
		if ctx.Err() != nil {
			outcomes = append(outcomes, Outcome{Category: category, Err: ctx.Err()})
			continue
		}
		summary, err := s.RunScoringAsOf(ctx, category, asOf)
		outcomes = append(outcomes, Outcome{Category: category, Summary: summary, Err: err})
	}
	return outcomes
}

func (s *Service) score(ctx context.Context, category string, summary domain.RunSummary, logger zerolog.Logger) (domain.CategoryResult, error) {
	result := domain.CategoryResult{Summary: summary}

	p, err := s.registry.Lookup(category)
	if err != nil {
		return result, err
	}
	result.Summary.Category = p.Name
	if s.provider == nil {
		return result, errors.New("input provider not configured")
	}

	stage := s.now()
	funds, err := s.universe(ctx, p)
	s.metrics.ObserveStage(category, "universe", s.now().Sub(stage))
	if err != nil {
		return result, err
	}
	result.Funds = funds
	result.Summary.UniverseSize = len(funds)
	logger.Debug().Int("funds", len(funds)).Msg("universe loaded")

	stage = s.now()
	evaluated, err := s.evaluate(ctx, p, funds, result.Summary.AsOf)
	s.metrics.ObserveStage(category, "evaluate", s.now().Sub(stage))
	if err != nil {
		return result, err
	}

	inputs := make([]normalize.Input, 0, len(evaluated))
	for i := range evaluated {
		ev := &evaluated[i]
		result.Raw = append(result.Raw, ev.result.Raw)
		if ev.result.Consistency != nil {
			result.Consistency = append(result.Consistency, *ev.result.Consistency)
		}
		if !ev.result.Raw.IsEligible() {
			result.Summary.ExcludedCount++
			logger.Debug().Str("fund_id", ev.result.Raw.FundID).
				Str("reason", string(ev.result.Raw.ExclusionReason)).
				Msg("fund excluded")
			continue
		}
		result.Summary.EligibleCount++
		inputs = append(inputs, normalize.Input{
			FundID:      ev.result.Raw.FundID,
			Raw:         &ev.result.Raw,
			Consistency: ev.result.Consistency,
			Attributes:  ev.attributes,
		})
	}

	stage = s.now()
	normalized, err := normalize.Normalize(p.Name, result.Summary.AsOf, inputs, normalize.Options{
		MinPeers: s.opts.MinPeers,
		Now:      s.now,
	})
	s.metrics.ObserveStage(category, "normalize", s.now().Sub(stage))
	switch {
	case errors.Is(err, normalize.ErrUniverseTooSmall):
		logger.Warn().Int("universe", normalized.UniverseSize).Int("min_peers", s.opts.MinPeers).
			Msg("peer universe too small; no scores produced")
		return result, nil
	case err != nil:
		return result, fmt.Errorf("normalize category: %w", err)
	}
	result.Normalized = normalized.Records
	result.Summary.NormalizedCount = len(normalized.Records)
	result.Summary.Suppressed = normalized.SuppressedKeys()

	stage = s.now()
	names := make(map[string]string, len(funds))
	for _, f := range funds {
		names[f.ID] = f.Name
	}
	scored := composite.Score(normalized.Records, p.EffectiveWeights(), composite.Options{Strict: p.Strict})
	for i := range scored {
		scored[i].FundName = names[scored[i].FundID]
		if scored[i].Rank != nil {
			result.Summary.RankedCount++
		}
	}
	result.Composite = scored
	s.metrics.ObserveStage(category, "composite", s.now().Sub(stage))

	return result, nil
}

func (s *Service) universe(ctx context.Context, p *policy.CategoryPolicy) ([]domain.Fund, error) {
	funds, err := s.provider.CategoryUniverse(ctx, p.Name)
	if err != nil {
		return nil, fmt.Errorf("load universe: %w", err)
	}
	if err := domain.ValidateUniverse(funds); err != nil {
		return nil, err
	}
	admitted := p.Filter(funds)
	if len(admitted) == 0 {
		return nil, fmt.Errorf("%w: %s (%d listed, 0 admitted)", ErrEmptyUniverse, p.Name, len(funds))
	}
	return admitted, nil
}

type evaluatedFund struct {
	result     analytics.Result
	attributes *domain.PortfolioAttributes
}

// evaluate runs the per-fund stages on a bounded worker pool. Each task writes
// only its own slot; Wait is the barrier before normalisation.
func (s *Service) evaluate(ctx context.Context, p *policy.CategoryPolicy, funds []domain.Fund, asOf time.Time) ([]evaluatedFund, error) {
	benchIDs := make([]string, len(funds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i, f := range funds {
		g.Go(func() error {
			id, origin, err := s.resolver.Resolve(gctx, f, p)
			if err != nil {
				return err
			}
			benchIDs[i] = id
			s.logger.Debug().Str("fund_id", f.ID).Str("benchmark_id", id).Str("origin", origin).Msg("benchmark resolved")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	unique := make([]string, 0)
	seen := make(map[string]int)
	for _, id := range benchIDs {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; !ok {
			seen[id] = len(unique)
			unique = append(unique, id)
		}
	}

	benchmarks := make([]timeseries.Series, len(unique))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i, id := range unique {
		g.Go(func() error {
			points, err := s.provider.BenchmarkSeries(gctx, id)
			if err != nil {
				return fmt.Errorf("load benchmark %s: %w", id, err)
			}
			if err := domain.ValidateBenchmarkSeries(points); err != nil {
				return err
			}
			benchmarks[i] = timeseries.FromBenchmark(points)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]evaluatedFund, len(funds))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i, f := range funds {
		g.Go(func() error {
			points, err := s.provider.NavSeries(gctx, f.ID)
			if err != nil {
				return fmt.Errorf("load nav %s: %w", f.ID, err)
			}
			if err := domain.ValidateNavSeries(points); err != nil {
				return err
			}
			attrs, err := s.provider.PortfolioAttributes(gctx, f.ID)
			if err != nil {
				return fmt.Errorf("load portfolio attributes %s: %w", f.ID, err)
			}

			in := analytics.Input{
				FundID:      f.ID,
				Category:    p.Name,
				AsOf:        asOf,
				Nav:         timeseries.FromNav(points),
				BenchmarkID: benchIDs[i],
			}
			if idx, ok := seen[benchIDs[i]]; ok {
				in.Benchmark = benchmarks[idx]
			}
			out[i] = evaluatedFund{
				result:     analytics.Evaluate(in, s.opts.Analytics),
				attributes: attrs,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) fail(ctx context.Context, summary domain.RunSummary, cause error, logger zerolog.Logger) {
	logger.Error().Err(cause).Msg("category run failed")
	s.metrics.RunFinished(summary.Category, domain.RunStatusFailed)

	if s.recorder != nil && !s.opts.DryRun {
		if err := s.recorder.RecordRunFailure(ctx, summary, cause); err != nil {
			logger.Error().Err(err).Msg("failed to record run failure")
		}
	}
	note := alerting.Notification{Status: alerting.StatusFailed, Summary: summary, Err: cause}
	if err := s.notifier.Notify(ctx, note); err != nil {
		logger.Error().Err(err).Msg("failed to dispatch failure notification")
	}
}

func (s *Service) resolveAsOf(asOf time.Time) time.Time {
	if asOf.IsZero() {
		asOf = s.now().In(s.opts.Location)
	}
	return time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *Service) acquireLock(ctx context.Context, category string) (func(), bool, error) {
	if s.opts.LockKey == 0 || s.locker == nil || s.opts.DryRun {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, LockKey(s.opts.LockKey, category))
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}

// LockKey derives a category's advisory lock key from the configured base.
func LockKey(base int64, category string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.ToLower(strings.TrimSpace(category))))
	return base ^ int64(h.Sum64())
}
