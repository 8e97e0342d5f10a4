package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"fundscore/internal/domain"
	"fundscore/internal/source"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	listNavSeriesSQL = `SELECT fund_id, nav_date, nav::text
    FROM nav_history
    WHERE fund_id = $1
    ORDER BY nav_date;`

	listBenchmarkSeriesSQL = `SELECT benchmark_id, value_date, value::text
    FROM benchmark_history
    WHERE benchmark_id = $1
    ORDER BY value_date;`

	getBenchmarkMappingSQL = `SELECT benchmark_id
    FROM fund_benchmark_map
    WHERE fund_id = $1;`

	listCategoryUniverseSQL = `SELECT fund_id, scheme_name, category
    FROM funds
    WHERE lower(category) = lower($1)
      AND active
    ORDER BY fund_id;`

	getPortfolioAttributesSQL = `SELECT
        stock_count::text,
        top10_weight::text,
        top3_sector_weight::text,
        sector_weights,
        turnover::text,
        expense_ratio::text,
        aum::text,
        manager_experience::text,
        pe::text,
        pb::text,
        roe::text
    FROM portfolio_attributes
    WHERE fund_id = $1;`

	deleteRawMetricsSQL  = `DELETE FROM raw_metrics WHERE category = $1;`
	deleteConsistencySQL = `DELETE FROM consistency_metrics WHERE category = $1;`
	deleteNormalizedSQL  = `DELETE FROM normalized_scores WHERE category = $1;`
	deleteCompositeSQL   = `DELETE FROM composite_scores WHERE category = $1;`

	insertRawMetricSQL = `INSERT INTO raw_metrics (
        run_id, fund_id, category, as_of, benchmark_id,
        eligibility, exclusion_reason, performance, risk, risk_adjusted,
        degradations, nav_stats
    ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12);`

	insertConsistencySQL = `INSERT INTO consistency_metrics (
        run_id, fund_id, category, as_of,
        rolling_3y, rolling_5y, rolling_alpha_3y, rolling_alpha_5y, confidence
    ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9);`

	insertNormalizedSQL = `INSERT INTO normalized_scores (
        run_id, fund_id, category, as_of, scores, universe_size, normalized_at
    ) VALUES ($1,$2,$3,$4,$5,$6,$7);`

	insertCompositeSQL = `INSERT INTO composite_scores (
        run_id, fund_id, category, as_of, quant_score,
        consistency_score, risk_adjusted_score, volatility_score, performance_score,
        rank, universe_size
    ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11);`

	insertRunSQL = `INSERT INTO scoring_runs (
        run_id, category, as_of, summary, status, error
    ) VALUES ($1,$2,$3,$4,$5,$6)
    ON CONFLICT (run_id) DO UPDATE
    SET summary = EXCLUDED.summary,
        status  = EXCLUDED.status,
        error   = EXCLUDED.error;`

	listRankingsSQL = `SELECT
        c.fund_id,
        COALESCE(f.scheme_name, ''),
        c.category,
        c.as_of,
        c.quant_score::text,
        c.consistency_score::text,
        c.risk_adjusted_score::text,
        c.volatility_score::text,
        c.performance_score::text,
        c.rank,
        c.universe_size
    FROM composite_scores c
    LEFT JOIN funds f ON f.fund_id = c.fund_id
    WHERE lower(c.category) = lower($1)
    ORDER BY c.rank NULLS LAST, c.fund_id
    LIMIT $2;`

	listRecentRunsSQL = `SELECT run_id, category, as_of, summary, status, error, created_at
    FROM scoring_runs
    ORDER BY created_at DESC
    LIMIT $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// ResultSink persists a category's derived records as a unit.
type ResultSink interface {
	ReplaceCategory(ctx context.Context, result domain.CategoryResult) error
}

// RunRecorder audits failed runs.
type RunRecorder interface {
	RecordRunFailure(ctx context.Context, summary domain.RunSummary, cause error) error
}

// RankingReader exposes persisted composite scores.
type RankingReader interface {
	ListRankings(ctx context.Context, category string, limit int) ([]RankingRow, error)
	ListRecentRuns(ctx context.Context, limit int) ([]ScoringRun, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store reads scoring inputs from and writes scoring outputs to PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// best effort; the session lock also dies with the connection
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// NavSeries lists a fund's NAV history.
func (s *Store) NavSeries(ctx context.Context, fundID string) ([]domain.NavPoint, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listNavSeriesSQL, fundID)
	if queryErr != nil {
		return nil, fmt.Errorf("list nav series: %w", queryErr)
	}
	defer rows.Close()

	points := make([]domain.NavPoint, 0, 1024)
	for rows.Next() {
		var p domain.NavPoint
		var navStr string
		if err := rows.Scan(&p.FundID, &p.Date, &navStr); err != nil {
			return nil, fmt.Errorf("scan nav point: %w", err)
		}
		nav, err := parseNumeric(&navStr)
		if err != nil {
			return nil, err
		}
		p.NAV = *nav
		points = append(points, p)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return points, nil
}

// BenchmarkSeries lists a benchmark's index history.
func (s *Store) BenchmarkSeries(ctx context.Context, benchmarkID string) ([]domain.BenchmarkPoint, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listBenchmarkSeriesSQL, benchmarkID)
	if queryErr != nil {
		return nil, fmt.Errorf("list benchmark series: %w", queryErr)
	}
	defer rows.Close()

	points := make([]domain.BenchmarkPoint, 0, 1024)
	for rows.Next() {
		var p domain.BenchmarkPoint
		var valueStr string
		if err := rows.Scan(&p.BenchmarkID, &p.Date, &valueStr); err != nil {
			return nil, fmt.Errorf("scan benchmark point: %w", err)
		}
		value, err := parseNumeric(&valueStr)
		if err != nil {
			return nil, err
		}
		p.Value = *value
		points = append(points, p)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return points, nil
}

// BenchmarkMapping returns the mapped benchmark for a fund.
func (s *Store) BenchmarkMapping(ctx context.Context, fundID string) (string, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return "", false, err
	}
	var benchmarkID string
	if scanErr := pool.QueryRow(ctx, getBenchmarkMappingSQL, fundID).Scan(&benchmarkID); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get benchmark mapping: %w", scanErr)
	}
	return benchmarkID, benchmarkID != "", nil
}

// CategoryUniverse lists active funds in a category.
func (s *Store) CategoryUniverse(ctx context.Context, category string) ([]domain.Fund, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listCategoryUniverseSQL, category)
	if queryErr != nil {
		return nil, fmt.Errorf("list category universe: %w", queryErr)
	}
	defer rows.Close()

	funds := make([]domain.Fund, 0)
	for rows.Next() {
		var f domain.Fund
		if err := rows.Scan(&f.ID, &f.Name, &f.Category); err != nil {
			return nil, fmt.Errorf("scan fund: %w", err)
		}
		funds = append(funds, f)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return funds, nil
}

// PortfolioAttributes returns holdings descriptors, or nil if none are stored.
func (s *Store) PortfolioAttributes(ctx context.Context, fundID string) (*domain.PortfolioAttributes, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	var (
		cols    [10]*string
		sectors []byte
	)
	scanErr := pool.QueryRow(ctx, getPortfolioAttributesSQL, fundID).Scan(
		&cols[0], &cols[1], &cols[2], &sectors, &cols[3], &cols[4], &cols[5], &cols[6], &cols[7], &cols[8], &cols[9],
	)
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get portfolio attributes: %w", scanErr)
	}

	var parsed [10]*float64
	for i, c := range cols {
		v, err := parseNumeric(c)
		if err != nil {
			return nil, err
		}
		parsed[i] = v
	}

	attrs := &domain.PortfolioAttributes{
		StockCount:        parsed[0],
		Top10Weight:       parsed[1],
		Top3SectorWeight:  parsed[2],
		Turnover:          parsed[3],
		ExpenseRatio:      parsed[4],
		AUM:               parsed[5],
		ManagerExperience: parsed[6],
		PE:                parsed[7],
		PB:                parsed[8],
		ROE:               parsed[9],
	}
	if len(sectors) > 0 {
		if err := json.Unmarshal(sectors, &attrs.SectorWeights); err != nil {
			return nil, fmt.Errorf("decode sector weights: %w", err)
		}
	}
	return attrs, nil
}

// ReplaceCategory deletes the category's previous output and writes the new
// record sets in a single transaction.
func (s *Store) ReplaceCategory(ctx context.Context, result domain.CategoryResult) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	sum := result.Summary
	batch := &pgx.Batch{}
	for _, q := range []string{deleteCompositeSQL, deleteNormalizedSQL, deleteConsistencySQL, deleteRawMetricsSQL} {
		batch.Queue(q, sum.Category)
	}

	for _, r := range result.Raw {
		args, err := rawMetricArgs(sum.RunID, r)
		if err != nil {
			return err
		}
		batch.Queue(insertRawMetricSQL, args...)
	}
	for _, c := range result.Consistency {
		args, err := consistencyArgs(sum.RunID, c)
		if err != nil {
			return err
		}
		batch.Queue(insertConsistencySQL, args...)
	}
	for _, n := range result.Normalized {
		scores, err := jsonArg(n.Scores)
		if err != nil {
			return err
		}
		batch.Queue(insertNormalizedSQL, sum.RunID, n.FundID, n.Category, n.AsOf, scores, n.UniverseSize, n.NormalizedAt)
	}
	for _, c := range result.Composite {
		var rank interface{}
		if c.Rank != nil {
			rank = *c.Rank
		}
		batch.Queue(insertCompositeSQL,
			sum.RunID, c.FundID, c.Category, c.AsOf,
			numericArg(c.QuantScore, 2),
			numericArg(c.Buckets.Consistency, 2),
			numericArg(c.Buckets.RiskAdjusted, 2),
			numericArg(c.Buckets.Volatility, 2),
			numericArg(c.Buckets.Performance, 2),
			rank, c.UniverseSize,
		)
	}

	summary, err := jsonArg(sum)
	if err != nil {
		return err
	}
	batch.Queue(insertRunSQL, sum.RunID, sum.Category, sum.AsOf, summary, domain.RunStatusCompleted, nil)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace category: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("replace category %s: %w", sum.Category, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace category: %w", err)
	}
	return nil
}

// RecordRunFailure writes a failed run row without touching derived records.
func (s *Store) RecordRunFailure(ctx context.Context, summary domain.RunSummary, cause error) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	payload, err := jsonArg(summary)
	if err != nil {
		return err
	}
	msg := cause.Error()
	if _, execErr := pool.Exec(ctx, insertRunSQL, summary.RunID, summary.Category, summary.AsOf, payload, domain.RunStatusFailed, msg); execErr != nil {
		return fmt.Errorf("record run failure: %w", execErr)
	}
	return nil
}

// ListRankings lists a category's composite scores ordered by rank.
func (s *Store) ListRankings(ctx context.Context, category string, limit int) ([]RankingRow, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	// LIMIT NULL returns every row, matching Memory for a non-positive limit.
	var limitArg interface{}
	if limit > 0 {
		limitArg = limit
	}
	rows, queryErr := pool.Query(ctx, listRankingsSQL, category, limitArg)
	if queryErr != nil {
		return nil, fmt.Errorf("list rankings: %w", queryErr)
	}
	defer rows.Close()

	out := make([]RankingRow, 0, clampLimit(limit))
	for rows.Next() {
		row, scanErr := scanRanking(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, row)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// ListRecentRuns lists the latest scoring runs.
func (s *Store) ListRecentRuns(ctx context.Context, limit int) ([]ScoringRun, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	limit = clampLimit(limit)
	rows, queryErr := pool.Query(ctx, listRecentRunsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent runs: %w", queryErr)
	}
	defer rows.Close()

	runs := make([]ScoringRun, 0, limit)
	for rows.Next() {
		var run ScoringRun
		if err := rows.Scan(&run.RunID, &run.Category, &run.AsOf, &run.Summary, &run.Status, &run.Error, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan scoring run: %w", err)
		}
		runs = append(runs, run)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return runs, nil
}

func rawMetricArgs(runID string, r domain.RawMetricRecord) ([]interface{}, error) {
	perf, err := jsonArg(r.Performance)
	if err != nil {
		return nil, err
	}
	risk, err := jsonArg(r.Risk)
	if err != nil {
		return nil, err
	}
	ra, err := jsonArg(r.RiskAdjusted)
	if err != nil {
		return nil, err
	}
	degradations, err := jsonArg(r.Degradations)
	if err != nil {
		return nil, err
	}
	stats, err := jsonArg(r.NavStats)
	if err != nil {
		return nil, err
	}
	var reason interface{}
	if r.ExclusionReason != "" {
		reason = string(r.ExclusionReason)
	}
	var bench interface{}
	if r.BenchmarkID != "" {
		bench = r.BenchmarkID
	}
	return []interface{}{
		runID, r.FundID, r.Category, r.AsOf, bench,
		string(r.EligibilityStatus), reason, perf, risk, ra,
		degradations, stats,
	}, nil
}

func consistencyArgs(runID string, c domain.ConsistencyRecord) ([]interface{}, error) {
	args := []interface{}{runID, c.FundID, c.Category, c.AsOf}
	for _, w := range []*domain.WindowSummary{c.Rolling3Y, c.Rolling5Y, c.RollingAlpha3Y, c.RollingAlpha5Y} {
		if w == nil {
			args = append(args, nil)
			continue
		}
		b, err := jsonArg(w)
		if err != nil {
			return nil, err
		}
		args = append(args, b)
	}
	confidence := c.Confidence
	return append(args, numericArg(&confidence, 4)), nil
}

func scanRanking(rows pgx.Rows) (RankingRow, error) {
	var (
		row     RankingRow
		numeric [5]*string
		rank    *int32
	)
	if err := rows.Scan(
		&row.FundID,
		&row.FundName,
		&row.Category,
		&row.AsOf,
		&numeric[0],
		&numeric[1],
		&numeric[2],
		&numeric[3],
		&numeric[4],
		&rank,
		&row.UniverseSize,
	); err != nil {
		return RankingRow{}, err
	}

	targets := []**decimal.Decimal{&row.QuantScore, &row.Consistency, &row.RiskAdjusted, &row.Volatility, &row.Performance}
	for i, s := range numeric {
		d, err := parseDecimal(s)
		if err != nil {
			return RankingRow{}, err
		}
		*targets[i] = d
	}
	if rank != nil {
		r := int(*rank)
		row.Rank = &r
	}
	return row, nil
}

var (
	_ source.Provider = (*Store)(nil)
	_ ResultSink      = (*Store)(nil)
	_ RunRecorder     = (*Store)(nil)
	_ RankingReader   = (*Store)(nil)
	_ AdvisoryLocker  = (*Store)(nil)
)
