// Package audit persists AttackReport and GroupImpact rows to Postgres
// for later query (spec §4.13), mirroring internal/evidence/vault.go's
// store-then-query shape: internal/gvisor/database_state.go's
// database/sql + lib/pq connection pattern stands in for the teacher's
// in-memory EvidenceChain, since this module's audit trail is a plain
// queryable log rather than a tamper-evident hash chain.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/angu-team/ethernity-deeptrace/internal/attackdetector"
	"github.com/angu-team/ethernity-deeptrace/internal/impact"
	"github.com/angu-team/ethernity-deeptrace/internal/primitives"
)

// Store is a Postgres-backed sink and query surface for AttackReport and
// GroupImpact rows.
type Store struct {
	db *sql.DB
}

// Open connects to dbURL and verifies the connection, per
// internal/gvisor/database_state.go's NewDatabaseStateManager pattern.
func Open(dbURL string) (*Store, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("audit: connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the attack_reports and group_impacts tables if
// they do not already exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS attack_reports (
			id BIGSERIAL PRIMARY KEY,
			group_key TEXT NOT NULL,
			attack_detected BOOLEAN NOT NULL,
			attack_types TEXT[] NOT NULL DEFAULT '{}',
			attack_confidence DOUBLE PRECISION NOT NULL,
			has_dominance_score BOOLEAN NOT NULL,
			dominance_score DOUBLE PRECISION NOT NULL,
			has_convexity_score BOOLEAN NOT NULL,
			convexity_integrity_score DOUBLE PRECISION NOT NULL,
			entropy_tolerance_window BIGINT NOT NULL,
			participants TEXT[] NOT NULL DEFAULT '{}',
			reason TEXT NOT NULL DEFAULT '',
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS attack_reports_group_key_idx ON attack_reports(group_key)`,
		`CREATE TABLE IF NOT EXISTS group_impacts (
			id BIGSERIAL PRIMARY KEY,
			group_id TEXT NOT NULL,
			tokens TEXT[] NOT NULL DEFAULT '{}',
			opportunity_score DOUBLE PRECISION NOT NULL,
			expected_profit_backrun DOUBLE PRECISION NOT NULL,
			state_confidence DOUBLE PRECISION NOT NULL,
			impact_certainty DOUBLE PRECISION NOT NULL,
			execution_assumption TEXT NOT NULL,
			reorg_risk_level TEXT NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS group_impacts_group_id_idx ON group_impacts(group_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("audit: ensure schema: %w", err)
		}
	}
	return nil
}

// SaveAttackReport inserts one AttackDetector verdict.
func (s *Store) SaveAttackReport(ctx context.Context, r attackdetector.AttackReport) error {
	types := make([]string, len(r.AttackTypes))
	for i, t := range r.AttackTypes {
		types[i] = string(t)
	}
	participants := make([]string, len(r.Participants))
	for i, p := range r.Participants {
		participants[i] = p.Hex()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attack_reports (
			group_key, attack_detected, attack_types, attack_confidence,
			has_dominance_score, dominance_score, has_convexity_score,
			convexity_integrity_score, entropy_tolerance_window, participants, reason
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		r.GroupKey.Hex(), r.AttackDetected, pq.Array(types), r.AttackConfidence,
		r.HasDominanceScore, r.DominanceScore, r.HasConvexityScore,
		r.ConvexityIntegrityScore, int64(r.EntropyToleranceWindow), pq.Array(participants), r.Reason,
	)
	if err != nil {
		return fmt.Errorf("audit: save attack report: %w", err)
	}
	return nil
}

// SaveGroupImpact inserts one StateImpactEvaluator group-level result.
// Per-victim detail (GroupImpact.Victims) is not persisted — the audit
// trail records the group-level rollup a reviewer queries by group_id;
// per-victim replay detail belongs with the Victim Analyzer's own
// output, not this sink.
func (s *Store) SaveGroupImpact(ctx context.Context, g impact.GroupImpact) error {
	tokens := make([]string, len(g.Tokens))
	for i, a := range g.Tokens {
		tokens[i] = a.Hex()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO group_impacts (
			group_id, tokens, opportunity_score, expected_profit_backrun,
			state_confidence, impact_certainty, execution_assumption, reorg_risk_level
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		g.GroupID.Hex(), pq.Array(tokens), g.OpportunityScore, g.ExpectedProfitBackrun,
		g.StateConfidence, g.ImpactCertainty, g.ExecutionAssumption, g.ReorgRiskLevel,
	)
	if err != nil {
		return fmt.Errorf("audit: save group impact: %w", err)
	}
	return nil
}

// AttackQuery filters AttackReport rows for QueryAttackReports.
type AttackQuery struct {
	GroupKey string
	Type     attackdetector.AttackType
	Since    time.Time
	Limit    int
	Offset   int
}

// QueryAttackReports returns AttackReport rows matching q, most recent
// first.
func (s *Store) QueryAttackReports(ctx context.Context, q AttackQuery) ([]attackdetector.AttackReport, error) {
	query, args := buildAttackQuery(q)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: query attack reports: %w", err)
	}
	defer rows.Close()

	var out []attackdetector.AttackReport
	for rows.Next() {
		var groupKeyHex string
		var types, participants pq.StringArray
		var r attackdetector.AttackReport
		if err := rows.Scan(&groupKeyHex, &r.AttackDetected, &types, &r.AttackConfidence,
			&r.HasDominanceScore, &r.DominanceScore, &r.HasConvexityScore,
			&r.ConvexityIntegrityScore, &r.EntropyToleranceWindow, &participants, &r.Reason); err != nil {
			return nil, fmt.Errorf("audit: scan attack report: %w", err)
		}
		r.GroupKey = primitives.ParseHash(groupKeyHex)
		for _, t := range types {
			r.AttackTypes = append(r.AttackTypes, attackdetector.AttackType(t))
		}
		for _, p := range participants {
			r.Participants = append(r.Participants, primitives.ParseHash(p))
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ImpactQuery filters GroupImpact rows for QueryGroupImpacts.
type ImpactQuery struct {
	GroupID string
	Since   time.Time
	Limit   int
	Offset  int
}

// QueryGroupImpacts returns GroupImpact rows matching q, most recent
// first.
func (s *Store) QueryGroupImpacts(ctx context.Context, q ImpactQuery) ([]impact.GroupImpact, error) {
	query, args := buildImpactQuery(q)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: query group impacts: %w", err)
	}
	defer rows.Close()

	var out []impact.GroupImpact
	for rows.Next() {
		var groupIDHex string
		var tokens pq.StringArray
		var g impact.GroupImpact
		if err := rows.Scan(&groupIDHex, &tokens, &g.OpportunityScore, &g.ExpectedProfitBackrun,
			&g.StateConfidence, &g.ImpactCertainty, &g.ExecutionAssumption, &g.ReorgRiskLevel); err != nil {
			return nil, fmt.Errorf("audit: scan group impact: %w", err)
		}
		g.GroupID = primitives.ParseHash(groupIDHex)
		for _, t := range tokens {
			if addr, ok := primitives.ParseAddress(t); ok {
				g.Tokens = append(g.Tokens, addr)
			}
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// buildAttackQuery renders q into a parameterized SELECT, replacing a
// non-positive limit or one above 500 with 100 (the HTTP handlers pass the
// raw query-string limit through unchanged). Factored
// out of QueryAttackReports so the filter/pagination logic is testable
// without a live database.
func buildAttackQuery(q AttackQuery) (string, []interface{}) {
	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `SELECT group_key, attack_detected, attack_types, attack_confidence,
		has_dominance_score, dominance_score, has_convexity_score,
		convexity_integrity_score, entropy_tolerance_window, participants, reason
		FROM attack_reports WHERE recorded_at >= $1`
	args := []interface{}{q.Since}

	if q.GroupKey != "" {
		args = append(args, q.GroupKey)
		query += fmt.Sprintf(" AND group_key = $%d", len(args))
	}
	if q.Type != "" {
		args = append(args, string(q.Type))
		query += fmt.Sprintf(" AND $%d = ANY(attack_types)", len(args))
	}
	args = append(args, limit, q.Offset)
	query += fmt.Sprintf(" ORDER BY recorded_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	return query, args
}

// buildImpactQuery is buildAttackQuery's counterpart for group_impacts.
func buildImpactQuery(q ImpactQuery) (string, []interface{}) {
	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `SELECT group_id, tokens, opportunity_score, expected_profit_backrun,
		state_confidence, impact_certainty, execution_assumption, reorg_risk_level
		FROM group_impacts WHERE recorded_at >= $1`
	args := []interface{}{q.Since}

	if q.GroupID != "" {
		args = append(args, q.GroupID)
		query += fmt.Sprintf(" AND group_id = $%d", len(args))
	}
	args = append(args, limit, q.Offset)
	query += fmt.Sprintf(" ORDER BY recorded_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	return query, args
}
