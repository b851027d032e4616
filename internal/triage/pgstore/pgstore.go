// Package pgstore provides a PostgreSQL implementation of triage.Store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/acuity/internal/patient"
	"github.com/linnemanlabs/acuity/internal/triage"
)

var tracer = otel.Tracer("github.com/linnemanlabs/acuity/internal/triage/pgstore")

//go:embed schema.sql
var schema string

// Store persists encounters and assessments in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema and returns a ready Store over an existing pool.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Put upserts the encounter row.
func (s *Store) Put(ctx context.Context, e *triage.Encounter) error {
	ctx, span := tracer.Start(ctx, "pgstore.Put", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
	))
	defer span.End()

	inputsJSON, err := json.Marshal(e.Inputs)
	if err != nil {
		return spanErr(span, fmt.Errorf("marshal inputs: %w", err))
	}
	signalsJSON, err := json.Marshal(e.Signals)
	if err != nil {
		return spanErr(span, fmt.Errorf("marshal signals: %w", err))
	}

	query := `INSERT INTO encounters (id, age, gender, state, inputs, signals, latest_version, created_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	ON CONFLICT (id) DO UPDATE SET
		state          = EXCLUDED.state,
		inputs         = EXCLUDED.inputs,
		signals        = EXCLUDED.signals,
		latest_version = EXCLUDED.latest_version`

	if _, err := s.pool.Exec(ctx, query,
		e.ID, e.Age, e.Gender, string(e.State), inputsJSON, signalsJSON, e.LatestVersion, e.CreatedAt,
	); err != nil {
		return spanErr(span, fmt.Errorf("upsert encounter: %w", err))
	}
	return nil
}

// Get retrieves an encounter by ID.
func (s *Store) Get(ctx context.Context, id string) (*triage.Encounter, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Get", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT id, age, gender, state, inputs, signals, latest_version, created_at
	FROM encounters WHERE id = $1`

	var (
		e           triage.Encounter
		state       string
		inputsJSON  []byte
		signalsJSON []byte
	)
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&e.ID, &e.Age, &e.Gender, &state, &inputsJSON, &signalsJSON, &e.LatestVersion, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, spanErr(span, fmt.Errorf("scan encounter: %w", err))
	}

	e.State = triage.State(state)
	if len(inputsJSON) > 0 {
		var rec patient.Record
		if err := json.Unmarshal(inputsJSON, &rec); err != nil {
			return nil, false, spanErr(span, fmt.Errorf("unmarshal inputs: %w", err))
		}
		e.Inputs = &rec
	}
	if len(signalsJSON) > 0 {
		if err := json.Unmarshal(signalsJSON, &e.Signals); err != nil {
			return nil, false, spanErr(span, fmt.Errorf("unmarshal signals: %w", err))
		}
	}

	return &e, true, nil
}

// AppendAssessment inserts one immutable assessment row. A version
// conflict is an error: audit records are never overwritten.
func (s *Store) AppendAssessment(ctx context.Context, encounterID string, a *triage.RiskAssessment) error {
	ctx, span := tracer.Start(ctx, "pgstore.AppendAssessment", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
	))
	defer span.End()

	rulesJSON, err := json.Marshal(stringsOrEmpty(a.TriggeredRules))
	if err != nil {
		return spanErr(span, fmt.Errorf("marshal triggered rules: %w", err))
	}
	errorsJSON, err := json.Marshal(stringsOrEmpty(a.RuleErrors))
	if err != nil {
		return spanErr(span, fmt.Errorf("marshal rule errors: %w", err))
	}
	droppedJSON, err := json.Marshal(a.DroppedSources)
	if err != nil {
		return spanErr(span, fmt.Errorf("marshal dropped sources: %w", err))
	}
	signalsJSON, err := json.Marshal(a.Signals)
	if err != nil {
		return spanErr(span, fmt.Errorf("marshal signals: %w", err))
	}

	query := `INSERT INTO assessments (
		encounter_id, version, score, tier, action, follow_up_hours,
		triggered_rules, rule_errors, dropped_sources, fail_closed, signals, created_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`

	if _, err := s.pool.Exec(ctx, query,
		encounterID, a.Version, a.Score, a.Tier.String(), string(a.Action), a.FollowUpHours,
		rulesJSON, errorsJSON, droppedJSON, a.FailClosed, signalsJSON, a.CreatedAt,
	); err != nil {
		return spanErr(span, fmt.Errorf("insert assessment: %w", err))
	}
	return nil
}

// Assessments returns the audit trail in version order.
func (s *Store) Assessments(ctx context.Context, encounterID string) ([]*triage.RiskAssessment, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Assessments", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT version, score, tier, action, follow_up_hours,
		triggered_rules, rule_errors, dropped_sources, fail_closed, signals, created_at
	FROM assessments WHERE encounter_id = $1 ORDER BY version`

	rows, err := s.pool.Query(ctx, query, encounterID)
	if err != nil {
		return nil, spanErr(span, fmt.Errorf("query assessments: %w", err))
	}
	defer rows.Close()

	var out []*triage.RiskAssessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, spanErr(span, err)
		}
		a.CreatedAt = a.CreatedAt.UTC()
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, spanErr(span, fmt.Errorf("iterate assessments: %w", err))
	}
	return out, nil
}

func scanAssessment(row pgx.Row) (*triage.RiskAssessment, error) {
	var (
		a           triage.RiskAssessment
		tier        string
		action      string
		rulesJSON   []byte
		errorsJSON  []byte
		droppedJSON []byte
		signalsJSON []byte
		createdAt   time.Time
	)
	if err := row.Scan(
		&a.Version, &a.Score, &tier, &action, &a.FollowUpHours,
		&rulesJSON, &errorsJSON, &droppedJSON, &a.FailClosed, &signalsJSON, &createdAt,
	); err != nil {
		return nil, fmt.Errorf("scan assessment: %w", err)
	}

	parsed, err := triage.ParseTier(tier)
	if err != nil {
		return nil, err
	}
	a.Tier = parsed
	a.Action = triage.Action(action)
	a.CreatedAt = createdAt

	if err := json.Unmarshal(rulesJSON, &a.TriggeredRules); err != nil {
		return nil, fmt.Errorf("unmarshal triggered rules: %w", err)
	}
	if err := json.Unmarshal(errorsJSON, &a.RuleErrors); err != nil {
		return nil, fmt.Errorf("unmarshal rule errors: %w", err)
	}
	if err := json.Unmarshal(droppedJSON, &a.DroppedSources); err != nil {
		return nil, fmt.Errorf("unmarshal dropped sources: %w", err)
	}
	if err := json.Unmarshal(signalsJSON, &a.Signals); err != nil {
		return nil, fmt.Errorf("unmarshal signals: %w", err)
	}
	return &a, nil
}

func stringsOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func spanErr(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
