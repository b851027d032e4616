package triage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/linnemanlabs/acuity/internal/patient"
	"github.com/linnemanlabs/go-core/log"
)

// Notifier delivers escalation decisions to a human channel. Notification
// failures are logged, never propagated into the pipeline result.
type Notifier interface {
	Send(ctx context.Context, d *EscalationDecision, a *RiskAssessment) error
}

// defaultBatchConcurrency bounds parallel encounters in batch mode.
const defaultBatchConcurrency = 8

// Service is the business boundary for triage operations: it owns the
// encounter state machine, the append-only assessment audit trail, and
// batch dispatch. The pipeline itself lives in Engine and stays pure.
type Service struct {
	store            Store
	engine           *Engine
	logger           log.Logger
	metrics          *Metrics
	notifier         Notifier
	batchConcurrency int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a new triage service. metrics and notifier may be nil.
func NewService(store Store, engine *Engine, logger log.Logger, metrics *Metrics, notifier Notifier, batchConcurrency int) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	if batchConcurrency <= 0 {
		batchConcurrency = defaultBatchConcurrency
	}
	return &Service{
		store:            store,
		engine:           engine,
		logger:           logger,
		metrics:          metrics,
		notifier:         notifier,
		batchConcurrency: batchConcurrency,
		locks:            make(map[string]*sync.Mutex),
	}
}

// lockEncounter serializes read-modify-write cycles per encounter so two
// concurrent scorings cannot read the same LatestVersion and append
// duplicate assessment versions. Cross-encounter work stays parallel.
func (s *Service) lockEncounter(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Create opens a new encounter in intake. Initial inputs are optional.
func (s *Service) Create(ctx context.Context, age int, gender string, inputs *patient.Record) (*Encounter, error) {
	rec := inputs
	if rec == nil {
		rec = &patient.Record{Age: age, Gender: gender}
	} else {
		rec.Age = age
		rec.Gender = gender
	}
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	enc := &Encounter{
		ID:        ulid.Make().String(),
		Age:       age,
		Gender:    gender,
		State:     StateIntake,
		Inputs:    rec,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Put(ctx, enc); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "encounter created", "encounter_id", enc.ID, "age", age)
	return enc, nil
}

// AddInputs merges additional modality payloads into an open encounter.
// Rejected once the encounter is cancelled.
func (s *Service) AddInputs(ctx context.Context, id string, rec *patient.Record) (*Encounter, error) {
	unlock := s.lockEncounter(id)
	defer unlock()

	enc, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	if enc.State == StateCancelled {
		return nil, fmt.Errorf("%w: cannot add inputs in state %s", ErrIncoherentState, enc.State)
	}
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	if enc.Inputs == nil {
		enc.Inputs = &patient.Record{Age: enc.Age, Gender: enc.Gender}
	}
	enc.Inputs.Merge(rec)

	if err := s.store.Put(ctx, enc); err != nil {
		return nil, err
	}
	return enc, nil
}

// Score runs the pipeline for an encounter and appends a new versioned
// assessment. Legal from intake (first scoring) and from decided or
// terminal states (re-scoring); the prior assessment is never mutated,
// only superseded.
func (s *Service) Score(ctx context.Context, id string) (*RiskAssessment, *EscalationDecision, error) {
	unlock := s.lockEncounter(id)
	defer unlock()

	enc, ok, err := s.store.Get(ctx, id)
	if err != nil {
		s.countScoring("error")
		return nil, nil, err
	}
	if !ok {
		s.countScoring("not_found")
		return nil, nil, ErrNotFound
	}

	if !CanTransition(enc.State, StateScoring) {
		s.countScoring("incoherent_state")
		return nil, nil, fmt.Errorf("%w: cannot score in state %s", ErrIncoherentState, enc.State)
	}

	enc.State = StateScoring
	if err := s.store.Put(ctx, enc); err != nil {
		s.countScoring("error")
		return nil, nil, err
	}

	a := s.engine.Run(ctx, enc)
	a.Version = enc.LatestVersion + 1

	if err := s.store.AppendAssessment(ctx, enc.ID, a); err != nil {
		s.countScoring("error")
		return nil, nil, err
	}

	enc.State = StateDecided
	enc.Signals = a.Signals
	enc.LatestVersion = a.Version
	if err := s.store.Put(ctx, enc); err != nil {
		s.countScoring("error")
		return nil, nil, err
	}

	// Disposition: the decided encounter settles into its terminal state.
	enc.State = disposition(a.Action)
	if err := s.store.Put(ctx, enc); err != nil {
		s.countScoring("error")
		return nil, nil, err
	}

	decision := Decide(enc.ID, a)
	if decision.Notify {
		if s.metrics != nil {
			s.metrics.EscalationsTotal.WithLabelValues(decision.Tier.String()).Inc()
		}
		if s.notifier != nil {
			// Detach from the request so a slow webhook cannot stall or
			// cancel an already-decided escalation.
			go s.notify(context.WithoutCancel(ctx), decision, a)
		}
	}

	s.countScoring("ok")
	return a, decision, nil
}

// Cancel aborts an encounter during intake or scoring. An encounter with
// an attached assessment cannot be cancelled, only superseded by
// re-scoring.
func (s *Service) Cancel(ctx context.Context, id string) error {
	unlock := s.lockEncounter(id)
	defer unlock()

	enc, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	if !CanTransition(enc.State, StateCancelled) {
		return fmt.Errorf("%w: cannot cancel in state %s", ErrIncoherentState, enc.State)
	}

	enc.State = StateCancelled
	if err := s.store.Put(ctx, enc); err != nil {
		return err
	}
	s.logger.Info(ctx, "encounter cancelled", "encounter_id", id)
	return nil
}

// Get retrieves an encounter by ID.
func (s *Service) Get(ctx context.Context, id string) (*Encounter, bool, error) {
	return s.store.Get(ctx, id)
}

// Assessments returns the full time-ordered audit trail for an encounter.
func (s *Service) Assessments(ctx context.Context, id string) ([]*RiskAssessment, error) {
	_, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return s.store.Assessments(ctx, id)
}

// BatchResult is the per-record outcome of batch processing.
type BatchResult struct {
	Index       int             `json:"index"`
	EncounterID string          `json:"encounter_id,omitempty"`
	Status      string          `json:"status"`
	Assessment  *RiskAssessment `json:"assessment,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// Batch processes an ordered collection of input records, each as an
// independent encounter. Records run concurrently with no shared mutable
// state between them; a malformed record yields a per-record error status
// without aborting the rest. Results keep input order.
func (s *Service) Batch(ctx context.Context, records []*patient.Record) []BatchResult {
	results := make([]BatchResult, len(records))

	if s.metrics != nil {
		s.metrics.BatchSize.Observe(float64(len(records)))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.batchConcurrency)

	for i, rec := range records {
		g.Go(func() error {
			results[i] = s.processRecord(gctx, i, rec)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures live in results

	if s.metrics != nil {
		for i := range results {
			s.metrics.BatchRecords.WithLabelValues(results[i].Status).Inc()
		}
	}
	return results
}

func (s *Service) processRecord(ctx context.Context, index int, rec *patient.Record) BatchResult {
	if rec == nil {
		return BatchResult{Index: index, Status: "error", Error: "empty record"}
	}

	enc, err := s.Create(ctx, rec.Age, rec.Gender, rec)
	if err != nil {
		return BatchResult{Index: index, Status: "error", Error: err.Error()}
	}

	a, _, err := s.Score(ctx, enc.ID)
	if err != nil {
		return BatchResult{Index: index, EncounterID: enc.ID, Status: "error", Error: err.Error()}
	}

	return BatchResult{Index: index, EncounterID: enc.ID, Status: "ok", Assessment: a}
}

func (s *Service) notify(ctx context.Context, d *EscalationDecision, a *RiskAssessment) {
	if err := s.notifier.Send(ctx, d, a); err != nil {
		s.logger.Error(ctx, err, "escalation notification failed",
			"encounter_id", d.EncounterID, "tier", d.Tier.String())
	}
}

func (s *Service) countScoring(result string) {
	if s.metrics != nil {
		s.metrics.ScoringsTotal.WithLabelValues(result).Inc()
	}
}

// disposition maps a decided action to its terminal state.
func disposition(a Action) State {
	switch a {
	case ActionImmediateEscalation, ActionUrgentConsult:
		return StateEscalated
	case ActionScheduleFollowup, ActionSpecialistReferral:
		return StateFollowupScheduled
	default:
		return StateRoutineClosed
	}
}
