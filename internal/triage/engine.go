package triage

import (
	"context"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

// EngineHooks let the caller observe pipeline events without coupling the
// engine to a metrics backend. Nil hooks are skipped.
type EngineHooks struct {
	OnSignal          func(source Source)
	OnModalityDropped func(source Source)
	OnRuleTriggered   func(ruleID string)
	OnRuleError       func(ruleID string)
	OnComplete        func(e *CompleteEvent)
}

// CompleteEvent summarizes one finished pipeline run.
type CompleteEvent struct {
	Tier       UrgencyTier
	Action     Action
	Score      float64
	Duration   float64
	FailClosed bool
	Signals    int
	Rules      int
}

// Engine runs the scoring pipeline: normalize, evaluate rules, score,
// classify. It is pure over its inputs - no store access, no I/O, no
// hidden state - so identical inputs always produce identical assessments.
type Engine struct {
	rules      *RuleSet
	classifier *Classifier
	logger     log.Logger
	hooks      EngineHooks
}

// NewEngine creates an engine over an immutable rule set and classifier.
func NewEngine(rules *RuleSet, classifier *Classifier, logger log.Logger, hooks EngineHooks) *Engine {
	if logger == nil {
		logger = log.Nop()
	}
	return &Engine{
		rules:      rules,
		classifier: classifier,
		logger:     logger,
		hooks:      hooks,
	}
}

// Run executes the pipeline for one encounter and always returns an
// assessment: per-modality and per-rule failures degrade gracefully, and
// any unexpected stage failure yields the fail-closed assessment rather
// than an error. Version is assigned by the caller when the assessment is
// appended to the audit trail.
func (e *Engine) Run(ctx context.Context, enc *Encounter) (a *RiskAssessment) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn(ctx, "pipeline stage panicked, failing closed",
				"encounter_id", enc.ID, "panic", r)
			a = e.failClosed(enc, start)
		}
	}()

	signals, dropped := Normalize(enc.Inputs)

	for i := range signals {
		if e.hooks.OnSignal != nil {
			e.hooks.OnSignal(signals[i].Source)
		}
	}
	for _, src := range dropped {
		if e.hooks.OnModalityDropped != nil {
			e.hooks.OnModalityDropped(src)
		}
		e.logger.Warn(ctx, "modality dropped as malformed",
			"encounter_id", enc.ID, "source", string(src))
	}

	ev := e.rules.Evaluate(signals, enc.Age, enc.Gender)
	for _, id := range ev.Triggered {
		if e.hooks.OnRuleTriggered != nil {
			e.hooks.OnRuleTriggered(id)
		}
	}
	for _, id := range ev.Errors {
		if e.hooks.OnRuleError != nil {
			e.hooks.OnRuleError(id)
		}
	}

	usable := false
	for i := range signals {
		if signals[i].Confidence > 0 {
			usable = true
			break
		}
	}

	score := Score(signals, ev.WeightSum)
	tier, action, followUp := e.classifier.Classify(score, ev, enc.Age, usable)

	a = &RiskAssessment{
		Score:          score,
		Tier:           tier,
		Action:         action,
		FollowUpHours:  followUp,
		TriggeredRules: ev.Triggered,
		RuleErrors:     ev.Errors,
		DroppedSources: dropped,
		FailClosed:     !usable,
		Signals:        signals,
		CreatedAt:      time.Now().UTC(),
	}

	duration := time.Since(start).Seconds()
	if e.hooks.OnComplete != nil {
		e.hooks.OnComplete(&CompleteEvent{
			Tier:       tier,
			Action:     action,
			Score:      score,
			Duration:   duration,
			FailClosed: a.FailClosed,
			Signals:    len(signals),
			Rules:      len(ev.Triggered),
		})
	}

	e.logger.Info(ctx, "assessment complete",
		"encounter_id", enc.ID,
		"score", score,
		"tier", tier.String(),
		"action", string(action),
		"rules_triggered", len(ev.Triggered),
		"signals", len(signals),
		"fail_closed", a.FailClosed,
		"duration", duration,
	)

	return a
}

// failClosed produces the conservative assessment used when a pipeline
// stage failed outright: no usable evidence, minimum MEDIUM.
func (e *Engine) failClosed(enc *Encounter, start time.Time) *RiskAssessment {
	tier, action, followUp := e.classifier.Classify(0, Evaluation{}, enc.Age, false)
	a := &RiskAssessment{
		Tier:          tier,
		Action:        action,
		FollowUpHours: followUp,
		FailClosed:    true,
		CreatedAt:     time.Now().UTC(),
	}
	if e.hooks.OnComplete != nil {
		e.hooks.OnComplete(&CompleteEvent{
			Tier:       tier,
			Action:     action,
			Duration:   time.Since(start).Seconds(),
			FailClosed: true,
		})
	}
	return a
}

// Decide derives the escalation decision for an appended assessment.
// Created synchronously with the assessment and never mutated.
func Decide(encounterID string, a *RiskAssessment) *EscalationDecision {
	deadline := 0
	if a.FollowUpHours != nil {
		deadline = *a.FollowUpHours
	}
	return &EscalationDecision{
		EncounterID:       encounterID,
		AssessmentVersion: a.Version,
		Notify:            a.Tier >= TierHigh,
		DeadlineHours:     deadline,
		Tier:              a.Tier,
		Action:            a.Action,
		CreatedAt:         a.CreatedAt,
	}
}
