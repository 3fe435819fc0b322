// Package coordinator drives one diagnosis request end to end: it creates the
// session, resolves the patient record, runs the five stages as a DAG
// (translator, then symptom analysis, then research and risk in parallel,
// then aggregation), and persists the final result.
package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"mediflow/internal/agents"
	"mediflow/internal/diagnosis"
	"mediflow/internal/llmclient"
	"mediflow/internal/orchestrator"
	"mediflow/internal/pipeline"
	"mediflow/internal/store/patient"
	"mediflow/internal/store/session"
	"mediflow/internal/watch"
)

// Archiver receives a copy of each completed report. Optional; a nil archiver
// disables archival.
type Archiver interface {
	PutReport(ctx context.Context, sessionID string, report []byte) error
}

// Models selects the model per stage. Empty fields use the client default.
type Models struct {
	Translator      string
	SymptomAnalyzer string
	Researcher      string
	RiskAssessor    string
	Aggregator      string
}

// Coordinator owns the diagnosis pipeline wiring.
type Coordinator struct {
	llm      llmclient.Client
	sessions session.Store
	patients patient.Store
	orch     *orchestrator.Orchestrator
	hub      *watch.Hub
	archive  Archiver
	models   Models
}

func New(llm llmclient.Client, sessions session.Store, patients patient.Store,
	orch *orchestrator.Orchestrator, hub *watch.Hub, archive Archiver, models Models) *Coordinator {
	return &Coordinator{
		llm:      llm,
		sessions: sessions,
		patients: patients,
		orch:     orch,
		hub:      hub,
		archive:  archive,
		models:   models,
	}
}

// Diagnose runs the full pipeline for one patient input. It returns an error
// only when the session itself could not be created; once the session exists
// every outcome, including an infrastructure abort, is persisted on it and
// reflected in the result's apiStatus.
func (c *Coordinator) Diagnose(ctx context.Context, in diagnosis.PatientInput) (*diagnosis.Session, error) {
	if strings.TrimSpace(in.Symptoms) == "" {
		return nil, fmt.Errorf("coordinator: symptoms are required")
	}

	startedAt := time.Now()
	sess := &diagnosis.Session{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		Input:     in,
		Status:    diagnosis.SessionProcessing,
		CreatedAt: startedAt,
		UpdatedAt: startedAt,
	}
	markStagesPending(&sess.Stages)

	history := c.resolvePatient(ctx, sess, in)

	if err := c.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("coordinator: create session: %w", err)
	}

	var (
		translation diagnosis.TranslationResult
		analysis    diagnosis.SymptomAnalysis
		research    diagnosis.ResearchFindings
		risk        diagnosis.RiskAssessment
		final       diagnosis.DiagnosisResult
		outcomes    outcomeSet
	)

	stages := []pipeline.StageSpec{
		{
			Name: diagnosis.StageTranslator,
			Run: func(ctx context.Context) error {
				res, oc, err := orchestrator.Execute(
					ctx, c.orch, diagnosis.StageTranslator, sess.ID, sess.UserID,
					func(ctx context.Context) (diagnosis.TranslationResult, agents.Outcome) {
						return agents.Translator{LLM: c.llm, Model: c.models.Translator}.Run(ctx, agents.TranslateIn{
							Symptoms: in.Symptoms,
							Language: in.Language,
							History:  history,
						})
					})
				translation = res
				outcomes.set(diagnosis.StageTranslator, oc)
				return err
			},
		},
		{
			Name:     diagnosis.StageSymptomAnalyzer,
			Requires: []diagnosis.Stage{diagnosis.StageTranslator},
			Run: func(ctx context.Context) error {
				res, oc, err := orchestrator.Execute(
					ctx, c.orch, diagnosis.StageSymptomAnalyzer, sess.ID, sess.UserID,
					func(ctx context.Context) (diagnosis.SymptomAnalysis, agents.Outcome) {
						return agents.SymptomAnalyzer{LLM: c.llm, Model: c.models.SymptomAnalyzer}.Run(ctx, agents.AnalyzeIn{
							Text:   translation.TranslatedText,
							Age:    in.Age,
							Gender: in.Gender,
						})
					})
				analysis = res
				outcomes.set(diagnosis.StageSymptomAnalyzer, oc)
				return err
			},
		},
		{
			Name:     diagnosis.StageResearcher,
			Requires: []diagnosis.Stage{diagnosis.StageSymptomAnalyzer},
			Run: func(ctx context.Context) error {
				res, oc, err := orchestrator.Execute(
					ctx, c.orch, diagnosis.StageResearcher, sess.ID, sess.UserID,
					func(ctx context.Context) (diagnosis.ResearchFindings, agents.Outcome) {
						return agents.Researcher{LLM: c.llm, Model: c.models.Researcher}.Run(ctx, agents.ResearchIn{
							Text:     translation.TranslatedText,
							Location: in.Location,
						})
					})
				research = res
				outcomes.set(diagnosis.StageResearcher, oc)
				return err
			},
		},
		{
			Name:     diagnosis.StageRiskAssessor,
			Requires: []diagnosis.Stage{diagnosis.StageSymptomAnalyzer},
			Run: func(ctx context.Context) error {
				res, oc, err := orchestrator.Execute(
					ctx, c.orch, diagnosis.StageRiskAssessor, sess.ID, sess.UserID,
					func(ctx context.Context) (diagnosis.RiskAssessment, agents.Outcome) {
						return agents.RiskAssessor{LLM: c.llm, Model: c.models.RiskAssessor}.Run(ctx, agents.RiskIn{
							Input: in,
							Text:  translation.TranslatedText,
						})
					})
				risk = res
				outcomes.set(diagnosis.StageRiskAssessor, oc)
				return err
			},
		},
		{
			Name:     diagnosis.StageAggregator,
			Requires: []diagnosis.Stage{diagnosis.StageResearcher, diagnosis.StageRiskAssessor},
			Run: func(ctx context.Context) error {
				res, oc, err := orchestrator.Execute(
					ctx, c.orch, diagnosis.StageAggregator, sess.ID, sess.UserID,
					func(ctx context.Context) (diagnosis.DiagnosisResult, agents.Outcome) {
						return agents.Aggregator{LLM: c.llm, Model: c.models.Aggregator}.Run(ctx, agents.AggregateIn{
							Input:       in,
							Translation: translation,
							Analysis:    analysis,
							Research:    research,
							Risk:        risk,
						})
					})
				final = res
				outcomes.set(diagnosis.StageAggregator, oc)
				return err
			},
		},
	}

	runErr := pipeline.Run(ctx, stages)
	if runErr != nil {
		final = abortedResult(runErr)
	}

	final.Meta = buildMeta(c.llm, startedAt, &outcomes, runErr)
	status := diagnosis.SessionCompleted
	if runErr != nil {
		status = diagnosis.SessionError
	}

	if err := c.sessions.SetFinalResult(ctx, sess.ID, final); err != nil {
		log.Printf("coordinator: session %s: persist final result: %v", sess.ID, err)
	}
	if err := c.sessions.SetStatus(ctx, sess.ID, status); err != nil {
		log.Printf("coordinator: session %s: set status: %v", sess.ID, err)
	}
	c.publishTerminal(sess.ID, status, runErr)
	c.archiveReport(ctx, sess.ID, final)

	sess.Final = &final
	sess.Status = status
	return sess, nil
}

// outcomeSet collects per-stage outcomes from the DAG goroutines. Research
// and risk run concurrently, so writes are serialized here.
type outcomeSet struct {
	mu   sync.Mutex
	byID map[diagnosis.Stage]agents.Outcome
}

func (s *outcomeSet) set(stage diagnosis.Stage, oc agents.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byID == nil {
		s.byID = map[diagnosis.Stage]agents.Outcome{}
	}
	s.byID[stage] = oc
}

func (s *outcomeSet) get(stage diagnosis.Stage) (agents.Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	oc, ok := s.byID[stage]
	return oc, ok
}

// resolvePatient backfills the patient's demographics from the request and
// returns the longitudinal record for the translator. Lookup failures are
// logged and treated as no history; they never block a diagnosis.
func (c *Coordinator) resolvePatient(ctx context.Context, sess *diagnosis.Session, in diagnosis.PatientInput) *diagnosis.PatientRecord {
	if c.patients == nil || strings.TrimSpace(in.UserID) == "" {
		return nil
	}
	rec, err := c.patients.UpsertDemographics(ctx, in.UserID, diagnosis.Demographics{
		Age:             in.Age,
		Gender:          in.Gender,
		Location:        in.Location,
		PriorConditions: in.PriorConditions,
	})
	if err != nil {
		log.Printf("coordinator: session %s: patient lookup for %s: %v", sess.ID, in.UserID, err)
		return nil
	}
	if rec != nil {
		sess.PatientID = rec.UserID
	}
	return rec
}

func (c *Coordinator) publishTerminal(sessionID string, status diagnosis.SessionStatus, runErr error) {
	if c.hub == nil {
		return
	}
	ev := watch.Event{SessionID: sessionID, Session: status, Terminal: true}
	if runErr != nil {
		ev.Error = runErr.Error()
	}
	c.hub.Publish(ev)
}

func (c *Coordinator) archiveReport(ctx context.Context, sessionID string, final diagnosis.DiagnosisResult) {
	if c.archive == nil {
		return
	}
	report, err := json.Marshal(final)
	if err != nil {
		log.Printf("coordinator: session %s: encode report: %v", sessionID, err)
		return
	}
	if err := c.archive.PutReport(ctx, sessionID, report); err != nil {
		log.Printf("coordinator: session %s: archive report: %v", sessionID, err)
	}
}

// abortedResult is returned when the pipeline could not finish because of an
// infrastructure failure. It carries no diagnosis and a cautious default
// urgency; the failure itself is in the clinical notes and the session status.
func abortedResult(runErr error) diagnosis.DiagnosisResult {
	notes := "The diagnostic pipeline could not complete: " + runErr.Error() + ". " +
		"No automated assessment was produced."
	return diagnosis.DiagnosisResult{
		Primary: diagnosis.Candidate{
			Condition:  agents.FallbackCondition,
			Confidence: 0,
		},
		UrgencyLevel:  diagnosis.UrgencyMedium,
		ClinicalNotes: notes,
		RecommendedTests: []string{
			"In-person clinical evaluation",
		},
	}
}

// buildMeta derives the processing metadata, including the tri-state api
// status: error when the pipeline aborted, fallback when the client is
// unconfigured or any stage degraded, active otherwise.
func buildMeta(llm llmclient.Client, startedAt time.Time, outcomes *outcomeSet, runErr error) diagnosis.ProcessingMeta {
	meta := diagnosis.ProcessingMeta{
		ElapsedMS: time.Since(startedAt).Milliseconds(),
		StartedAt: startedAt,
		APIStatus: diagnosis.APIStatusActive,
	}
	degraded := false
	for _, stage := range diagnosis.Stages() {
		oc, ran := outcomes.get(stage)
		if !ran {
			continue
		}
		meta.AgentsUsed = append(meta.AgentsUsed, string(stage))
		degraded = degraded || oc.Degraded
	}
	switch {
	case runErr != nil:
		meta.APIStatus = diagnosis.APIStatusError
	case llm == nil || !llm.Configured() || degraded:
		meta.APIStatus = diagnosis.APIStatusFallback
	}
	return meta
}

func markStagesPending(set *diagnosis.StageSet) {
	for _, stage := range diagnosis.Stages() {
		set.Record(stage).Status = diagnosis.StagePending
	}
}
