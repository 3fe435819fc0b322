package diagnosis

import (
	"encoding/json"
	"time"
)

// SessionStatus mirrors the outcome of the last stage transition.
type SessionStatus string

const (
	SessionProcessing SessionStatus = "processing"
	SessionCompleted  SessionStatus = "completed"
	SessionError      SessionStatus = "error"
)

// StageStatus is the lifecycle of one stage within a session.
type StageStatus string

const (
	StagePending    StageStatus = "pending"
	StageProcessing StageStatus = "processing"
	StageCompleted  StageStatus = "completed"
	StageError      StageStatus = "error"
)

// StageRecord is the per-stage slot on a session. Result holds the stage's
// typed payload serialized as JSON; Error is set instead when the stage
// transitioned to error. A later write for the same stage overwrites the
// previous record in full.
type StageRecord struct {
	Status    StageStatus     `json:"status"`
	StartedAt *time.Time      `json:"startedAt,omitempty"`
	EndedAt   *time.Time      `json:"endedAt,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	Degraded  bool            `json:"degraded,omitempty"`
}

// StageSet holds one statically-typed record per stage, avoiding any
// string-keyed document paths in the persistence layer.
type StageSet struct {
	Translator      StageRecord `json:"translator"`
	SymptomAnalyzer StageRecord `json:"symptomAnalyzer"`
	Researcher      StageRecord `json:"researcher"`
	RiskAssessor    StageRecord `json:"riskAssessor"`
	Aggregator      StageRecord `json:"aggregator"`
}

// Record returns the slot for a known stage, or nil.
func (s *StageSet) Record(stage Stage) *StageRecord {
	switch stage {
	case StageTranslator:
		return &s.Translator
	case StageSymptomAnalyzer:
		return &s.SymptomAnalyzer
	case StageResearcher:
		return &s.Researcher
	case StageRiskAssessor:
		return &s.RiskAssessor
	case StageAggregator:
		return &s.Aggregator
	}
	return nil
}

// Session is the durable record of one diagnosis request. It is created once
// at pipeline start, mutated in place as stages transition, and never deleted
// by the pipeline.
type Session struct {
	ID        string           `json:"sessionId"`
	UserID    string           `json:"userId"`
	PatientID string           `json:"patientId,omitempty"`
	Input     PatientInput     `json:"input"`
	Stages    StageSet         `json:"stages"`
	Final     *DiagnosisResult `json:"finalDiagnosis,omitempty"`
	Status    SessionStatus    `json:"status"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// SessionSummary is the history-query projection of a session.
type SessionSummary struct {
	SessionID string           `json:"sessionId"`
	Final     *DiagnosisResult `json:"finalDiagnosis,omitempty"`
	Status    SessionStatus    `json:"status"`
	CreatedAt time.Time        `json:"createdAt"`
}

// AgentMetric is one immutable row per stage execution, recorded
// independently of the session document.
type AgentMetric struct {
	Agent     Stage     `json:"agent"`
	SessionID string    `json:"sessionId"`
	UserID    string    `json:"userId,omitempty"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt"`
	ElapsedMS int64     `json:"elapsedMs"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	Model     string    `json:"model,omitempty"`
	LatencyMS int64     `json:"latencyMs"`
}

// AgentAggregate is the per-agent rollup returned by metric aggregation.
type AgentAggregate struct {
	Agent        Stage   `json:"agent"`
	Count        int     `json:"count"`
	AvgElapsedMS float64 `json:"avgElapsedMs"`
	SuccessRatio float64 `json:"successRatio"`
}
