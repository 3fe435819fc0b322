package diagnosis

import "time"

// Stage names the five steps of the diagnosis pipeline. The set is closed;
// stores and the orchestrator reject anything else.
type Stage string

const (
	StageTranslator      Stage = "translator"
	StageSymptomAnalyzer Stage = "symptom_analyzer"
	StageResearcher      Stage = "researcher"
	StageRiskAssessor    Stage = "risk_assessor"
	StageAggregator      Stage = "aggregator"
)

// Stages lists all pipeline stages in topological order.
func Stages() []Stage {
	return []Stage{StageTranslator, StageSymptomAnalyzer, StageResearcher, StageRiskAssessor, StageAggregator}
}

// KnownStage reports whether s belongs to the closed stage set.
func KnownStage(s Stage) bool {
	switch s {
	case StageTranslator, StageSymptomAnalyzer, StageResearcher, StageRiskAssessor, StageAggregator:
		return true
	}
	return false
}

// PatientInput is the immutable request payload a caller hands to the
// pipeline. It is copied onto the session at creation and never mutated.
type PatientInput struct {
	Symptoms        string   `json:"symptoms"`
	Language        string   `json:"language"`
	Age             int      `json:"age,omitempty"`
	Gender          string   `json:"gender,omitempty"`
	Location        string   `json:"location,omitempty"`
	PriorConditions []string `json:"priorConditions,omitempty"`
	UserID          string   `json:"userId,omitempty"`
}

// TranslationResult is the translator stage payload.
type TranslationResult struct {
	TranslatedText    string   `json:"translatedText"`
	EmergencyKeywords []string `json:"emergencyKeywords"`
	CulturalNotes     string   `json:"culturalNotes,omitempty"`
}

// SymptomDetail is one structured symptom extracted by the analyzer.
// Severity is always within [1,10] once it leaves the agent.
type SymptomDetail struct {
	Name       string `json:"name"`
	Severity   int    `json:"severity"`
	Duration   string `json:"duration,omitempty"`
	BodySystem string `json:"bodySystem,omitempty"`
}

// SymptomAnalysis is the symptom analyzer stage payload.
type SymptomAnalysis struct {
	Symptoms     []SymptomDetail `json:"symptoms"`
	RedFlags     []string        `json:"redFlags"`
	UrgencyScore int             `json:"urgencyScore"`
}

// Finding is one literature/reference item from the researcher.
// EvidenceLevel is always within [1,5].
type Finding struct {
	Title         string `json:"title"`
	Summary       string `json:"summary,omitempty"`
	EvidenceLevel int    `json:"evidenceLevel"`
	Source        string `json:"source,omitempty"`
}

// ResearchFindings is the researcher stage payload.
type ResearchFindings struct {
	Findings      []Finding `json:"findings"`
	RegionalNotes string    `json:"regionalNotes,omitempty"`
	Outbreaks     []string  `json:"outbreaks"`
}

// RiskFactor is one factor identified by the risk assessor.
type RiskFactor struct {
	Factor      string `json:"factor"`
	Impact      Impact `json:"impact"`
	Description string `json:"description,omitempty"`
}

// RiskAssessment is the risk assessor stage payload.
type RiskAssessment struct {
	Factors         []RiskFactor `json:"riskFactors"`
	OverallRisk     Urgency      `json:"overallRisk"`
	Recommendations []string     `json:"recommendations"`
}

// Candidate is a diagnosis hypothesis with a canonical confidence percent.
type Candidate struct {
	Condition  string     `json:"condition"`
	Confidence Confidence `json:"confidence"`
	Code       string     `json:"code,omitempty"`
}

// APIStatus distinguishes live, degraded, and aborted runs. Callers that need
// to know whether a result is degraded read this field, not errors.
type APIStatus string

const (
	APIStatusActive   APIStatus = "active"
	APIStatusFallback APIStatus = "fallback"
	APIStatusError    APIStatus = "error"
)

// ProcessingMeta records how a result was produced.
type ProcessingMeta struct {
	ElapsedMS  int64     `json:"elapsedMs"`
	AgentsUsed []string  `json:"agentsUsed"`
	StartedAt  time.Time `json:"startedAt"`
	APIStatus  APIStatus `json:"apiStatus"`
}

// DiagnosisResult is the single artifact handed back to callers.
type DiagnosisResult struct {
	Primary          Candidate         `json:"primaryDiagnosis"`
	Differentials    []Candidate       `json:"differentialDiagnoses"`
	UrgencyLevel     Urgency           `json:"urgencyLevel"`
	RecommendedTests []string          `json:"recommendedTests,omitempty"`
	ClinicalNotes    string            `json:"clinicalNotes"`
	AgentInsights    map[string]string `json:"agentInsights,omitempty"`
	Meta             ProcessingMeta    `json:"processingMetadata"`
}

// PatientRecord holds longitudinal demographics keyed by user id. The
// coordinator only ever backfills demographic fields from a new request.
type PatientRecord struct {
	UserID          string    `json:"userId"`
	Age             int       `json:"age,omitempty"`
	Gender          string    `json:"gender,omitempty"`
	Location        string    `json:"location,omitempty"`
	PriorConditions []string  `json:"priorConditions,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Demographics carries the backfillable subset of a patient record.
type Demographics struct {
	Age             int
	Gender          string
	Location        string
	PriorConditions []string
}
