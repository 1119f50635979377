package models

import "time"

// Approach names one of the research strategies
type Approach string

const (
	ApproachQuickValidation Approach = "QuickValidation"
	ApproachMarketDeepDive  Approach = "MarketDeepDive"
	ApproachLaunchStrategy  Approach = "LaunchStrategy"
)

// AnalysisDepth controls how thorough each phase analysis is
type AnalysisDepth string

const (
	DepthSurface       AnalysisDepth = "surface"
	DepthComprehensive AnalysisDepth = "comprehensive"
	DepthDetailed      AnalysisDepth = "detailed"
)

// Phase names
const (
	PhaseMarketContext           = "market_context"
	PhaseCompetitiveIntelligence = "competitive_intelligence"
	PhaseCustomerUnderstanding   = "customer_understanding"
	PhaseStrategicAssessment     = "strategic_assessment"

	// Sentinels reported as CurrentPhase outside of phase work
	PhaseStrategicOptions = "strategic_options"
	PhaseNextSteps        = "next_steps"
	PhaseCompleted        = "completed"
)

// SessionStatus is the status of a strategy run
type SessionStatus string

const (
	SessionStatusPending    SessionStatus = "Pending"
	SessionStatusInProgress SessionStatus = "InProgress"
	SessionStatusCompleted  SessionStatus = "Completed"
	SessionStatusFailed     SessionStatus = "Failed"
)

// ApproachConfig is the static configuration of one approach
type ApproachConfig struct {
	Approach                Approach      `json:"approach"`
	DurationMinutesEstimate int           `json:"durationMinutesEstimate"`
	ComplexityLabel         string        `json:"complexityLabel"`
	Phases                  []string      `json:"phases"`
	AnalysisDepth           AnalysisDepth `json:"analysisDepth"`
	StrategicOptionsCount   int           `json:"strategicOptionsCount"`
}

// ApproachInfo describes an approach for clients choosing one
type ApproachInfo struct {
	ApproachConfig
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	BestFor      []string `json:"bestFor"`
	Includes     []string `json:"includes"`
	Deliverables []string `json:"deliverables"`
}

// Strategy is one research session driven through the phase pipeline
type Strategy struct {
	ID                       string            `json:"id" bson:"_id"`
	SessionID                string            `json:"sessionId" bson:"sessionId"`
	Title                    string            `json:"title" bson:"title"`
	Description              string            `json:"description" bson:"description"`
	IdeaTitle                string            `json:"ideaTitle" bson:"ideaTitle"`
	IdeaDescription          string            `json:"ideaDescription" bson:"ideaDescription"`
	Approach                 Approach          `json:"approach" bson:"approach"`
	Status                   SessionStatus     `json:"status" bson:"status"`
	Phases                   []string          `json:"phases" bson:"phases"`
	CurrentPhase             string            `json:"currentPhase" bson:"currentPhase"`
	ProgressPercentage       float64           `json:"progressPercentage" bson:"progressPercentage"`
	EstimatedDurationMinutes int               `json:"estimatedDurationMinutes" bson:"estimatedDurationMinutes"`
	Insights                 []ResearchInsight `json:"insights" bson:"insights"`
	Options                  []ResearchOption  `json:"options" bson:"options"`
	NextSteps                []string          `json:"nextSteps,omitempty" bson:"nextSteps,omitempty"`
	AnalysisConfidence       float64           `json:"analysisConfidence" bson:"analysisConfidence"`
	AnalysisCompleteness     float64           `json:"analysisCompleteness" bson:"analysisCompleteness"`
	ErrorMessage             string            `json:"errorMessage,omitempty" bson:"errorMessage,omitempty"`
	CustomParameters         map[string]any    `json:"customParameters,omitempty" bson:"customParameters,omitempty"`
	ReportURL                string            `json:"reportUrl,omitempty" bson:"reportUrl,omitempty"`
	CreatedAt                time.Time         `json:"createdAt" bson:"createdAt"`
	StartedAt                *time.Time        `json:"startedAt,omitempty" bson:"startedAt,omitempty"`
	CompletedAt              *time.Time        `json:"completedAt,omitempty" bson:"completedAt,omitempty"`
}

// RecommendedOption returns the option flagged as recommended, if any
func (s *Strategy) RecommendedOption() *ResearchOption {
	for i := range s.Options {
		if s.Options[i].IsRecommended {
			return &s.Options[i]
		}
	}
	return nil
}

// ResearchInsight is the output of one phase
type ResearchInsight struct {
	Phase           string         `json:"phase" bson:"phase"`
	Title           string         `json:"title,omitempty" bson:"title,omitempty"`
	Content         string         `json:"content" bson:"content"`
	ConfidenceScore float64        `json:"confidenceScore" bson:"confidenceScore"` // 0-1
	Metadata        map[string]any `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedAt       time.Time      `json:"createdAt" bson:"createdAt"`
}

// ResearchOption is one strategic recommendation
type ResearchOption struct {
	Title                         string          `json:"title" bson:"title"`
	ApproachTag                   string          `json:"approachTag" bson:"approachTag"` // niche_domination, cost_leadership, etc.
	Description                   string          `json:"description" bson:"description"`
	TargetSegment                 string          `json:"targetSegment" bson:"targetSegment"`
	ValueProposition              string          `json:"valueProposition" bson:"valueProposition"`
	GoToMarketStrategy            string          `json:"goToMarketStrategy" bson:"goToMarketStrategy"`
	OverallScore                  float64         `json:"overallScore" bson:"overallScore"` // 0-10
	TimelineToMarketMonths        int             `json:"timelineToMarketMonths" bson:"timelineToMarketMonths"`
	TimelineToProfitabilityMonths int             `json:"timelineToProfitabilityMonths" bson:"timelineToProfitabilityMonths"`
	SuccessProbabilityPercent     float64         `json:"successProbabilityPercent" bson:"successProbabilityPercent"` // 0-100
	EstimatedInvestmentUSD        float64         `json:"estimatedInvestmentUsd" bson:"estimatedInvestmentUsd"`
	IsRecommended                 bool            `json:"isRecommended" bson:"isRecommended"`
	RiskFactors                   []string        `json:"riskFactors" bson:"riskFactors"`
	MitigationStrategies          []string        `json:"mitigationStrategies" bson:"mitigationStrategies"`
	SuccessMetrics                []SuccessMetric `json:"successMetrics" bson:"successMetrics"`
	CreatedAt                     time.Time       `json:"createdAt" bson:"createdAt"`
}

// SuccessMetric is a measurable target attached to an option
type SuccessMetric struct {
	Metric    string `json:"metric" bson:"metric"`
	Target    string `json:"target" bson:"target"`
	Timeframe string `json:"timeframe" bson:"timeframe"`
}
