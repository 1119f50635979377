package models

import "time"

// MarketAnalysisResult is the output of a one-shot market analysis task
type MarketAnalysisResult struct {
	ExecutiveSummary string        `json:"executiveSummary"`
	MarketSizeUSD    float64       `json:"marketSizeUsd"`
	GrowthRateCAGR   float64       `json:"growthRateCagr"`
	MaturityStage    string        `json:"maturityStage"`
	KeyTrends        []string      `json:"keyTrends"`
	Opportunities    []string      `json:"opportunities"`
	Risks            []string      `json:"risks"`
	ConfidenceScore  float64       `json:"confidenceScore"`
	Depth            AnalysisDepth `json:"depth,omitempty"`
	GeneratedAt      time.Time     `json:"generatedAt"`
}

// CompetitorProfile describes one competitor
type CompetitorProfile struct {
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	CompetitorType string   `json:"competitorType"` // Direct, Indirect, Substitute
	Strengths      []string `json:"strengths"`
	Weaknesses     []string `json:"weaknesses"`
	MarketShare    float64  `json:"marketShare"`
}

// CompetitiveAnalysisResult is the output of a competitive analysis task
type CompetitiveAnalysisResult struct {
	Summary                      string              `json:"summary"`
	DirectCompetitors            []CompetitorProfile `json:"directCompetitors"`
	IndirectCompetitors          []CompetitorProfile `json:"indirectCompetitors"`
	SubstituteSolutions          []string            `json:"substituteSolutions"`
	CompetitiveAdvantages        []string            `json:"competitiveAdvantages"`
	BarriersToEntry              []string            `json:"barriersToEntry"`
	DifferentiationOpportunities []string            `json:"differentiationOpportunities"`
	ThreatLevel                  float64             `json:"threatLevel"` // 0-10
	ConfidenceScore              float64             `json:"confidenceScore"`
	GeneratedAt                  time.Time           `json:"generatedAt"`
}

// SwotFactor is one entry of a SWOT quadrant
type SwotFactor struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Impact      float64 `json:"impact"` // 0-10
}

// SwotAnalysisResult is the output of a (possibly enhanced) SWOT analysis task
type SwotAnalysisResult struct {
	Strengths              []SwotFactor `json:"strengths"`
	Weaknesses             []SwotFactor `json:"weaknesses"`
	Opportunities          []SwotFactor `json:"opportunities"`
	Threats                []SwotFactor `json:"threats"`
	StrategicImplications  []string     `json:"strategicImplications"`
	CriticalSuccessFactors []string     `json:"criticalSuccessFactors"`
	OverallAssessment      string       `json:"overallAssessment"`
	RiskLevel              string       `json:"riskLevel"` // low, medium, high
	Enhanced               bool         `json:"enhanced"`
	ConfidenceScore        float64      `json:"confidenceScore"`
	Summary                string       `json:"summary"`
	GeneratedAt            time.Time    `json:"generatedAt"`
}

// CustomerSegment is one addressable customer segment
type CustomerSegment struct {
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	SizeEstimate   int      `json:"sizeEstimate"`
	PainPoints     []string `json:"painPoints"`
	WillingnessPay string   `json:"willingnessToPay"`
	Priority       int      `json:"priority"` // 1 = highest
}

// CustomerPersona is an illustrative customer
type CustomerPersona struct {
	Name         string   `json:"name"`
	Role         string   `json:"role"`
	Goals        []string `json:"goals"`
	Frustrations []string `json:"frustrations"`
}

// CustomerSegmentationResult is the output of a customer segmentation task
type CustomerSegmentationResult struct {
	PrimaryTargetSegment string            `json:"primaryTargetSegment"`
	CustomerSegments     []CustomerSegment `json:"customerSegments"`
	CustomerPersonas     []CustomerPersona `json:"customerPersonas"`
	UnmetNeeds           []string          `json:"unmetNeeds"`
	ConfidenceScore      float64           `json:"confidenceScore"`
	Summary              string            `json:"summary"`
	GeneratedAt          time.Time         `json:"generatedAt"`
}

// StrategicImplicationsResult is the output of a strategic implications task
type StrategicImplicationsResult struct {
	KeyImplications     []string  `json:"keyImplications"`
	StrategicPriorities []string  `json:"strategicPriorities"`
	RecommendedActions  []string  `json:"recommendedActions"`
	RiskMitigations     []string  `json:"riskMitigations"`
	ConfidenceScore     float64   `json:"confidenceScore"`
	Summary             string    `json:"summary"`
	GeneratedAt         time.Time `json:"generatedAt"`
}
