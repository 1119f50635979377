package services

import (
	"fmt"
	"idea-research/internal/models"
	"slices"
	"strings"
)

// Progress split: phase work fills the first 80%, option generation and
// next steps the rest.
const (
	PhaseProgressShare       = 80.0
	OptionsProgress          = 80.0
	NextStepsProgress        = 95.0
	CompletedProgress        = 100.0
	FixedAnalysisConfidence  = 0.82
	CompletedAnalysisPercent = 100.0
)

// StrategicApproachTags are assigned to generated options in order
var StrategicApproachTags = []string{
	"niche_domination",
	"market_leader_challenge",
	"innovation_leadership",
	"cost_leadership",
	"differentiation",
}

// StrategicApproachNames are the display names of the approach tags
var StrategicApproachNames = map[string]string{
	"niche_domination":        "Niche Market Leader",
	"market_leader_challenge": "Market Challenger",
	"innovation_leadership":   "Innovation Leader",
	"cost_leadership":         "Cost Leader",
	"differentiation":         "Differentiation",
}

var allPhases = []string{
	models.PhaseMarketContext,
	models.PhaseCompetitiveIntelligence,
	models.PhaseCustomerUnderstanding,
	models.PhaseStrategicAssessment,
}

var approachConfigs = map[models.Approach]models.ApproachConfig{
	models.ApproachQuickValidation: {
		Approach:                models.ApproachQuickValidation,
		DurationMinutesEstimate: 15,
		ComplexityLabel:         "beginner",
		Phases: []string{
			models.PhaseMarketContext,
			models.PhaseCompetitiveIntelligence,
			models.PhaseStrategicAssessment,
		},
		AnalysisDepth:         models.DepthSurface,
		StrategicOptionsCount: 2,
	},
	models.ApproachMarketDeepDive: {
		Approach:                models.ApproachMarketDeepDive,
		DurationMinutesEstimate: 45,
		ComplexityLabel:         "intermediate",
		Phases:                  allPhases,
		AnalysisDepth:           models.DepthComprehensive,
		StrategicOptionsCount:   3,
	},
	models.ApproachLaunchStrategy: {
		Approach:                models.ApproachLaunchStrategy,
		DurationMinutesEstimate: 90,
		ComplexityLabel:         "advanced",
		Phases:                  allPhases,
		AnalysisDepth:           models.DepthDetailed,
		StrategicOptionsCount:   5,
	},
}

var approachOrder = []models.Approach{
	models.ApproachQuickValidation,
	models.ApproachMarketDeepDive,
	models.ApproachLaunchStrategy,
}

var approachNextSteps = map[models.Approach][]string{
	models.ApproachQuickValidation: {
		"Validate key assumptions with target customers",
		"Create minimum viable product (MVP) prototype",
		"Test value proposition with early adopters",
		"Gather initial customer feedback",
	},
	models.ApproachMarketDeepDive: {
		"Conduct detailed customer interviews",
		"Develop comprehensive business model",
		"Create detailed go-to-market strategy",
		"Assess funding requirements and options",
		"Build strategic partnerships",
	},
	models.ApproachLaunchStrategy: {
		"Finalize product roadmap and specifications",
		"Secure initial funding or investment",
		"Build founding team and key partnerships",
		"Create detailed launch timeline and milestones",
		"Establish success metrics and tracking systems",
		"Develop risk mitigation strategies",
	},
}

// GetApproachConfig returns a copy of the configuration for an approach
func GetApproachConfig(approach models.Approach) (models.ApproachConfig, error) {
	config, ok := approachConfigs[approach]
	if !ok {
		return models.ApproachConfig{}, fmt.Errorf("%w: %q", ErrUnknownApproach, approach)
	}
	config.Phases = slices.Clone(config.Phases)
	return config, nil
}

// ParseApproach accepts an approach name case-insensitively
func ParseApproach(value string) (models.Approach, error) {
	normalized := strings.ToLower(strings.NewReplacer("-", "", "_", "", " ", "").Replace(value))
	for _, approach := range approachOrder {
		if strings.ToLower(string(approach)) == normalized {
			return approach, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownApproach, value)
}

// ApproachHasPhase reports whether phase is part of the approach's pipeline
func ApproachHasPhase(approach models.Approach, phase string) bool {
	config, ok := approachConfigs[approach]
	return ok && slices.Contains(config.Phases, phase)
}

// ListApproaches returns the approach catalogue in order of increasing depth
func ListApproaches() []models.ApproachInfo {
	infos := make([]models.ApproachInfo, 0, len(approachOrder))
	for _, approach := range approachOrder {
		config, _ := GetApproachConfig(approach)
		info := approachDescriptions[approach]
		info.ApproachConfig = config
		infos = append(infos, info)
	}
	return infos
}

// NextSteps returns the approach's checklist followed by follow-ups for the
// recommended option, if there is one
func NextSteps(approach models.Approach, recommended *models.ResearchOption) []string {
	steps := slices.Clone(approachNextSteps[approach])
	if recommended == nil {
		return steps
	}
	return append(steps,
		fmt.Sprintf("Execute %s strategy", strings.ReplaceAll(recommended.ApproachTag, "_", " ")),
		fmt.Sprintf("Focus on %s segment", recommended.TargetSegment),
		"Monitor success metrics and adjust strategy as needed",
	)
}

var approachDescriptions = map[models.Approach]models.ApproachInfo{
	models.ApproachQuickValidation: {
		Title:       "Quick Validation",
		Description: "Rapid validation of core business assumptions",
		BestFor: []string{
			"Early-stage ideas needing validation",
			"Quick go/no-go decisions",
			"Limited time or resources",
		},
		Includes: []string{
			"Market opportunity assessment",
			"Basic competitive analysis",
			"Strategic recommendation",
			"Go/no-go decision framework",
		},
		Deliverables: []string{
			"Market context overview",
			"Competitive landscape summary",
			"2 strategic options",
			"Recommendation with reasoning",
		},
	},
	models.ApproachMarketDeepDive: {
		Title:       "Market Deep-Dive",
		Description: "Comprehensive market analysis with strategic recommendations",
		BestFor: []string{
			"Well-defined business ideas",
			"Strategic planning and positioning",
			"Investor presentations",
		},
		Includes: []string{
			"Detailed market analysis",
			"Comprehensive competitive intelligence",
			"Customer segment analysis",
			"SWOT analysis",
			"Strategic options evaluation",
		},
		Deliverables: []string{
			"Market sizing and growth analysis",
			"Competitive positioning map",
			"Customer segment priorities",
			"3 strategic options with SWOT",
			"Implementation recommendations",
		},
	},
	models.ApproachLaunchStrategy: {
		Title:       "Launch Strategy",
		Description: "Complete launch strategy with implementation roadmap",
		BestFor: []string{
			"Pre-launch businesses",
			"Detailed business planning",
			"Funding and investment decisions",
		},
		Includes: []string{
			"Everything in Market Deep-Dive plus:",
			"Go-to-market strategy",
			"Revenue model analysis",
			"Risk assessment & mitigation",
			"Resource planning",
			"Success metrics definition",
		},
		Deliverables: []string{
			"Complete market research report",
			"5 strategic options with detailed analysis",
			"Go-to-market roadmap",
			"Financial projections",
			"Risk mitigation strategies",
			"Implementation timeline",
		},
	},
}
