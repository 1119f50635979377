package services

import (
	"context"
	"fmt"
	"idea-research/internal/models"
	"strings"
	"time"
)

// TemplateAnalyzer is a deterministic offline analyzer used in demo mode.
// It implements AnalysisProvider, OptionGenerator and DirectAnalyzer.
type TemplateAnalyzer struct {
	delay time.Duration // Simulated processing time per call
}

// NewTemplateAnalyzer creates a template analyzer. delay may be zero.
func NewTemplateAnalyzer(delay time.Duration) *TemplateAnalyzer {
	return &TemplateAnalyzer{delay: delay}
}

var industryKeywords = []struct {
	industry string
	keywords []string
}{
	{"fintech", []string{"payment", "banking", "finance", "crypto", "investment"}},
	{"ecommerce", []string{"shopping", "marketplace", "retail", "store", "commerce"}},
	{"saas", []string{"software", "platform", "tool", "service", "automation"}},
	{"healthtech", []string{"health", "medical", "wellness", "fitness", "therapy"}},
}

var industryAudiences = map[string]string{
	"fintech":    "Tech-savvy millennials and Gen Z seeking modern financial solutions",
	"ecommerce":  "Environmentally conscious consumers aged 25-45 with disposable income",
	"saas":       "Small to medium businesses looking to streamline operations",
	"healthtech": "Health-conscious individuals and healthcare providers",
	"technology": "Tech-savvy professionals",
}

// DetectIndustry guesses the industry from keywords in the description
func DetectIndustry(description string) string {
	lower := strings.ToLower(description)
	for _, entry := range industryKeywords {
		for _, keyword := range entry.keywords {
			if strings.Contains(lower, keyword) {
				return entry.industry
			}
		}
	}
	return "technology"
}

func (t *TemplateAnalyzer) wait(ctx context.Context) error {
	if t.delay <= 0 {
		return nil
	}
	timer := time.NewTimer(t.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (t *TemplateAnalyzer) insight(ctx context.Context, phase, title, content string, metadata map[string]any) (models.ResearchInsight, error) {
	if err := t.wait(ctx); err != nil {
		return models.ResearchInsight{}, err
	}
	return models.ResearchInsight{
		Phase:           phase,
		Title:           title,
		Content:         content,
		ConfidenceScore: 0.8,
		Metadata:        metadata,
		CreatedAt:       time.Now(),
	}, nil
}

func (t *TemplateAnalyzer) AnalyzeMarketContext(ctx context.Context, input AnalysisInput) (models.ResearchInsight, error) {
	return t.insight(ctx, models.PhaseMarketContext, "Market Context",
		fmt.Sprintf("Market analysis for %s: Industry showing strong growth potential with emerging opportunities.", input.IdeaTitle),
		map[string]any{
			"market_size_usd":  5000000000,
			"growth_rate_cagr": 12.5,
			"maturity_stage":   "growth",
			"key_trends":       []string{"Digital transformation", "AI adoption", "Sustainability"},
			"industry":         DetectIndustry(input.IdeaDescription),
			"depth":            string(input.Depth),
		})
}

func (t *TemplateAnalyzer) AnalyzeCompetitiveIntelligence(ctx context.Context, input AnalysisInput) (models.ResearchInsight, error) {
	return t.insight(ctx, models.PhaseCompetitiveIntelligence, "Competitive Intelligence",
		fmt.Sprintf("Competitive landscape for %s: Moderate competition with opportunities for differentiation.", input.IdeaTitle),
		map[string]any{
			"competitive_density":    "moderate",
			"barriers_to_entry":      []string{"Capital requirements", "Technical expertise", "Regulations"},
			"competitive_advantages": []string{"Innovation", "Customer focus", "Technology"},
		})
}

func (t *TemplateAnalyzer) AnalyzeCustomerSegments(ctx context.Context, input AnalysisInput) (models.ResearchInsight, error) {
	return t.insight(ctx, models.PhaseCustomerUnderstanding, "Customer Understanding",
		fmt.Sprintf("Customer analysis for %s: Clear target segments identified with validated pain points.", input.IdeaTitle),
		map[string]any{
			"primary_segment":    industryAudiences[DetectIndustry(input.IdeaDescription)],
			"segment_size":       100000,
			"pain_points":        []string{"Time constraints", "Complexity", "Cost"},
			"value_propositions": []string{"Time savings", "Cost reduction", "Better outcomes"},
		})
}

func (t *TemplateAnalyzer) AnalyzeStrategicAssessment(ctx context.Context, input AnalysisInput) (models.ResearchInsight, error) {
	return t.insight(ctx, models.PhaseStrategicAssessment, "Strategic Assessment",
		fmt.Sprintf("Strategic assessment for %s: Strong market opportunity with manageable risks.", input.IdeaTitle),
		map[string]any{
			"opportunity_score": 8.0,
			"risk_level":        "medium",
			"recommendation":    "go",
			"success_factors":   []string{"Product quality", "Customer acquisition", "Market timing"},
			"prior_insights":    len(input.PriorInsights),
		})
}

// GenerateOptions returns up to count options with descending scores
func (t *TemplateAnalyzer) GenerateOptions(ctx context.Context, ideaTitle, ideaDescription string, insights []models.ResearchInsight, count int) ([]models.ResearchOption, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}

	now := time.Now()
	options := make([]models.ResearchOption, 0, count)
	for i := 0; i < count && i < len(StrategicApproachTags); i++ {
		tag := StrategicApproachTags[i]
		options = append(options, models.ResearchOption{
			Title:                         StrategicApproachNames[tag] + " Strategy",
			ApproachTag:                   tag,
			Description:                   fmt.Sprintf("Strategic approach focusing on %s for %s", strings.ReplaceAll(tag, "_", " "), ideaTitle),
			TargetSegment:                 "Primary target segment identified in analysis",
			ValueProposition:              "Unique value proposition tailored to customer needs",
			GoToMarketStrategy:            "Direct sales, digital marketing, and strategic partnerships",
			OverallScore:                  8.0 - float64(i)*0.5,
			TimelineToMarketMonths:        12 + i*6,
			TimelineToProfitabilityMonths: 18 + i*8,
			SuccessProbabilityPercent:     float64(75 - i*5),
			EstimatedInvestmentUSD:        float64(500000 + i*250000),
			RiskFactors:                   []string{"Market competition", "Technical challenges", "Regulatory changes"},
			MitigationStrategies:          []string{"Focused execution", "Strong partnerships", "Agile development"},
			SuccessMetrics: []models.SuccessMetric{
				{Metric: "Customer Acquisition", Target: "1000 users", Timeframe: "12 months"},
				{Metric: "Revenue Growth", Target: "$500K", Timeframe: "18 months"},
			},
			CreatedAt: now,
		})
	}
	return options, nil
}

func (t *TemplateAnalyzer) AnalyzeMarket(ctx context.Context, req AnalysisRequest) (*models.MarketAnalysisResult, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	industry := DetectIndustry(req.IdeaDescription)
	return &models.MarketAnalysisResult{
		ExecutiveSummary: fmt.Sprintf("The %s market for %s is growing steadily with room for new entrants.", industry, req.IdeaTitle),
		MarketSizeUSD:    5000000000,
		GrowthRateCAGR:   12.5,
		MaturityStage:    "growth",
		KeyTrends:        []string{"Digital transformation", "AI adoption", "Sustainability"},
		Opportunities:    []string{"Underserved niches", "Mobile-first experiences", "Partnership channels"},
		Risks:            []string{"Incumbent response", "Customer acquisition cost", "Regulatory changes"},
		ConfidenceScore:  0.8,
		GeneratedAt:      time.Now(),
	}, nil
}

func (t *TemplateAnalyzer) AnalyzeCompetitors(ctx context.Context, req AnalysisRequest) (*models.CompetitiveAnalysisResult, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	market := req.TargetMarket
	if market == "" {
		market = "the target market"
	}
	return &models.CompetitiveAnalysisResult{
		Summary: fmt.Sprintf("Moderate competition in %s with opportunities for differentiation.", market),
		DirectCompetitors: []models.CompetitorProfile{
			{
				Name:           "Established Leader",
				Description:    "Incumbent with broad reach and a general-purpose offering",
				CompetitorType: "Direct",
				Strengths:      []string{"Brand recognition", "Distribution"},
				Weaknesses:     []string{"Slow to innovate", "Generic experience"},
				MarketShare:    35,
			},
		},
		IndirectCompetitors: []models.CompetitorProfile{
			{
				Name:           "Adjacent Platform",
				Description:    "Broader platform covering the use case as a side feature",
				CompetitorType: "Indirect",
				Strengths:      []string{"Large user base"},
				Weaknesses:     []string{"Shallow feature set"},
				MarketShare:    15,
			},
		},
		SubstituteSolutions:          []string{"Manual processes", "Informal networks"},
		CompetitiveAdvantages:        []string{"Innovation", "Customer focus", "Technology"},
		BarriersToEntry:              []string{"Capital requirements", "Technical expertise", "Regulations"},
		DifferentiationOpportunities: []string{"Specialised experience", "Trust and safety", "Pricing transparency"},
		ThreatLevel:                  5.5,
		ConfidenceScore:              0.8,
		GeneratedAt:                  time.Now(),
	}, nil
}

func (t *TemplateAnalyzer) GenerateSwot(ctx context.Context, req AnalysisRequest) (*models.SwotAnalysisResult, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	return t.swot(req, false, nil), nil
}

func (t *TemplateAnalyzer) GenerateEnhancedSwot(ctx context.Context, req AnalysisRequest, competitive *models.CompetitiveAnalysisResult) (*models.SwotAnalysisResult, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	return t.swot(req, true, competitive), nil
}

func (t *TemplateAnalyzer) swot(req AnalysisRequest, enhanced bool, competitive *models.CompetitiveAnalysisResult) *models.SwotAnalysisResult {
	result := &models.SwotAnalysisResult{
		Strengths: []models.SwotFactor{
			{Title: "Focused value proposition", Impact: 8},
			{Title: "Lean cost structure", Impact: 6.5},
		},
		Weaknesses: []models.SwotFactor{
			{Title: "Limited brand awareness", Impact: 6},
			{Title: "Small initial team", Impact: 5},
		},
		Opportunities: []models.SwotFactor{
			{Title: "Growing demand", Impact: 8},
			{Title: "Underserved segments", Impact: 7},
		},
		Threats: []models.SwotFactor{
			{Title: "Incumbent response", Impact: 6.5},
			{Title: "Regulatory changes", Impact: 4},
		},
		StrategicImplications:  []string{"Lead with the strongest differentiator", "Build trust early"},
		CriticalSuccessFactors: []string{"Product quality", "Customer acquisition", "Market timing"},
		OverallAssessment:      fmt.Sprintf("%s has a viable position with manageable risks.", req.IdeaTitle),
		RiskLevel:              "medium",
		Enhanced:               enhanced,
		ConfidenceScore:        0.8,
		Summary:                "Strengths and opportunities outweigh weaknesses and threats.",
		GeneratedAt:            time.Now(),
	}
	if competitive != nil {
		for _, competitor := range competitive.DirectCompetitors {
			result.Threats = append(result.Threats, models.SwotFactor{
				Title:       "Competition from " + competitor.Name,
				Description: competitor.Description,
				Impact:      min(competitor.MarketShare/5, 10),
			})
		}
		for _, opportunity := range competitive.DifferentiationOpportunities {
			result.Opportunities = append(result.Opportunities, models.SwotFactor{Title: opportunity, Impact: 6})
		}
		result.ConfidenceScore = 0.85
	}
	return result
}

func (t *TemplateAnalyzer) SegmentCustomers(ctx context.Context, req AnalysisRequest) (*models.CustomerSegmentationResult, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	primary := industryAudiences[DetectIndustry(req.IdeaDescription)]
	return &models.CustomerSegmentationResult{
		PrimaryTargetSegment: primary,
		CustomerSegments: []models.CustomerSegment{
			{
				Name:           primary,
				Description:    "Early adopters with an acute version of the problem",
				SizeEstimate:   100000,
				PainPoints:     []string{"Time constraints", "Complexity", "Cost"},
				WillingnessPay: "medium",
				Priority:       1,
			},
			{
				Name:           "Budget-conscious mainstream users",
				Description:    "Price-sensitive users who adopt once the product is proven",
				SizeEstimate:   400000,
				PainPoints:     []string{"Cost", "Trust"},
				WillingnessPay: "low",
				Priority:       2,
			},
		},
		CustomerPersonas: []models.CustomerPersona{
			{
				Name:         "Busy Professional",
				Role:         "Primary buyer",
				Goals:        []string{"Save time", "Reliable outcomes"},
				Frustrations: []string{"Unreliable providers", "Opaque pricing"},
			},
		},
		UnmetNeeds:      []string{"Time savings", "Cost reduction", "Better outcomes"},
		ConfidenceScore: 0.8,
		Summary:         "Two addressable segments with a clear early-adopter beachhead.",
		GeneratedAt:     time.Now(),
	}, nil
}

func (t *TemplateAnalyzer) AnalyzeStrategicImplications(ctx context.Context, req AnalysisRequest, swot *models.SwotAnalysisResult) (*models.StrategicImplicationsResult, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	result := &models.StrategicImplicationsResult{
		StrategicPriorities: []string{"Validate demand", "Secure early partnerships", "Build a repeatable acquisition channel"},
		RecommendedActions:  []string{"Run a focused pilot", "Instrument success metrics"},
		ConfidenceScore:     0.8,
		Summary:             fmt.Sprintf("Strategic implications for %s derived from the SWOT analysis.", req.IdeaTitle),
		GeneratedAt:         time.Now(),
	}
	for _, strength := range swot.Strengths {
		result.KeyImplications = append(result.KeyImplications, "Leverage "+strings.ToLower(strength.Title))
	}
	for _, threat := range swot.Threats {
		result.RiskMitigations = append(result.RiskMitigations, "Mitigate "+strings.ToLower(threat.Title))
	}
	return result, nil
}
