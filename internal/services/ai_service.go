package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"idea-research/internal/config"
	"idea-research/internal/models"
	"idea-research/internal/validation"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// AIService runs every analysis through an OpenAI-compatible chat model.
// It implements AnalysisProvider, OptionGenerator and DirectAnalyzer.
type AIService struct {
	client *openai.Client
	config config.OpenAIConfig
	logger *slog.Logger
}

// NewAIService creates a new AI service
func NewAIService(cfg config.OpenAIConfig, logger *slog.Logger) *AIService {
	if logger == nil {
		logger = slog.Default()
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &AIService{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
		logger: logger.With("component", "ai_service"),
	}
}

const analystSystemPrompt = `You are a senior market research analyst helping founders evaluate business ideas.
Always respond with a single JSON object and nothing else. Use camelCase keys exactly as requested.
Scores must be numbers, not strings. Confidence scores are between 0 and 1.`

// complete sends one chat completion in JSON mode and returns the raw content
func (s *AIService) complete(ctx context.Context, operation, userPrompt string) (string, error) {
	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	request := openai.ChatCompletionRequest{
		Model: s.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: analystSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: float32(s.config.Temperature),
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}
	if s.config.MaxTokens > 0 {
		request.MaxTokens = s.config.MaxTokens
	}

	start := time.Now()
	resp, err := s.client.CreateChatCompletion(ctx, request)
	if err != nil {
		return "", NewAnalysisFailure("openai", operation, fmt.Errorf("chat completion: %w", err))
	}
	if len(resp.Choices) == 0 {
		return "", NewAnalysisFailure("openai", operation, errors.New("no choices in response"))
	}

	s.logger.Debug("chat completion finished",
		"operation", operation,
		"model", resp.Model,
		"duration", time.Since(start).Round(time.Millisecond),
		"total_tokens", resp.Usage.TotalTokens,
	)

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", NewAnalysisFailure("openai", operation, errors.New("empty response content"))
	}
	return stripCodeFence(content), nil
}

// completeJSON asks the model for a JSON document, normalizes common type
// mistakes and validates it against the named schema
func completeJSON[T any](ctx context.Context, s *AIService, operation, schemaName, userPrompt string) (*T, error) {
	content, err := s.complete(ctx, operation, userPrompt)
	if err != nil {
		return nil, err
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		return nil, NewAnalysisFailure("openai", operation, fmt.Errorf("malformed JSON response: %w", err))
	}

	normalized, err := normalizeAnalysisData(data)
	if err != nil {
		return nil, NewAnalysisFailure("openai", operation, err)
	}

	value, err := validation.ValidateAndParse[T](string(normalized), schemaName)
	if err != nil {
		return nil, NewAnalysisFailure("openai", operation, err)
	}
	return value, nil
}

type insightResponse struct {
	Title           string         `json:"title"`
	Content         string         `json:"content"`
	ConfidenceScore float64        `json:"confidenceScore"`
	Metadata        map[string]any `json:"metadata"`
}

func (s *AIService) phaseInsight(ctx context.Context, phase string, input AnalysisInput, focus string) (models.ResearchInsight, error) {
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Business idea: %s\n", input.IdeaTitle)
	fmt.Fprintf(&prompt, "Description: %s\n", input.IdeaDescription)
	fmt.Fprintf(&prompt, "Analysis depth: %s\n\n", depthGuidance(input.Depth))
	if len(input.PriorInsights) > 0 {
		prompt.WriteString("Findings from earlier phases:\n")
		for _, prior := range input.PriorInsights {
			fmt.Fprintf(&prompt, "- %s: %s\n", prior.Phase, prior.Content)
		}
		prompt.WriteString("\n")
	}
	prompt.WriteString(focus)
	prompt.WriteString("\n\nRespond with JSON: {\"title\": string, \"content\": string (3-6 sentence summary), " +
		"\"confidenceScore\": number 0-1, \"metadata\": object with the structured figures you used}")

	resp, err := completeJSON[insightResponse](ctx, s, phase, validation.SchemaInsight, prompt.String())
	if err != nil {
		return models.ResearchInsight{}, err
	}

	return models.ResearchInsight{
		Phase:           phase,
		Title:           resp.Title,
		Content:         resp.Content,
		ConfidenceScore: resp.ConfidenceScore,
		Metadata:        resp.Metadata,
		CreatedAt:       time.Now(),
	}, nil
}

func (s *AIService) AnalyzeMarketContext(ctx context.Context, input AnalysisInput) (models.ResearchInsight, error) {
	return s.phaseInsight(ctx, models.PhaseMarketContext, input,
		"Assess the market context: market size in USD (metadata.market_size_usd), growth rate CAGR "+
			"(metadata.growth_rate_cagr), maturity stage (metadata.maturity_stage) and key trends (metadata.key_trends).")
}

func (s *AIService) AnalyzeCompetitiveIntelligence(ctx context.Context, input AnalysisInput) (models.ResearchInsight, error) {
	return s.phaseInsight(ctx, models.PhaseCompetitiveIntelligence, input,
		"Assess the competitive landscape: competitive density (metadata.competitive_density), main competitors "+
			"(metadata.competitors), barriers to entry (metadata.barriers_to_entry) and possible advantages "+
			"(metadata.competitive_advantages).")
}

func (s *AIService) AnalyzeCustomerSegments(ctx context.Context, input AnalysisInput) (models.ResearchInsight, error) {
	return s.phaseInsight(ctx, models.PhaseCustomerUnderstanding, input,
		"Identify the customers: primary segment (metadata.primary_segment), estimated segment size "+
			"(metadata.segment_size), pain points (metadata.pain_points) and value propositions (metadata.value_propositions).")
}

func (s *AIService) AnalyzeStrategicAssessment(ctx context.Context, input AnalysisInput) (models.ResearchInsight, error) {
	return s.phaseInsight(ctx, models.PhaseStrategicAssessment, input,
		"Give an overall strategic assessment: opportunity score 0-10 (metadata.opportunity_score), risk level "+
			"low/medium/high (metadata.risk_level), go/no-go recommendation (metadata.recommendation) and success "+
			"factors (metadata.success_factors).")
}

type optionsResponse struct {
	Options []models.ResearchOption `json:"options"`
}

// GenerateOptions asks for count strategic options built on the insights
func (s *AIService) GenerateOptions(ctx context.Context, ideaTitle, ideaDescription string, insights []models.ResearchInsight, count int) ([]models.ResearchOption, error) {
	tags := StrategicApproachTags[:min(count, len(StrategicApproachTags))]

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Business idea: %s\nDescription: %s\n\nResearch findings:\n", ideaTitle, ideaDescription)
	for _, insight := range insights {
		fmt.Fprintf(&prompt, "- %s (confidence %.2f): %s\n", insight.Phase, insight.ConfidenceScore, insight.Content)
	}
	fmt.Fprintf(&prompt, "\nPropose exactly %d distinct strategic options, one per approach tag in this order: %s.\n",
		count, strings.Join(tags, ", "))
	prompt.WriteString(`Respond with JSON: {"options": [{"title", "approachTag", "description", "targetSegment", ` +
		`"valueProposition", "goToMarketStrategy", "overallScore" (0-10), "timelineToMarketMonths" (integer), ` +
		`"timelineToProfitabilityMonths" (integer), "successProbabilityPercent" (0-100), "estimatedInvestmentUsd", ` +
		`"riskFactors" [string], "mitigationStrategies" [string], "successMetrics" [{"metric", "target", "timeframe"}]}]}`)

	resp, err := completeJSON[optionsResponse](ctx, s, models.PhaseStrategicOptions, validation.SchemaOptions, prompt.String())
	if err != nil {
		return nil, err
	}

	now := time.Now()
	for i := range resp.Options {
		resp.Options[i].IsRecommended = false
		resp.Options[i].CreatedAt = now
		if resp.Options[i].ApproachTag == "" && i < len(tags) {
			resp.Options[i].ApproachTag = tags[i]
		}
	}
	return resp.Options, nil
}

func ideaPrompt(req AnalysisRequest) string {
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Business idea: %s\nDescription: %s\n", req.IdeaTitle, req.IdeaDescription)
	if req.TargetMarket != "" {
		fmt.Fprintf(&prompt, "Target market: %s\n", req.TargetMarket)
	}
	if req.UserGoals != "" {
		fmt.Fprintf(&prompt, "Founder goals: %s\n", req.UserGoals)
	}
	prompt.WriteString("\n")
	return prompt.String()
}

func (s *AIService) AnalyzeMarket(ctx context.Context, req AnalysisRequest) (*models.MarketAnalysisResult, error) {
	prompt := ideaPrompt(req) + `Produce a comprehensive market analysis. Respond with JSON: {"executiveSummary", ` +
		`"marketSizeUsd", "growthRateCagr", "maturityStage", "keyTrends" [string], "opportunities" [string], ` +
		`"risks" [string], "confidenceScore" (0-1)}`

	result, err := completeJSON[models.MarketAnalysisResult](ctx, s, string(models.TaskKindMarketAnalysis), validation.SchemaMarketAnalysis, prompt)
	if err != nil {
		return nil, err
	}
	result.GeneratedAt = time.Now()
	return result, nil
}

func (s *AIService) AnalyzeCompetitors(ctx context.Context, req AnalysisRequest) (*models.CompetitiveAnalysisResult, error) {
	prompt := ideaPrompt(req) + `Analyze the competition. Respond with JSON: {"summary", "directCompetitors" ` +
		`[{"name", "description", "competitorType", "strengths", "weaknesses", "marketShare" (0-100)}], ` +
		`"indirectCompetitors" (same shape), "substituteSolutions" [string], "competitiveAdvantages" [string], ` +
		`"barriersToEntry" [string], "differentiationOpportunities" [string], "threatLevel" (0-10), "confidenceScore" (0-1)}`

	result, err := completeJSON[models.CompetitiveAnalysisResult](ctx, s, string(models.TaskKindCompetitiveAnalysis), validation.SchemaCompetitiveAnalysis, prompt)
	if err != nil {
		return nil, err
	}
	result.GeneratedAt = time.Now()
	return result, nil
}

const swotResponseShape = `Respond with JSON: {"strengths" [{"title", "description", "impact" (0-10)}], ` +
	`"weaknesses" (same shape), "opportunities" (same shape), "threats" (same shape), ` +
	`"strategicImplications" [string], "criticalSuccessFactors" [string], "overallAssessment", ` +
	`"riskLevel" (low|medium|high), "confidenceScore" (0-1), "summary"}`

func (s *AIService) GenerateSwot(ctx context.Context, req AnalysisRequest) (*models.SwotAnalysisResult, error) {
	prompt := ideaPrompt(req) + "Produce a SWOT analysis. " + swotResponseShape

	result, err := completeJSON[models.SwotAnalysisResult](ctx, s, string(models.TaskKindSwotAnalysis), validation.SchemaSwotAnalysis, prompt)
	if err != nil {
		return nil, err
	}
	result.Enhanced = false
	result.GeneratedAt = time.Now()
	return result, nil
}

func (s *AIService) GenerateEnhancedSwot(ctx context.Context, req AnalysisRequest, competitive *models.CompetitiveAnalysisResult) (*models.SwotAnalysisResult, error) {
	prompt := ideaPrompt(req)
	if competitive != nil {
		competitiveJSON, err := json.Marshal(competitive)
		if err != nil {
			return nil, fmt.Errorf("failed to encode competitive analysis: %w", err)
		}
		prompt += "Competitive analysis:\n" + string(competitiveJSON) + "\n\n"
	}
	prompt += "Produce an enhanced SWOT analysis grounded in the competitive analysis, weighting each factor by impact. " + swotResponseShape

	result, err := completeJSON[models.SwotAnalysisResult](ctx, s, string(models.TaskKindEnhancedSwotAnalysis), validation.SchemaSwotAnalysis, prompt)
	if err != nil {
		return nil, err
	}
	result.Enhanced = true
	result.GeneratedAt = time.Now()
	return result, nil
}

func (s *AIService) SegmentCustomers(ctx context.Context, req AnalysisRequest) (*models.CustomerSegmentationResult, error) {
	prompt := ideaPrompt(req) + `Segment the potential customers. Respond with JSON: {"primaryTargetSegment", ` +
		`"customerSegments" [{"name", "description", "sizeEstimate" (integer), "painPoints" [string], ` +
		`"willingnessToPay", "priority" (integer, 1 = highest)}], "customerPersonas" [{"name", "role", "goals", ` +
		`"frustrations"}], "unmetNeeds" [string], "confidenceScore" (0-1), "summary"}`

	result, err := completeJSON[models.CustomerSegmentationResult](ctx, s, string(models.TaskKindCustomerSegmentation), validation.SchemaCustomerSegmentation, prompt)
	if err != nil {
		return nil, err
	}
	result.GeneratedAt = time.Now()
	return result, nil
}

func (s *AIService) AnalyzeStrategicImplications(ctx context.Context, req AnalysisRequest, swot *models.SwotAnalysisResult) (*models.StrategicImplicationsResult, error) {
	swotJSON, err := json.Marshal(swot)
	if err != nil {
		return nil, fmt.Errorf("failed to encode SWOT analysis: %w", err)
	}
	prompt := ideaPrompt(req) + "SWOT analysis:\n" + string(swotJSON) + "\n\n" +
		`Derive the strategic implications. Respond with JSON: {"keyImplications" [string], "strategicPriorities" ` +
		`[string], "recommendedActions" [string], "riskMitigations" [string], "confidenceScore" (0-1), "summary"}`

	result, err := completeJSON[models.StrategicImplicationsResult](ctx, s, string(models.TaskKindStrategicImplications), validation.SchemaStrategicImplications, prompt)
	if err != nil {
		return nil, err
	}
	result.GeneratedAt = time.Now()
	return result, nil
}

func depthGuidance(depth models.AnalysisDepth) string {
	switch depth {
	case models.DepthSurface:
		return "surface (a quick, high-level read; keep it brief)"
	case models.DepthDetailed:
		return "detailed (launch-grade; include concrete figures and assumptions)"
	default:
		return "comprehensive (thorough, investor-ready)"
	}
}

// stripCodeFence removes a ```json fence some models add despite JSON mode
func stripCodeFence(content string) string {
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

// normalizeAnalysisData fixes type mismatches in model-generated JSON
func normalizeAnalysisData(data map[string]any) ([]byte, error) {
	fixTypes(data)
	return json.Marshal(data)
}

var (
	intFields = []string{
		"timelineToMarketMonths", "timelineToProfitabilityMonths", "sizeEstimate", "priority",
	}
	floatFields = []string{
		"overallScore", "successProbabilityPercent", "estimatedInvestmentUsd", "marketSizeUsd",
		"growthRateCagr", "threatLevel", "impact", "marketShare",
	}
)

// fixTypes recursively converts numeric strings and rescales percentages given
// for 0-1 confidence scores
func fixTypes(v any) {
	switch val := v.(type) {
	case map[string]any:
		for _, field := range intFields {
			if fieldVal, ok := val[field]; ok {
				switch typed := fieldVal.(type) {
				case string:
					if parsed, err := strconv.ParseFloat(strings.TrimSpace(typed), 64); err == nil {
						val[field] = int(parsed)
					}
				case float64:
					val[field] = int(typed)
				}
			}
		}

		for _, field := range floatFields {
			if fieldVal, ok := val[field]; ok {
				if fieldStr, ok := fieldVal.(string); ok {
					cleaned := strings.NewReplacer("$", "", ",", "", "%", "").Replace(strings.TrimSpace(fieldStr))
					if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
						val[field] = parsed
					}
				}
			}
		}

		if confidence, ok := val["confidenceScore"]; ok {
			if score, ok := toFloat(confidence); ok {
				if score > 1 && score <= 100 {
					score /= 100
				}
				val["confidenceScore"] = score
			}
		}

		for _, nestedVal := range val {
			fixTypes(nestedVal)
		}
	case []any:
		for _, item := range val {
			fixTypes(item)
		}
	}
}

func toFloat(v any) (float64, bool) {
	switch typed := v.(type) {
	case float64:
		return typed, true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(typed), "%"), 64)
		return parsed, err == nil
	}
	return 0, false
}
