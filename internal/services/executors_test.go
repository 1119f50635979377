package services

import (
	"context"
	"encoding/json"
	"idea-research/internal/models"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// completeTask stores a completed task of kind with result in the session
func completeTask(t *testing.T, store *TaskStatusStore, id, sessionID string, kind models.TaskKind, result any) {
	t.Helper()
	store.Create(newDescriptor(id, sessionID, kind))
	require.True(t, store.MarkProcessing(id, 10, ""))
	require.True(t, store.Complete(id, result))
}

func runExecutor(t *testing.T, registry ExecutorRegistry, kind models.TaskKind, sessionID string, params map[string]any) (any, error) {
	t.Helper()
	executor, ok := registry[kind]
	require.True(t, ok, "no executor for %s", kind)
	if executor.Validate != nil {
		require.NoError(t, executor.Validate(params))
	}
	run := &TaskRun{TaskDescriptor: models.TaskDescriptor{
		TaskID:     "task-" + string(kind),
		SessionID:  sessionID,
		Kind:       kind,
		Parameters: params,
		CreatedAt:  time.Now(),
	}}
	return executor.Execute(context.Background(), run)
}

func ideaParams() map[string]any {
	return map[string]any{
		models.ParamIdeaTitle:       "Pet-sitting marketplace",
		models.ParamIdeaDescription: "A marketplace connecting pet owners with vetted sitters",
	}
}

func TestAnalysisExecutors_OneShotKinds(t *testing.T) {
	analyzer := NewTemplateAnalyzer(0)
	registry := NewAnalysisExecutors(analyzer, analyzer, NewTaskStatusStore())

	result, err := runExecutor(t, registry, models.TaskKindMarketAnalysis, "s", ideaParams())
	require.NoError(t, err)
	market, ok := result.(*models.MarketAnalysisResult)
	require.True(t, ok)
	assert.Contains(t, market.ExecutiveSummary, "ecommerce")
	assert.Contains(t, market.ExecutiveSummary, "Pet-sitting marketplace")

	result, err = runExecutor(t, registry, models.TaskKindCustomerSegmentation, "s", ideaParams())
	require.NoError(t, err)
	segments, ok := result.(*models.CustomerSegmentationResult)
	require.True(t, ok)
	assert.NotEmpty(t, segments.CustomerSegments)
}

func TestAnalysisExecutors_DefaultsIdeaTitle(t *testing.T) {
	analyzer := NewTemplateAnalyzer(0)
	registry := NewAnalysisExecutors(analyzer, analyzer, nil)

	result, err := runExecutor(t, registry, models.TaskKindSwotAnalysis, "s", map[string]any{
		models.ParamIdeaDescription: "Subscription meal kits",
	})
	require.NoError(t, err)
	assert.Contains(t, result.(*models.SwotAnalysisResult).OverallAssessment, "Business idea")
}

func TestEnhancedSwot_UsesSessionCompetitiveAnalysis(t *testing.T) {
	analyzer := NewTemplateAnalyzer(0)
	store := NewTaskStatusStore()
	registry := NewAnalysisExecutors(analyzer, analyzer, store)

	competitive, err := analyzer.AnalyzeCompetitors(context.Background(), AnalysisRequest{IdeaTitle: "x"})
	require.NoError(t, err)
	completeTask(t, store, "competitive", "s", models.TaskKindCompetitiveAnalysis, competitive)

	result, err := runExecutor(t, registry, models.TaskKindEnhancedSwotAnalysis, "s", ideaParams())
	require.NoError(t, err)
	swot := result.(*models.SwotAnalysisResult)
	assert.True(t, swot.Enhanced)
	assert.Contains(t, swotTitles(swot.Threats), "Competition from Established Leader")
	assert.Equal(t, 0.85, swot.ConfidenceScore)

	// Another session does not see it
	result, err = runExecutor(t, registry, models.TaskKindEnhancedSwotAnalysis, "other", ideaParams())
	require.NoError(t, err)
	assert.NotContains(t, swotTitles(result.(*models.SwotAnalysisResult).Threats), "Competition from Established Leader")
}

func TestEnhancedSwot_AcceptsDecodedJSONParameter(t *testing.T) {
	analyzer := NewTemplateAnalyzer(0)
	registry := NewAnalysisExecutors(analyzer, analyzer, nil)

	var competitive map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{
		"directCompetitors": [{"name": "Rover", "description": "Pet care app", "marketShare": 40}],
		"differentiationOpportunities": ["Insurance included"]
	}`), &competitive))

	params := ideaParams()
	params[models.ParamCompetitiveAnalysis] = competitive

	result, err := runExecutor(t, registry, models.TaskKindEnhancedSwotAnalysis, "s", params)
	require.NoError(t, err)
	swot := result.(*models.SwotAnalysisResult)
	assert.Contains(t, swotTitles(swot.Threats), "Competition from Rover")
	assert.Contains(t, swotTitles(swot.Opportunities), "Insurance included")
}

func TestStrategicImplications_RequiresSwot(t *testing.T) {
	analyzer := NewTemplateAnalyzer(0)
	store := NewTaskStatusStore()
	registry := NewAnalysisExecutors(analyzer, analyzer, store)

	_, err := runExecutor(t, registry, models.TaskKindStrategicImplications, "s", ideaParams())
	require.Error(t, err)
	assert.True(t, IsAnalysisFailure(err))
	assert.Contains(t, err.Error(), "SWOT analysis result is required")

	swot, err := analyzer.GenerateSwot(context.Background(), AnalysisRequest{IdeaTitle: "x"})
	require.NoError(t, err)
	completeTask(t, store, "swot", "s", models.TaskKindSwotAnalysis, swot)

	result, err := runExecutor(t, registry, models.TaskKindStrategicImplications, "s", ideaParams())
	require.NoError(t, err)
	implications := result.(*models.StrategicImplicationsResult)
	assert.Contains(t, implications.KeyImplications, "Leverage focused value proposition")
	assert.Contains(t, implications.RiskMitigations, "Mitigate incumbent response")
}

func TestStrategicImplications_PrefersEnhancedSwot(t *testing.T) {
	analyzer := NewTemplateAnalyzer(0)
	store := NewTaskStatusStore()
	registry := NewAnalysisExecutors(analyzer, analyzer, store)

	completeTask(t, store, "plain", "s", models.TaskKindSwotAnalysis, &models.SwotAnalysisResult{
		Strengths: []models.SwotFactor{{Title: "Plain"}},
	})
	completeTask(t, store, "enhanced", "s", models.TaskKindEnhancedSwotAnalysis, &models.SwotAnalysisResult{
		Strengths: []models.SwotFactor{{Title: "Enhanced"}},
		Enhanced:  true,
	})

	result, err := runExecutor(t, registry, models.TaskKindStrategicImplications, "s", ideaParams())
	require.NoError(t, err)
	assert.Equal(t, []string{"Leverage enhanced"}, result.(*models.StrategicImplicationsResult).KeyImplications)
}

func TestPipelinePhaseExecutor(t *testing.T) {
	analyzer := NewTemplateAnalyzer(0)
	registry := NewAnalysisExecutors(analyzer, analyzer, nil)

	params := ideaParams()
	params[models.ParamApproach] = "market-deep-dive"
	params[models.ParamPhase] = models.PhaseCustomerUnderstanding
	params[models.ParamPriorInsights] = []any{
		map[string]any{"phase": models.PhaseMarketContext, "content": "Growing market", "confidenceScore": 0.7},
	}

	result, err := runExecutor(t, registry, models.TaskKindPipelinePhase, "s", params)
	require.NoError(t, err)
	insight, ok := result.(models.ResearchInsight)
	require.True(t, ok)
	assert.Equal(t, models.PhaseCustomerUnderstanding, insight.Phase)
	assert.NotEmpty(t, insight.Content)
}

func TestValidatePipelinePhase(t *testing.T) {
	base := func() map[string]any {
		params := ideaParams()
		params[models.ParamApproach] = "QuickValidation"
		params[models.ParamPhase] = models.PhaseMarketContext
		return params
	}

	assert.NoError(t, validatePipelinePhase(base()))

	params := base()
	params[models.ParamApproach] = "Moonshot"
	assert.ErrorIs(t, validatePipelinePhase(params), ErrUnknownApproach)

	params = base()
	params[models.ParamPhase] = models.PhaseCustomerUnderstanding
	assert.ErrorIs(t, validatePipelinePhase(params), ErrUnknownPhase)

	params = base()
	params[models.ParamPriorInsights] = "not a list"
	assert.Error(t, validatePipelinePhase(params))
}

func swotTitles(factors []models.SwotFactor) []string {
	titles := make([]string, 0, len(factors))
	for _, factor := range factors {
		titles = append(titles, factor.Title)
	}
	return titles
}
