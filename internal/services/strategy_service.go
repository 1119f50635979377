package services

import (
	"context"
	"fmt"
	"idea-research/internal/models"
	"idea-research/internal/utils"
	"log/slog"
	"maps"
	"slices"
	"time"
)

// AnalysisInput is what each phase analysis receives
type AnalysisInput struct {
	IdeaTitle       string
	IdeaDescription string
	Depth           models.AnalysisDepth
	PriorInsights   []models.ResearchInsight
}

// AnalysisProvider produces one insight per pipeline phase
type AnalysisProvider interface {
	AnalyzeMarketContext(ctx context.Context, input AnalysisInput) (models.ResearchInsight, error)
	AnalyzeCompetitiveIntelligence(ctx context.Context, input AnalysisInput) (models.ResearchInsight, error)
	AnalyzeCustomerSegments(ctx context.Context, input AnalysisInput) (models.ResearchInsight, error)
	AnalyzeStrategicAssessment(ctx context.Context, input AnalysisInput) (models.ResearchInsight, error)
}

// OptionGenerator turns accumulated insights into strategic options
type OptionGenerator interface {
	GenerateOptions(ctx context.Context, ideaTitle, ideaDescription string, insights []models.ResearchInsight, count int) ([]models.ResearchOption, error)
}

// ProgressCallback is invoked at every pipeline checkpoint. It runs on the
// pipeline goroutine and must return quickly.
type ProgressCallback func(strategyID, phase string, progress float64)

type phaseAnalyzer func(AnalysisProvider, context.Context, AnalysisInput) (models.ResearchInsight, error)

var phaseAnalyzers = map[string]phaseAnalyzer{
	models.PhaseMarketContext:           AnalysisProvider.AnalyzeMarketContext,
	models.PhaseCompetitiveIntelligence: AnalysisProvider.AnalyzeCompetitiveIntelligence,
	models.PhaseCustomerUnderstanding:   AnalysisProvider.AnalyzeCustomerSegments,
	models.PhaseStrategicAssessment:     AnalysisProvider.AnalyzeStrategicAssessment,
}

// PhaseExecutor runs a single named phase against the analysis provider
type PhaseExecutor struct {
	provider AnalysisProvider
}

// NewPhaseExecutor creates a new phase executor
func NewPhaseExecutor(provider AnalysisProvider) *PhaseExecutor {
	return &PhaseExecutor{provider: provider}
}

// ExecutePhase returns the insight for one phase of an approach
func (e *PhaseExecutor) ExecutePhase(ctx context.Context, phase string, depth models.AnalysisDepth, ideaTitle, ideaDescription string, prior []models.ResearchInsight) (models.ResearchInsight, error) {
	analyze, ok := phaseAnalyzers[phase]
	if !ok {
		return models.ResearchInsight{}, fmt.Errorf("%w: %q", ErrUnknownPhase, phase)
	}
	if e.provider == nil {
		return models.ResearchInsight{}, ErrNoAnalysisProvider
	}

	insight, err := analyze(e.provider, ctx, AnalysisInput{
		IdeaTitle:       ideaTitle,
		IdeaDescription: ideaDescription,
		Depth:           depth,
		PriorInsights:   slices.Clone(prior),
	})
	if err != nil {
		return models.ResearchInsight{}, NewAnalysisFailure("provider", phase, err)
	}

	insight.Phase = phase
	insight.ConfidenceScore = min(max(insight.ConfidenceScore, 0), 1)
	if insight.CreatedAt.IsZero() {
		insight.CreatedAt = time.Now()
	}
	return insight, nil
}

// StrategyPipeline drives a strategy through its approach's phases and then
// generates strategic options and next steps
type StrategyPipeline struct {
	phases  *PhaseExecutor
	options OptionGenerator
	logger  *slog.Logger
}

// NewStrategyPipeline creates a new pipeline
func NewStrategyPipeline(provider AnalysisProvider, options OptionGenerator, logger *slog.Logger) *StrategyPipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &StrategyPipeline{
		phases:  NewPhaseExecutor(provider),
		options: options,
		logger:  logger.With("component", "strategy_pipeline"),
	}
}

// Initiate builds a Pending strategy for the approach. It does not execute anything.
func (p *StrategyPipeline) Initiate(sessionID, ideaTitle, ideaDescription string, approach models.Approach, customParameters map[string]any) (*models.Strategy, error) {
	config, err := GetApproachConfig(approach)
	if err != nil {
		return nil, err
	}

	strategy := &models.Strategy{
		ID:                       utils.GenerateUUID(),
		SessionID:                sessionID,
		Title:                    fmt.Sprintf("%s Analysis: %s", approachDescriptions[approach].Title, ideaTitle),
		Description:              approachDescriptions[approach].Description,
		IdeaTitle:                ideaTitle,
		IdeaDescription:          ideaDescription,
		Approach:                 approach,
		Status:                   models.SessionStatusPending,
		Phases:                   config.Phases,
		ProgressPercentage:       0,
		EstimatedDurationMinutes: config.DurationMinutesEstimate,
		Insights:                 []models.ResearchInsight{},
		Options:                  []models.ResearchOption{},
		CustomParameters:         maps.Clone(customParameters),
		CreatedAt:                time.Now(),
	}

	p.logger.Info("initiated research strategy", "strategy_id", strategy.ID, "session_id", sessionID, "approach", approach)
	return strategy, nil
}

// Execute runs every phase in order, then generates options and next steps.
// Progress checkpoints are i/N*80 at the start of phase i, 80 before option
// generation, 95 before next steps and 100 on completion.
//
// Cancelling ctx stops the run at the next phase boundary; a running
// analysis call is allowed to finish first, so cancellation latency is at most
// one phase call. On any error the strategy is marked Failed with the error's
// message, keeps its last progress, and the error is returned.
func (p *StrategyPipeline) Execute(ctx context.Context, strategy *models.Strategy, ideaTitle, ideaDescription string, progress ProgressCallback) (*models.Strategy, error) {
	if strategy.Status != models.SessionStatusPending {
		return strategy, fmt.Errorf("strategy %s is %s, only Pending strategies can be executed", strategy.ID, strategy.Status)
	}

	logger := p.logger.With("strategy_id", strategy.ID, "approach", strategy.Approach)

	config, err := GetApproachConfig(strategy.Approach)
	if err != nil {
		return strategy, p.fail(logger, strategy, err)
	}

	now := time.Now()
	strategy.Status = models.SessionStatusInProgress
	strategy.StartedAt = &now
	strategy.CurrentPhase = config.Phases[0]
	strategy.Insights = []models.ResearchInsight{}
	strategy.Options = []models.ResearchOption{}

	checkpoint := func(phase string, percent float64) {
		strategy.CurrentPhase = phase
		strategy.ProgressPercentage = percent
		if progress != nil {
			progress(strategy.ID, phase, percent)
		}
	}

	// Collaborator calls are not interrupted by cancellation
	callCtx := context.WithoutCancel(ctx)

	logger.Info("starting research strategy execution", "phases", len(config.Phases))

	total := float64(len(config.Phases))
	for i, phase := range config.Phases {
		if err := cancelled(ctx); err != nil {
			return strategy, p.fail(logger, strategy, err)
		}

		checkpoint(phase, float64(i)/total*PhaseProgressShare)

		insight, err := p.phases.ExecutePhase(callCtx, phase, config.AnalysisDepth, ideaTitle, ideaDescription, strategy.Insights)
		if err != nil {
			return strategy, p.fail(logger.With("phase", phase), strategy, err)
		}
		strategy.Insights = append(strategy.Insights, insight)
		strategy.ProgressPercentage = float64(i+1) / total * PhaseProgressShare
	}

	if err := cancelled(ctx); err != nil {
		return strategy, p.fail(logger, strategy, err)
	}
	checkpoint(models.PhaseStrategicOptions, OptionsProgress)

	options, err := p.generateOptions(callCtx, ideaTitle, ideaDescription, strategy.Insights, config.StrategicOptionsCount)
	if err != nil {
		return strategy, p.fail(logger.With("phase", models.PhaseStrategicOptions), strategy, err)
	}
	strategy.Options = options

	checkpoint(models.PhaseNextSteps, NextStepsProgress)
	strategy.NextSteps = NextSteps(strategy.Approach, strategy.RecommendedOption())

	completed := time.Now()
	strategy.Status = models.SessionStatusCompleted
	strategy.CompletedAt = &completed
	strategy.AnalysisCompleteness = CompletedAnalysisPercent
	strategy.AnalysisConfidence = FixedAnalysisConfidence
	strategy.ErrorMessage = ""
	checkpoint(models.PhaseCompleted, CompletedProgress)

	logger.Info("completed research strategy", "insights", len(strategy.Insights), "options", len(strategy.Options))
	return strategy, nil
}

func (p *StrategyPipeline) generateOptions(ctx context.Context, ideaTitle, ideaDescription string, insights []models.ResearchInsight, count int) ([]models.ResearchOption, error) {
	if p.options == nil {
		return nil, ErrNoAnalysisProvider
	}

	options, err := p.options.GenerateOptions(ctx, ideaTitle, ideaDescription, slices.Clone(insights), count)
	if err != nil {
		return nil, NewAnalysisFailure("option generator", models.PhaseStrategicOptions, err)
	}
	if len(options) == 0 {
		return nil, NewAnalysisFailure("option generator", models.PhaseStrategicOptions, fmt.Errorf("no strategic options generated"))
	}
	if len(options) > count {
		options = options[:count]
	}

	now := time.Now()
	for i := range options {
		options[i].OverallScore = min(max(options[i].OverallScore, 0), 10)
		options[i].SuccessProbabilityPercent = min(max(options[i].SuccessProbabilityPercent, 0), 100)
		if options[i].CreatedAt.IsZero() {
			options[i].CreatedAt = now
		}
	}
	markRecommended(options)
	return options, nil
}

// markRecommended flags the highest-scored option; ties go to the earliest
func markRecommended(options []models.ResearchOption) {
	best := -1
	for i := range options {
		options[i].IsRecommended = false
		if best < 0 || options[i].OverallScore > options[best].OverallScore {
			best = i
		}
	}
	if best >= 0 {
		options[best].IsRecommended = true
	}
}

func (p *StrategyPipeline) fail(logger *slog.Logger, strategy *models.Strategy, err error) error {
	strategy.Status = models.SessionStatusFailed
	strategy.ErrorMessage = err.Error()
	logger.Error("failed to execute research strategy", "error", err, "progress", strategy.ProgressPercentage)
	return err
}

func cancelled(ctx context.Context) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", ErrResearchCancelled, context.Cause(ctx))
	}
	return nil
}
