package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"idea-research/internal/models"
	"strings"
)

// AnalysisRequest carries the idea and options for a one-shot analysis
type AnalysisRequest struct {
	IdeaTitle       string
	IdeaDescription string
	TargetMarket    string
	UserGoals       string
}

// DirectAnalyzer performs the one-shot analyses dispatched by task kind
type DirectAnalyzer interface {
	AnalyzeMarket(ctx context.Context, req AnalysisRequest) (*models.MarketAnalysisResult, error)
	AnalyzeCompetitors(ctx context.Context, req AnalysisRequest) (*models.CompetitiveAnalysisResult, error)
	GenerateSwot(ctx context.Context, req AnalysisRequest) (*models.SwotAnalysisResult, error)
	SegmentCustomers(ctx context.Context, req AnalysisRequest) (*models.CustomerSegmentationResult, error)
	GenerateEnhancedSwot(ctx context.Context, req AnalysisRequest, competitive *models.CompetitiveAnalysisResult) (*models.SwotAnalysisResult, error)
	AnalyzeStrategicImplications(ctx context.Context, req AnalysisRequest, swot *models.SwotAnalysisResult) (*models.StrategicImplicationsResult, error)
}

// PriorResults looks up the latest completed result of a kind within a session
type PriorResults interface {
	LatestResult(sessionID string, kind models.TaskKind) (any, bool)
}

// NewAnalysisExecutors builds the dispatch table for every analysis task kind
// and for single pipeline phases. StrategyExecution is registered separately
// by the research service.
func NewAnalysisExecutors(analyzer DirectAnalyzer, provider AnalysisProvider, prior PriorResults) ExecutorRegistry {
	phases := NewPhaseExecutor(provider)

	return ExecutorRegistry{
		models.TaskKindMarketAnalysis: {
			Validate: requireIdeaDescription,
			Execute: oneShot(func(ctx context.Context, run *TaskRun, req AnalysisRequest) (any, error) {
				return analyzer.AnalyzeMarket(ctx, req)
			}),
		},
		models.TaskKindCompetitiveAnalysis: {
			Validate: requireIdeaDescription,
			Execute: oneShot(func(ctx context.Context, run *TaskRun, req AnalysisRequest) (any, error) {
				return analyzer.AnalyzeCompetitors(ctx, req)
			}),
		},
		models.TaskKindSwotAnalysis: {
			Validate: requireIdeaDescription,
			Execute: oneShot(func(ctx context.Context, run *TaskRun, req AnalysisRequest) (any, error) {
				return analyzer.GenerateSwot(ctx, req)
			}),
		},
		models.TaskKindCustomerSegmentation: {
			Validate: requireIdeaDescription,
			Execute: oneShot(func(ctx context.Context, run *TaskRun, req AnalysisRequest) (any, error) {
				return analyzer.SegmentCustomers(ctx, req)
			}),
		},
		models.TaskKindEnhancedSwotAnalysis: {
			Validate: requireIdeaDescription,
			Execute: oneShot(func(ctx context.Context, run *TaskRun, req AnalysisRequest) (any, error) {
				competitive, err := prerequisite[models.CompetitiveAnalysisResult](run, prior, models.ParamCompetitiveAnalysis, models.TaskKindCompetitiveAnalysis)
				if err != nil {
					return nil, err
				}
				// A missing competitive analysis only makes the SWOT less informed
				return analyzer.GenerateEnhancedSwot(ctx, req, competitive)
			}),
		},
		models.TaskKindStrategicImplications: {
			Validate: requireIdeaDescription,
			Execute: oneShot(func(ctx context.Context, run *TaskRun, req AnalysisRequest) (any, error) {
				swot, err := prerequisite[models.SwotAnalysisResult](run, prior, models.ParamSwotAnalysis, models.TaskKindEnhancedSwotAnalysis, models.TaskKindSwotAnalysis)
				if err != nil {
					return nil, err
				}
				if swot == nil {
					return nil, errors.New("SWOT analysis result is required for strategic implications")
				}
				return analyzer.AnalyzeStrategicImplications(ctx, req, swot)
			}),
		},
		models.TaskKindPipelinePhase: {
			Validate: validatePipelinePhase,
			Execute: func(ctx context.Context, run *TaskRun) (any, error) {
				approach, _ := ParseApproach(run.Param(models.ParamApproach))
				config, err := GetApproachConfig(approach)
				if err != nil {
					return nil, err
				}
				priorInsights, err := decodeParam[[]models.ResearchInsight](run.Parameters, models.ParamPriorInsights)
				if err != nil {
					return nil, err
				}
				var insights []models.ResearchInsight
				if priorInsights != nil {
					insights = *priorInsights
				}

				run.ReportProgress(ctx, 30, "Analyzing data")
				insight, err := phases.ExecutePhase(context.WithoutCancel(ctx), run.Param(models.ParamPhase), config.AnalysisDepth,
					run.Param(models.ParamIdeaTitle), run.Param(models.ParamIdeaDescription), insights)
				if err != nil {
					return nil, err
				}
				return insight, nil
			},
		},
	}
}

// oneShot adapts a single analysis call into an executor
func oneShot(call func(ctx context.Context, run *TaskRun, req AnalysisRequest) (any, error)) ExecutorFunc {
	return func(ctx context.Context, run *TaskRun) (any, error) {
		req := AnalysisRequest{
			IdeaTitle:       run.Param(models.ParamIdeaTitle),
			IdeaDescription: run.Param(models.ParamIdeaDescription),
			TargetMarket:    run.Param(models.ParamTargetMarket),
			UserGoals:       run.Param(models.ParamUserGoals),
		}
		if req.IdeaTitle == "" {
			req.IdeaTitle = "Business idea"
		}

		run.ReportProgress(ctx, 30, "Analyzing data")
		result, err := call(context.WithoutCancel(ctx), run, req)
		if err != nil {
			return nil, NewAnalysisFailure("analyzer", string(run.Kind), err)
		}
		return result, nil
	}
}

func requireIdeaDescription(params map[string]any) error {
	if strings.TrimSpace(paramString(params, models.ParamIdeaDescription)) == "" {
		return fmt.Errorf("%s is required", models.ParamIdeaDescription)
	}
	return nil
}

func validatePipelinePhase(params map[string]any) error {
	if err := requireIdeaDescription(params); err != nil {
		return err
	}
	approach, err := ParseApproach(paramString(params, models.ParamApproach))
	if err != nil {
		return err
	}
	phase := paramString(params, models.ParamPhase)
	if !ApproachHasPhase(approach, phase) {
		return fmt.Errorf("%w: %q is not part of %s", ErrUnknownPhase, phase, approach)
	}
	if _, err := decodeParam[[]models.ResearchInsight](params, models.ParamPriorInsights); err != nil {
		return err
	}
	return nil
}

// prerequisite reads a typed input from the task parameters, falling back to
// the latest completed result of the given kinds in the same session.
// It returns nil without error when nothing is available.
func prerequisite[T any](run *TaskRun, prior PriorResults, key string, kinds ...models.TaskKind) (*T, error) {
	value, err := decodeParam[T](run.Parameters, key)
	if err != nil || value != nil {
		return value, err
	}
	if prior == nil {
		return nil, nil
	}
	for _, kind := range kinds {
		result, ok := prior.LatestResult(run.SessionID, kind)
		if !ok {
			continue
		}
		if typed, err := convert[T](result); err == nil && typed != nil {
			return typed, nil
		}
	}
	return nil, nil
}

// decodeParam converts a parameter into T. Parameters arrive either as Go
// values (internal callers) or as decoded JSON (HTTP callers).
func decodeParam[T any](params map[string]any, key string) (*T, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return nil, nil
	}
	value, err := convert[T](raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s parameter: %w", key, err)
	}
	return value, nil
}

func convert[T any](raw any) (*T, error) {
	switch v := raw.(type) {
	case *T:
		return v, nil
	case T:
		return &v, nil
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, err
	}
	return &value, nil
}

func paramString(params map[string]any, key string) string {
	raw, ok := params[key]
	if !ok || raw == nil {
		return ""
	}
	switch v := raw.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
