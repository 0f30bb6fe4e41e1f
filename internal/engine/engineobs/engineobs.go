package engineobs

import (
	"context"
	"time"

	"llm-defi-agent/internal/interfaces"
	"llm-defi-agent/internal/logger"
	"llm-defi-agent/internal/trace"
	"llm-defi-agent/internal/types"
)

type observableEngine struct {
	engine interfaces.Engine
}

var _ interfaces.Engine = (*observableEngine)(nil)

// Wrap adds a cycle span and start/finish logging around eng.
func Wrap(eng interfaces.Engine) interfaces.Engine {
	return &observableEngine{
		engine: eng,
	}
}

func (oe *observableEngine) RunDecisionCycle(ctx context.Context, params *types.CycleParams) (*types.CycleReport, error) {
	ctx, span := trace.StartCycleSpan(ctx)
	defer span.End()

	start := time.Now()

	logger.InfoSkip(ctx, 1, "Starting decision cycle",
		"params", params,
	)

	report, err := oe.engine.RunDecisionCycle(ctx, params)
	if report != nil {
		trace.Annotate(ctx, trace.AttrPair.String(report.Pair))
	}
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Decision cycle failed", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return report, err
	}

	fields := []interface{}{
		"pair", report.Pair,
		"executions", len(report.Executions),
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if d := report.Recommendations.Trading; d != nil {
		fields = append(fields, "trading_action", d.Action, "trading_confidence", d.Confidence)
	}
	if d := report.Recommendations.Lending; d != nil {
		fields = append(fields, "lending_action", d.Action, "lending_confidence", d.Confidence)
	}
	if len(report.Errors) > 0 {
		fields = append(fields, "errors", report.Errors)
	}
	logger.InfoSkip(ctx, 1, "Decision cycle completed", fields...)

	return report, nil
}

func (oe *observableEngine) Close() error {
	return oe.engine.Close()
}
