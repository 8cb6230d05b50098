package service

import (
	"context"
	"time"

	"cdr.dev/slog"
)

// UseCaseEvent captures lightweight execution telemetry for a service use case.
type UseCaseEvent struct {
	Name     string
	Duration time.Duration
	Success  bool
	Err      error
	Fields   map[string]any
}

// UseCaseObserver receives use-case execution events.
type UseCaseObserver interface {
	ObserveUseCase(ctx context.Context, event UseCaseEvent)
}

// NoopUseCaseObserver ignores all events.
type NoopUseCaseObserver struct{}

func (NoopUseCaseObserver) ObserveUseCase(context.Context, UseCaseEvent) {}

type logUseCaseObserver struct {
	log slog.Logger
}

// NewLogUseCaseObserver writes service use-case events to log.
func NewLogUseCaseObserver(log slog.Logger) UseCaseObserver {
	return &logUseCaseObserver{log: log.Named("service")}
}

func (o *logUseCaseObserver) ObserveUseCase(ctx context.Context, event UseCaseEvent) {
	fields := make([]any, 0, 4+len(event.Fields))
	fields = append(fields,
		slog.F("use_case", event.Name),
		slog.F("duration_ms", event.Duration.Milliseconds()),
		slog.F("success", event.Success),
	)
	for k, v := range event.Fields {
		fields = append(fields, slog.F(k, v))
	}
	if event.Err != nil {
		o.log.Warn(ctx, "service use case", append(fields, slog.Error(event.Err))...)
		return
	}
	o.log.Debug(ctx, "service use case", fields...)
}

func useCaseObserverOrNoop(observers []UseCaseObserver) UseCaseObserver {
	for _, obs := range observers {
		if obs != nil {
			return obs
		}
	}
	return NoopUseCaseObserver{}
}
