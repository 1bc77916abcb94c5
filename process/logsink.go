package process

import (
	"context"
	"log/slog"

	"github.com/cschleiden/go-wfmc/log"
)

type loggingSink struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLoggingSink returns a sink that writes every event to the given logger.
func NewLoggingSink(logger *slog.Logger, level slog.Level) Sink {
	return &loggingSink{logger: logger, level: level}
}

func (ls *loggingSink) Notify(ctx context.Context, e Event) {
	attrs := []any{log.EventTypeKey, e.Type().String()}

	switch e := e.(type) {
	case ProcessStarted:
		attrs = append(attrs, processAttrs(e.Process)...)
	case ProcessFinished:
		attrs = append(attrs, processAttrs(e.Process)...)
	case Transition:
		attrs = append(attrs, processAttrs(e.To.Process())...)
		if e.From != nil {
			attrs = append(attrs, log.TransitionFromKey, e.From.DefinitionID())
		}
		attrs = append(attrs, log.TransitionToKey, e.To.DefinitionID())
	case ActivityStarted:
		attrs = append(attrs, activityAttrs(e.Activity)...)
	case ActivityFinished:
		attrs = append(attrs, activityAttrs(e.Activity)...)
	case WorkItemFinished:
		attrs = append(attrs, log.WorkItemIDKey, e.WorkItem.ID(), log.ApplicationKey, e.Application)
	}

	ls.logger.Log(ctx, ls.level, "process event", attrs...)
}

func processAttrs(p *Process) []any {
	return []any{
		log.InstanceIDKey, p.Instance().InstanceID,
		log.DefinitionIDKey, p.Instance().DefinitionID,
	}
}

func activityAttrs(a *Activity) []any {
	return append(processAttrs(a.Process()),
		log.ActivityIDKey, a.ID(),
		log.ActivityDefinitionIDKey, a.DefinitionID(),
	)
}
