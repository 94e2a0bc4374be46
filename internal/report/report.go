// Package report turns run events into log lines.
package report

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/fentz26/easyclaim/internal/claimer"
	"github.com/fentz26/easyclaim/internal/logger"
	"github.com/fentz26/easyclaim/internal/models"
	"github.com/fentz26/easyclaim/internal/remote"
	"go.uber.org/zap"
)

// LogObserver reports run progress on a zap logger: info for progress, warn
// for rejected claims, error when a run aborts.
type LogObserver struct {
	log *zap.SugaredLogger
}

var _ claimer.Observer = (*LogObserver)(nil)

// NewLogObserver returns an observer writing to log.
func NewLogObserver(log *zap.SugaredLogger) *LogObserver {
	return &LogObserver{log: log}
}

func (o *LogObserver) RunStarted(info claimer.RunInfo) {
	o.log.Infow("Run started",
		logger.FieldRunID, info.RunID,
		logger.FieldTaskType, string(info.TaskType),
		logger.FieldLimit, info.Limit,
		logger.FieldInterval, info.Interval.String(),
	)
}

func (o *LogObserver) UserValidated(runID string, user models.UserIdentity) {
	o.log.Infow("Logged in",
		logger.FieldRunID, runID,
		logger.FieldUser, user.Username,
	)
}

func (o *LogObserver) Iteration(ev claimer.IterationEvent) {
	fields := []interface{}{
		logger.FieldRunID, ev.RunID,
		logger.FieldIteration, ev.Iteration,
	}

	switch {
	case ev.Err != nil:
		// RunFinished reports the abort.
		o.log.Debugw("Iteration failed", append(fields, logger.FieldError, ev.Err.Error())...)
	case ev.Rejection != nil:
		fields = append(fields, logger.FieldError, ev.Rejection.Error())
		if e, ok := remote.AsError(ev.Rejection); ok && e.Errno != 0 {
			fields = append(fields, logger.FieldErrno, e.Errno)
		}
		if hint := hintOf(ev.Rejection); hint != "" {
			fields = append(fields, logger.FieldHint, hint)
		}
		o.log.Warnw("Claim rejected", fields...)
	case ev.BudgetReached:
		o.log.Debugw("Limit already reached", append(fields, logger.FieldLimit, ev.Limit)...)
	case ev.Requested == 0:
		o.log.Infow("No tasks available", append(fields, logger.FieldListed, ev.Listed)...)
	default:
		o.log.Infow("Claimed tasks", append(fields,
			logger.FieldListed, ev.Listed,
			logger.FieldRequested, ev.Requested,
			logger.FieldClaimed, ev.Claimed,
			logger.FieldCumulative, ev.Cumulative,
			logger.FieldLimit, ev.Limit,
		)...)
		o.log.Debugw("Claimed ids", logger.FieldRunID, ev.RunID,
			logger.FieldTaskIDs, strings.Join(models.FormatIDs(ev.TaskIDs), ","))
	}
}

func (o *LogObserver) RunFinished(res claimer.RunResult) {
	fields := []interface{}{
		logger.FieldRunID, res.RunID,
		logger.FieldStatus, string(res.Status),
		logger.FieldClaimed, res.Claimed,
		logger.FieldLimit, res.Limit,
		logger.FieldIteration, res.Iterations,
		logger.FieldDurationMS, res.Duration().Milliseconds(),
	}
	if res.Err == nil {
		o.log.Infow("Run completed", fields...)
		return
	}

	fields = append(fields,
		logger.FieldError, res.Err.Error(),
		logger.FieldErrorKind, ErrorKindName(res.Err),
	)
	if hint := hintOf(res.Err); hint != "" {
		fields = append(fields, logger.FieldHint, hint)
	}
	o.log.Errorw("Run aborted", fields...)
}

// ErrorKindName names the failure class of err for logs and the journal.
func ErrorKindName(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	if k := remote.KindOf(err); k != 0 {
		return k.String()
	}
	return "internal"
}

func hintOf(err error) string {
	return strings.ReplaceAll(errors.FlattenHints(err), "\n--\n", "; ")
}
