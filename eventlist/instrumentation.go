package eventlist

import (
	"context"
	"fmt"
	"math"
	"time"
)

const (
	logMsgOperation            = "eventlist operation: "
	logMsgPreconditionViolated = "precondition violated"
	logAttrList                = "list"
	logAttrOperation           = "operation"
	logAttrError               = "error"
	logAttrDurationMS          = "duration_ms"
	logAttrChangeCount         = "change_count"
	logAttrListenerCount       = "listener_count"

	metricWriteDuration          = "eventlist_write_duration_seconds"
	metricChangesPublished       = "eventlist_changes_published"
	metricPreconditionViolations = "eventlist_precondition_violations_total"
	metricListeners              = "eventlist_listeners"

	spanNamePrefix      = "EventList."
	spanAttrList        = "list"
	spanAttrOperation   = "operation"
	spanAttrIndex       = "index"
	spanAttrErrorType   = "error_type"
	spanAttrChangeCount = "change_count"
	spanAttrDurationMS  = "duration_ms"

	labelStatus    = "status"
	labelErrorType = "error_type"
	statusSuccess  = "success"
	statusError    = "error"

	operationAdd            = "Add"
	operationAppend         = "Append"
	operationSet            = "Set"
	operationRemove         = "Remove"
	operationRemoveRange    = "RemoveRange"
	operationClear          = "Clear"
	operationUpdate         = "Update"
	operationGet            = "Get"
	operationDispose        = "Dispose"
	operationNew            = "New"
	operationPublish        = "Publish"
	operationAddListener    = "AddListener"
	operationRemoveListener = "RemoveListener"
	operationSetPredicate   = "SetPredicate"
	operationSetComparator  = "SetComparator"
	operationSetRange       = "SetRange"
	operationSelect         = "Select"
	operationDeselect       = "Deselect"
	operationSetSelection   = "SetSelection"
	operationSelectAll      = "SelectAll"
	operationDeselectAll    = "DeselectAll"
	operationInvert         = "InvertSelection"
	operationSetMode        = "SetSelectionMode"
	operationIsSelected     = "IsSelected"

	noIndex = -1
)

// observer carries the logging, metrics, and tracing configured for one list.
// Every helper is a no-op for collectors that are not configured.
type observer struct {
	name             string
	logger           Logger
	contextualLogger ContextualLogger
	metricsCollector MetricsCollector
	tracingCollector TracingCollector
}

func newObserver(c config) *observer {
	return &observer{
		name:             c.name,
		logger:           c.logger,
		contextualLogger: c.contextualLogger,
		metricsCollector: c.metricsCollector,
		tracingCollector: c.tracingCollector,
	}
}

// observeWrite runs op under the chain's write lock and records its outcome.
// op returns the number of change blocks it published.
func (o *observer) observeWrite(
	ctx context.Context,
	lock *Lock,
	operation string,
	index int,
	op func(ctx context.Context) (int, error),
) error {

	tracing, ctx := o.startWriteTracing(ctx, operation, index)
	start := time.Now()

	changeCount, err := func() (int, error) {
		lockedCtx, release := lock.acquireWrite(ctx)
		defer release()

		return op(lockedCtx)
	}()

	duration := time.Since(start)

	if err != nil {
		o.recordDurationMetricsContext(ctx, metricWriteDuration, duration, operation, statusError)
		o.reportFailure(ctx, operation, err)
		tracing.finishError(errorType(err), duration)

		return err
	}

	o.recordDurationMetricsContext(ctx, metricWriteDuration, duration, operation, statusSuccess)
	o.logDebug(ctx, logMsgOperation+operation,
		logAttrList, o.name,
		logAttrDurationMS, toMilliseconds(duration),
		logAttrChangeCount, changeCount)
	tracing.finishSuccess(changeCount, duration)

	return nil
}

// reportFailure logs and counts an error; only precondition violations are counted.
func (o *observer) reportFailure(ctx context.Context, operation string, err error) {
	if !isPrecondition(err) {
		o.logError(ctx, logMsgOperation+operation, err, logAttrList, o.name)
		return
	}

	o.logWarn(ctx, logMsgPreconditionViolated,
		logAttrError, err.Error(),
		logAttrOperation, operation,
		logAttrList, o.name)

	if o.metricsCollector != nil {
		labels := map[string]string{
			spanAttrOperation: operation,
			spanAttrList:      o.name,
			labelErrorType:    errorType(err),
		}

		if contextualCollector, ok := o.metricsCollector.(ContextualMetricsCollector); ok {
			contextualCollector.IncrementCounterContext(ctx, metricPreconditionViolations, labels)
		} else {
			o.metricsCollector.IncrementCounter(metricPreconditionViolations, labels)
		}
	}
}

// checkRead reports a failed read and passes err through.
func (o *observer) checkRead(operation string, err error) error {
	if err != nil {
		o.reportFailure(context.Background(), operation, err)
	}

	return err
}

func (o *observer) recordPublished(ctx context.Context, changeCount int) {
	o.recordValueMetricsContext(ctx, metricChangesPublished, float64(changeCount), operationPublish, statusSuccess)
}

func (o *observer) recordListeners(operation string, count int) {
	o.recordValueMetricsContext(context.Background(), metricListeners, float64(count), operation, statusSuccess)
	o.logDebug(context.Background(), logMsgOperation+operation, logAttrList, o.name, logAttrListenerCount, count)
}

func (o *observer) logLifecycle(ctx context.Context, operation string) {
	msg := logMsgOperation + operation
	if o.contextualLogger != nil {
		o.contextualLogger.InfoContext(ctx, msg, logAttrList, o.name)
		return
	}

	if o.logger != nil {
		o.logger.Info(msg, logAttrList, o.name)
	}
}

func (o *observer) logDebug(ctx context.Context, msg string, args ...any) {
	if o.contextualLogger != nil {
		o.contextualLogger.DebugContext(ctx, msg, args...)
		return
	}

	if o.logger != nil {
		o.logger.Debug(msg, args...)
	}
}

func (o *observer) logWarn(ctx context.Context, msg string, args ...any) {
	if o.contextualLogger != nil {
		o.contextualLogger.WarnContext(ctx, msg, args...)
		return
	}

	if o.logger != nil {
		o.logger.Warn(msg, args...)
	}
}

func (o *observer) logError(ctx context.Context, msg string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if o.contextualLogger != nil {
		o.contextualLogger.ErrorContext(ctx, msg, allArgs...)
		return
	}

	if o.logger != nil {
		o.logger.Error(msg, allArgs...)
	}
}

// recordDurationMetricsContext records duration metrics with context if the collector supports it.
func (o *observer) recordDurationMetricsContext(
	ctx context.Context,
	metricName string,
	duration time.Duration,
	operation, status string,
) {
	if o.metricsCollector != nil {
		labels := map[string]string{
			spanAttrOperation: operation,
			spanAttrList:      o.name,
			labelStatus:       status,
		}

		// Use context-aware method if available
		if contextualCollector, ok := o.metricsCollector.(ContextualMetricsCollector); ok {
			contextualCollector.RecordDurationContext(ctx, metricName, duration, labels)
		} else {
			o.metricsCollector.RecordDuration(metricName, duration, labels)
		}
	}
}

// recordValueMetricsContext records value metrics with context if the collector supports it.
func (o *observer) recordValueMetricsContext(
	ctx context.Context,
	metricName string,
	value float64,
	operation, status string,
) {
	if o.metricsCollector != nil {
		labels := map[string]string{
			spanAttrOperation: operation,
			spanAttrList:      o.name,
			labelStatus:       status,
		}

		// Use context-aware method if available
		if contextualCollector, ok := o.metricsCollector.(ContextualMetricsCollector); ok {
			contextualCollector.RecordValueContext(ctx, metricName, value, labels)
		} else {
			o.metricsCollector.RecordValue(metricName, value, labels)
		}
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

// === Tracing Observer Pattern ===

// writeTracingObserver encapsulates the span lifecycle of one write.
type writeTracingObserver struct {
	o    *observer
	span SpanContext
}

// startWriteTracing starts a span for a write if the tracing collector is configured.
func (o *observer) startWriteTracing(ctx context.Context, operation string, index int) (*writeTracingObserver, context.Context) {
	if o.tracingCollector == nil {
		return &writeTracingObserver{o: o}, ctx
	}

	attrs := map[string]string{
		spanAttrList:      o.name,
		spanAttrOperation: operation,
	}
	if index != noIndex {
		attrs[spanAttrIndex] = fmt.Sprintf("%d", index)
	}

	newCtx, span := o.tracingCollector.StartSpan(ctx, spanNamePrefix+operation, attrs)

	return &writeTracingObserver{o: o, span: span}, newCtx
}

// finishSuccess completes the span of a successful write.
func (wto *writeTracingObserver) finishSuccess(changeCount int, duration time.Duration) {
	if wto.span == nil {
		return
	}

	wto.span.SetStatus(statusSuccess)
	wto.span.AddAttribute(spanAttrChangeCount, fmt.Sprintf("%d", changeCount))
	wto.span.AddAttribute(spanAttrDurationMS, fmt.Sprintf("%.2f", toMilliseconds(duration)))

	wto.o.tracingCollector.FinishSpan(wto.span, statusSuccess, map[string]string{
		spanAttrChangeCount: fmt.Sprintf("%d", changeCount),
	})
}

// finishError completes the span of a failed write with error details.
func (wto *writeTracingObserver) finishError(errType string, duration time.Duration) {
	if wto.span == nil {
		return
	}

	wto.span.SetStatus(statusError)
	wto.span.AddAttribute(spanAttrErrorType, errType)
	wto.span.AddAttribute(spanAttrDurationMS, fmt.Sprintf("%.2f", toMilliseconds(duration)))

	wto.o.tracingCollector.FinishSpan(wto.span, statusError, map[string]string{spanAttrErrorType: errType})
}
