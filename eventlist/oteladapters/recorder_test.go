package oteladapters_test

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/embedded"
)

type emitted struct {
	ctx    context.Context
	record log.Record
}

// recordingLogger keeps every emitted record together with the context it was emitted with.
type recordingLogger struct {
	embedded.Logger

	mu      sync.Mutex
	records []emitted
}

func (l *recordingLogger) Emit(ctx context.Context, record log.Record) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = append(l.records, emitted{ctx: ctx, record: record.Clone()})
}

func (l *recordingLogger) Enabled(context.Context, log.EnabledParameters) bool {
	return true
}

func (l *recordingLogger) find(body string) (emitted, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, e := range l.records {
		if e.record.Body().AsString() == body {
			return e, true
		}
	}

	return emitted{}, false
}

func attributesOf(record log.Record) map[string]log.Value {
	attrs := make(map[string]log.Value)
	record.WalkAttributes(func(kv log.KeyValue) bool {
		attrs[kv.Key] = kv.Value
		return true
	})

	return attrs
}

type recordingProvider struct {
	embedded.LoggerProvider

	logger *recordingLogger
}

func (p *recordingProvider) Logger(string, ...log.LoggerOption) log.Logger {
	return p.logger
}
