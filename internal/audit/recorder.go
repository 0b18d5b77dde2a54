// Package audit records security events. Recording never fails the
// operation being audited: storage errors go to server diagnostics only.
package audit

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"go.uber.org/zap"

	"sejf-plikow/internal/models"
)

// pruneInterval is how many recorded events pass between retention sweeps.
const pruneInterval = 256

// Sink is the append-only event store.
type Sink interface {
	InsertAuditEvent(ctx context.Context, event *models.AuditEvent) error
	PruneAuditEvents(ctx context.Context, keep int) error
}

// Publisher pushes recorded events to live subscribers.
type Publisher interface {
	PublishEvent(eventData []byte)
}

type Recorder struct {
	sink      Sink
	publisher Publisher
	logger    *zap.Logger
	maxEvents int
	recorded  atomic.Int64
}

// NewRecorder builds a recorder. publisher may be nil. maxEvents <= 0
// disables retention pruning.
func NewRecorder(sink Sink, publisher Publisher, logger *zap.Logger, maxEvents int) *Recorder {
	return &Recorder{
		sink:      sink,
		publisher: publisher,
		logger:    logger,
		maxEvents: maxEvents,
	}
}

// Record persists and publishes an event. It never returns an error.
func (r *Recorder) Record(ctx context.Context, event *models.AuditEvent) {
	if err := r.sink.InsertAuditEvent(ctx, event); err != nil {
		r.logger.Error("failed to record audit event",
			zap.String("action", string(event.Action)),
			zap.Error(err),
		)
		return
	}

	if r.publisher != nil {
		if data, err := json.Marshal(event); err == nil {
			r.publisher.PublishEvent(data)
		}
	}

	if r.maxEvents > 0 && r.recorded.Add(1)%pruneInterval == 0 {
		if err := r.sink.PruneAuditEvents(ctx, r.maxEvents); err != nil {
			r.logger.Error("failed to prune audit events", zap.Error(err))
		}
	}
}
