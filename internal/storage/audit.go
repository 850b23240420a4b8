package storage

import (
	"context"

	"go.uber.org/zap"

	"github.com/rryowa/sessionguard/internal/models"
)

// FanoutAuditSink writes every event to a primary sink and best-effort to any
// secondary sinks (e.g. the relational archive). Only the primary write can
// fail the append; secondary failures are logged and swallowed.
type FanoutAuditSink struct {
	primary     AuditSink
	secondaries []AuditSink
	log         *zap.SugaredLogger
}

func NewFanoutAuditSink(log *zap.SugaredLogger, primary AuditSink, secondaries ...AuditSink) *FanoutAuditSink {
	return &FanoutAuditSink{
		primary:     primary,
		secondaries: secondaries,
		log:         log,
	}
}

func (s *FanoutAuditSink) Append(ctx context.Context, event models.AuditEvent) error {
	if err := s.primary.Append(ctx, event); err != nil {
		return err
	}

	for _, sink := range s.secondaries {
		if err := sink.Append(ctx, event); err != nil {
			s.log.Errorw("secondary audit sink append failed", "type", event.Type, "error", err)
		}
	}
	return nil
}
