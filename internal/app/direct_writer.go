package app

import (
	"context"

	"qwery/internal/metrics"
	"qwery/internal/model"
)

// DirectMessageWriter persists messages synchronously when no broker is
// configured.
type DirectMessageWriter struct {
	repo MessageRepository
}

func NewDirectMessageWriter(repo MessageRepository) *DirectMessageWriter {
	return &DirectMessageWriter{repo: repo}
}

func (w *DirectMessageWriter) Publish(ctx context.Context, msg model.Message) error {
	if err := w.repo.Create(ctx, &msg); err != nil {
		return err
	}
	metrics.MessagesPersisted.WithLabelValues("sync").Inc()
	return nil
}
