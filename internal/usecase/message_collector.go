package usecase

import (
	"context"
	"time"

	"SigPull/internal/domain/models"
	drepo "SigPull/internal/domain/repository"
	mid "SigPull/internal/middleware"
)

const reconnectRetryDelay = time.Second

// MessageCollector consumes raw messages from the configured streams
// (Telegram gateway, Reddit poller) and feeds them through the pipeline.
type MessageCollector struct {
	streams []drepo.MessageStream
	proc    *SignalProcessor
	metrics drepo.Metrics
	pipe    *mid.IngestPipeline
}

func NewMessageCollector(streams []drepo.MessageStream, proc *SignalProcessor, metrics drepo.Metrics, pipe *mid.IngestPipeline) *MessageCollector {
	return &MessageCollector{streams: streams, proc: proc, metrics: metrics, pipe: pipe}
}

// IsConnected returns true if every stream is connected.
func (c *MessageCollector) IsConnected() bool {
	for _, s := range c.streams {
		if !s.IsConnected() {
			return false
		}
	}
	return len(c.streams) > 0
}

func (c *MessageCollector) Start(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	for _, s := range c.streams {
		if err := s.Connect(ctx); err != nil {
			return err
		}
		if err := s.Subscribe(ctx); err != nil {
			return err
		}
		msgCh, errCh := s.Read(ctx)
		go c.consume(ctx, s, msgCh, errCh)
	}
	return nil
}

func (c *MessageCollector) consume(ctx context.Context, s drepo.MessageStream, msgCh <-chan *models.RawMessage, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if !ok || err != nil {
				if err != nil {
					c.metrics.RecordError("stream")
				}
				// the stream closes both channels after an error; the old
				// ones must not be selected on again
				if msgCh, errCh = c.reopen(ctx, s); msgCh == nil {
					return
				}
			}
		case m, ok := <-msgCh:
			if !ok {
				if msgCh, errCh = c.reopen(ctx, s); msgCh == nil {
					return
				}
				continue
			}
			if m == nil {
				continue
			}
			if c.pipe != nil {
				_ = c.pipe.Process(ctx, m)
			} else {
				_ = c.proc.Process(ctx, m)
			}
		}
	}
}

// reopen reconnects the stream and starts a fresh read. Returns nil channels
// once ctx is done.
func (c *MessageCollector) reopen(ctx context.Context, s drepo.MessageStream) (<-chan *models.RawMessage, <-chan error) {
	for {
		if ctx.Err() != nil {
			return nil, nil
		}
		if err := s.Reconnect(ctx); err != nil {
			c.metrics.RecordError("stream_reconnect")
			select {
			case <-ctx.Done():
				return nil, nil
			case <-time.After(reconnectRetryDelay):
			}
			continue
		}
		msgCh, errCh := s.Read(ctx)
		return msgCh, errCh
	}
}

// Processor returns the underlying SignalProcessor for lifecycle management.
func (c *MessageCollector) Processor() *SignalProcessor { return c.proc }

// Shutdown stops the pipeline and closes all streams.
func (c *MessageCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	var firstErr error
	for _, s := range c.streams {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
