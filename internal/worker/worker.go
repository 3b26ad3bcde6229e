package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aescanero/dago-render-helpers/internal/config"
	"github.com/aescanero/dago-render-helpers/internal/eval/cel"
	"github.com/aescanero/dago-render-helpers/internal/eval/template"
	"github.com/aescanero/dago-render-helpers/internal/helper"
	"github.com/aescanero/dago-render-helpers/internal/render"
)

// Request operations
const (
	OpWrite = "write"
	OpClose = "close"
)

// Worker represents the render worker
type Worker struct {
	id            string
	config        *config.Config
	redisClient   *redis.Client
	registry      *helper.Registry
	program       *render.Program
	celEvaluator  *cel.Evaluator
	markup        *template.Engine
	publisher     Publisher
	states        StateStore
	logger        *zap.Logger
	ctx           context.Context
	cancel        context.CancelFunc
	done          chan struct{}
	started       bool
	stopTimeout   time.Duration
	streamKey     string
	consumerGroup string
	resultStream  string

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewWorker creates a new worker
func NewWorker(
	cfg *config.Config,
	redisClient *redis.Client,
	registry *helper.Registry,
	program *render.Program,
	publisher Publisher,
	states StateStore,
	logger *zap.Logger,
) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	return &Worker{
		id:            cfg.WorkerID,
		config:        cfg,
		redisClient:   redisClient,
		registry:      registry,
		program:       program,
		celEvaluator:  cel.NewEvaluator(),
		markup:        template.NewEngine(),
		publisher:     publisher,
		states:        states,
		logger:        logger,
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
		stopTimeout:   2 * time.Second,
		streamKey:     cfg.StreamKey,
		consumerGroup: cfg.ConsumerGroup,
		resultStream:  cfg.ResultStream,
		sessions:      make(map[string]*Session),
	}
}

// Start starts the worker
func (w *Worker) Start() error {
	w.logger.Info("starting render worker",
		zap.String("worker_id", w.id),
		zap.String("stream_key", w.streamKey),
		zap.String("consumer_group", w.consumerGroup),
	)

	// Create consumer group if it doesn't exist
	if err := w.ensureConsumerGroup(); err != nil {
		return fmt.Errorf("failed to ensure consumer group: %w", err)
	}

	// Start processing work
	w.started = true
	go w.processWork()

	w.logger.Info("render worker started", zap.String("worker_id", w.id))
	return nil
}

// Stop stops the worker gracefully and destroys every open session
func (w *Worker) Stop() error {
	w.logger.Info("stopping render worker", zap.String("worker_id", w.id))

	// Cancel context to stop work processing
	w.cancel()

	// Wait for the in-flight message, bounded. Sessions stay open while the
	// loop may still be driving one of them.
	if w.started {
		select {
		case <-w.done:
		case <-time.After(w.stopTimeout):
			w.logger.Warn("work loop did not stop in time, leaving sessions open",
				zap.String("worker_id", w.id),
				zap.Int("sessions", w.Sessions()),
			)
			return fmt.Errorf("work loop did not stop within %s", w.stopTimeout)
		}
	}

	err := w.closeAll()

	w.logger.Info("render worker stopped", zap.String("worker_id", w.id))
	return err
}

// Sessions returns the number of open sessions
func (w *Worker) Sessions() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.sessions)
}

// ensureConsumerGroup creates the consumer group if it doesn't exist
func (w *Worker) ensureConsumerGroup() error {
	err := w.redisClient.XGroupCreateMkStream(w.ctx, w.streamKey, w.consumerGroup, "0").Err()
	if err != nil {
		// BUSYGROUP error means the group already exists, which is fine
		if strings.HasPrefix(err.Error(), "BUSYGROUP") {
			w.logger.Debug("consumer group already exists",
				zap.String("group", w.consumerGroup),
			)
			return nil
		}
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	w.logger.Info("created consumer group",
		zap.String("group", w.consumerGroup),
		zap.String("stream", w.streamKey),
	)
	return nil
}

// processWork processes state writes from the Redis stream. Every session
// is driven from this goroutine only.
func (w *Worker) processWork() {
	defer close(w.done)
	w.logger.Info("starting work processing loop")

	for {
		select {
		case <-w.ctx.Done():
			w.logger.Info("work processing loop stopped")
			return
		default:
			streams, err := w.redisClient.XReadGroup(w.ctx, &redis.XReadGroupArgs{
				Group:    w.consumerGroup,
				Consumer: w.id,
				Streams:  []string{w.streamKey, ">"},
				Count:    1,
				Block:    w.config.BlockTime,
			}).Result()

			if err != nil {
				if err == redis.Nil || w.ctx.Err() != nil {
					continue
				}
				w.logger.Error("failed to read from stream",
					zap.Error(err),
				)
				time.Sleep(time.Second)
				continue
			}

			for _, stream := range streams {
				for _, message := range stream.Messages {
					w.handleMessage(message)
				}
			}
		}
	}
}

// handleMessage handles a single state write message
func (w *Worker) handleMessage(message redis.XMessage) {
	messageID := message.ID
	w.logger.Debug("processing state write",
		zap.String("message_id", messageID),
	)

	request, err := parseWriteRequest(message.Values)
	if err != nil {
		w.logger.Error("failed to parse write request",
			zap.String("message_id", messageID),
			zap.Error(err),
		)
		w.acknowledgeMessage(messageID)
		return
	}

	if err := w.Process(w.ctx, request); err != nil {
		w.logger.Error("failed to process write request",
			zap.String("message_id", messageID),
			zap.String("session_id", request.SessionID),
			zap.Error(err),
		)
		w.publishError(w.ctx, request, err)
	}

	w.acknowledgeMessage(messageID)
}

// WriteRequest is a batch of cell writes for one session, or a close
type WriteRequest struct {
	SessionID string         `json:"session_id"`
	Op        string         `json:"op,omitempty"`
	Writes    map[string]any `json:"writes,omitempty"`
}

// parseWriteRequest parses a write request from a Redis message
func parseWriteRequest(values map[string]interface{}) (*WriteRequest, error) {
	dataStr, ok := values["data"].(string)
	if !ok {
		return nil, fmt.Errorf("missing or invalid 'data' field")
	}

	var request WriteRequest
	if err := json.Unmarshal([]byte(dataStr), &request); err != nil {
		return nil, fmt.Errorf("failed to unmarshal write request: %w", err)
	}

	if request.SessionID == "" {
		return nil, fmt.Errorf("session_id is required")
	}
	if request.Op == "" {
		request.Op = OpWrite
	}

	return &request, nil
}

// Process applies one request: writes are applied and rendered, close
// destroys the session.
func (w *Worker) Process(ctx context.Context, request *WriteRequest) error {
	switch request.Op {
	case OpWrite:
		return w.write(ctx, request)
	case OpClose:
		return w.closeSession(request.SessionID)
	default:
		return fmt.Errorf("unknown op %q", request.Op)
	}
}

func (w *Worker) write(ctx context.Context, request *WriteRequest) error {
	s, err := w.session(ctx, request.SessionID)
	if err != nil {
		return err
	}

	s.store.Apply(request.Writes)

	if err := w.states.Save(ctx, s.id, s.store.Snapshot(), w.config.StateTTL); err != nil {
		return fmt.Errorf("failed to persist session state: %w", err)
	}

	return w.renderSession(ctx, s)
}

// session returns the open session, opening it on first use
func (w *Worker) session(ctx context.Context, id string) (*Session, error) {
	w.mu.RLock()
	s, ok := w.sessions[id]
	w.mu.RUnlock()
	if ok {
		return s, nil
	}

	s, err := w.openSession(ctx, id)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	w.sessions[id] = s
	w.mu.Unlock()
	return s, nil
}

func (w *Worker) closeSession(id string) error {
	w.mu.Lock()
	s, ok := w.sessions[id]
	delete(w.sessions, id)
	w.mu.Unlock()

	if !ok {
		w.logger.Debug("close for unknown session", zap.String("session_id", id))
		return nil
	}

	if err := s.destroy(); err != nil {
		return fmt.Errorf("failed to destroy session %s: %w", id, err)
	}

	w.logger.Info("session closed",
		zap.String("session_id", id),
		zap.Int("passes", s.passes),
	)
	return nil
}

func (w *Worker) closeAll() error {
	w.mu.RLock()
	ids := make([]string, 0, len(w.sessions))
	for id := range w.sessions {
		ids = append(ids, id)
	}
	w.mu.RUnlock()

	var result *multierror.Error
	for _, id := range ids {
		if err := w.closeSession(id); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// RenderOutput is published for every pass
type RenderOutput struct {
	SessionID   string    `json:"session_id"`
	PassID      string    `json:"pass_id"`
	Output      string    `json:"output"`
	Computes    int       `json:"computes"`
	Diagnostics []string  `json:"diagnostics,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// publishOutput publishes a rendered pass
func (w *Worker) publishOutput(ctx context.Context, s *Session, out string, res helper.PassResult) error {
	event := RenderOutput{
		SessionID: s.id,
		PassID:    res.ID,
		Output:    out,
		Computes:  res.Computes,
		Timestamp: time.Now().UTC(),
	}
	for _, d := range res.Diagnostics {
		event.Diagnostics = append(event.Diagnostics, d.Error())
	}

	if err := w.publisher.Publish(ctx, w.resultStream, event); err != nil {
		return fmt.Errorf("failed to publish output: %w", err)
	}

	w.logger.Info("published render output",
		zap.String("session_id", s.id),
		zap.String("pass_id", res.ID),
		zap.Int("computes", res.Computes),
	)
	return nil
}

// publishError publishes an error event
func (w *Worker) publishError(ctx context.Context, request *WriteRequest, err error) {
	errorEvent := map[string]interface{}{
		"session_id": request.SessionID,
		"op":         request.Op,
		"error":      err.Error(),
		"timestamp":  time.Now().UTC(),
	}

	// Publish error to a separate stream
	if publishErr := w.publisher.Publish(ctx, w.resultStream+".errors", errorEvent); publishErr != nil {
		w.logger.Error("failed to publish error event", zap.Error(publishErr))
	}
}

// acknowledgeMessage acknowledges a message from the stream
func (w *Worker) acknowledgeMessage(messageID string) {
	err := w.redisClient.XAck(w.ctx, w.streamKey, w.consumerGroup, messageID).Err()
	if err != nil {
		w.logger.Error("failed to acknowledge message",
			zap.String("message_id", messageID),
			zap.Error(err),
		)
	}
}
