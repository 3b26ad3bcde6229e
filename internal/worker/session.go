package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/aescanero/dago-render-helpers/internal/helper"
	"github.com/aescanero/dago-render-helpers/internal/render"
	"github.com/aescanero/dago-render-helpers/internal/tracking"
)

// maxRerenders bounds the follow-up passes one write can trigger.
const maxRerenders = 8

// Session is the render state of one client: its cells, engine and tree.
type Session struct {
	id     string
	store  *tracking.Store
	engine *helper.Engine
	tree   *render.Tree
	dirty  bool
	passes int
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Store returns the session's cells.
func (s *Session) Store() *tracking.Store {
	return s.store
}

// Passes returns how many passes the session has rendered.
func (s *Session) Passes() int {
	return s.passes
}

// openSession builds a session, seeding its cells from persisted state.
func (w *Worker) openSession(ctx context.Context, id string) (*Session, error) {
	state, err := w.states.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session state: %w", err)
	}

	store := tracking.NewStore()
	if len(state) > 0 {
		store.Apply(state)
	}

	root, err := render.NewCompiler(store, w.celEvaluator).Compile(w.program)
	if err != nil {
		return nil, fmt.Errorf("failed to compile program: %w", err)
	}

	s := &Session{id: id, store: store}
	s.engine = helper.NewEngine(w.registry, w.config.EngineOptions(), w.logger.With(zap.String("session_id", id)))
	s.engine.OnSchedule(func() { s.dirty = true })
	s.tree = render.NewTree(s.engine, w.markup, root, w.logger)

	w.logger.Info("session opened",
		zap.String("session_id", id),
		zap.Int("seeded_cells", len(state)),
	)
	return s, nil
}

// renderSession renders until no follow-up pass is requested, publishing
// every pass.
func (w *Worker) renderSession(ctx context.Context, s *Session) error {
	for i := 0; i < maxRerenders; i++ {
		s.dirty = false

		out, res, err := s.tree.Render(s.id)
		if err != nil {
			return fmt.Errorf("render failed: %w", err)
		}
		s.passes++

		for _, d := range res.Diagnostics {
			w.logger.Warn("render diagnostic",
				zap.String("session_id", s.id),
				zap.String("pass_id", res.ID),
				zap.Error(d),
			)
		}

		if err := w.publishOutput(ctx, s, out, res); err != nil {
			return err
		}

		if !s.dirty && !res.Rerender {
			return nil
		}
	}

	w.logger.Warn("rerender limit reached",
		zap.String("session_id", s.id),
		zap.Int("limit", maxRerenders),
	)
	return nil
}

// destroy tears the session's tree down.
func (s *Session) destroy() error {
	return s.tree.Destroy()
}
