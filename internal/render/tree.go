package render

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/aescanero/dago-render-helpers/internal/eval/template"
	"github.com/aescanero/dago-render-helpers/internal/helper"
)

// renderCtx carries the state of one render through the nodes.
type renderCtx struct {
	engine       *helper.Engine
	markup       *template.Engine
	scope        *helper.Scope
	toggles      int
	teardownErrs *multierror.Error
}

// Tree is a rendered node graph bound to one helper engine.
type Tree struct {
	engine    *helper.Engine
	markup    *template.Engine
	root      []Node
	logger    *zap.Logger
	destroyed bool
}

// NewTree instantiates root. A nil markup engine gets a private one.
func NewTree(engine *helper.Engine, markup *template.Engine, root Template, logger *zap.Logger) *Tree {
	if markup == nil {
		markup = template.NewEngine()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tree{
		engine: engine,
		markup: markup,
		logger: logger,
	}
	if root != nil {
		t.root = root()
	}
	return t
}

// Engine returns the helper engine the tree renders through.
func (t *Tree) Engine() *helper.Engine {
	return t.engine
}

// Render runs one pass over the tree on behalf of owner. Teardown failures
// of branches that flipped during the pass are reported as diagnostics.
func (t *Tree) Render(owner any) (string, helper.PassResult, error) {
	if t.destroyed {
		return "", helper.PassResult{}, fmt.Errorf("render: tree destroyed")
	}

	p, err := t.engine.Begin(owner)
	if err != nil {
		return "", helper.PassResult{}, err
	}

	c := &renderCtx{
		engine: t.engine,
		markup: t.markup,
		scope:  p.Scope(),
	}

	var b strings.Builder
	var renderErr error
	for _, n := range t.root {
		if renderErr = n.render(c, &b); renderErr != nil {
			break
		}
	}

	res := p.End()
	if c.teardownErrs != nil {
		for _, err := range c.teardownErrs.Errors {
			t.logger.Warn("branch teardown failed",
				zap.String("pass_id", res.ID),
				zap.Error(err),
			)
		}
		res.Diagnostics = append(res.Diagnostics, c.teardownErrs.Errors...)
	}

	if renderErr != nil {
		return "", res, fmt.Errorf("pass %s: %w", res.ID, renderErr)
	}

	t.logger.Debug("tree rendered",
		zap.String("pass_id", res.ID),
		zap.Int("evaluations", res.Evaluations),
		zap.Int("computes", res.Computes),
		zap.Int("branch_toggles", c.toggles),
		zap.Bool("rerender", res.Rerender),
	)

	return b.String(), res, nil
}

// Destroy tears down every live call-site in the tree. It is idempotent.
func (t *Tree) Destroy() error {
	if t.destroyed {
		return nil
	}
	t.destroyed = true
	err := destroyAll(t.engine, t.root)
	t.root = nil
	return err
}

// Destroyed reports whether Destroy has run.
func (t *Tree) Destroyed() bool {
	return t.destroyed
}
