package template

import (
	"fmt"
	"sync"

	"github.com/aymerick/raymond"
)

// SlotFunc resolves a slot by name when the markup renders it.
type SlotFunc func(name string) (interface{}, error)

// Engine renders Handlebars markup
type Engine struct {
	cache map[string]*raymond.Template
	mu    sync.RWMutex
}

// NewEngine creates a new markup engine
func NewEngine() *Engine {
	return &Engine{
		cache: make(map[string]*raymond.Template),
	}
}

// Render renders markup with the given data. Slots referenced through the
// slot helper are resolved on demand; a slot the markup never reaches is
// never resolved.
func (e *Engine) Render(templateStr string, data interface{}, slots SlotFunc) (string, error) {
	// Get or compile template
	tmpl, err := e.getTemplate(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to compile template: %w", err)
	}

	// The slot helper closes over this render, so it goes on a private copy
	tmpl = tmpl.Clone()

	var slotErr error
	tmpl.RegisterHelper("slot", func(name string) interface{} {
		if slotErr != nil {
			return ""
		}
		if slots == nil {
			slotErr = fmt.Errorf("slot %q: no slots bound", name)
			return ""
		}
		v, err := slots(name)
		if err != nil {
			slotErr = fmt.Errorf("slot %q: %w", name, err)
			return ""
		}
		return v
	})

	if data == nil {
		data = map[string]interface{}{}
	}

	// Execute the template
	result, err := tmpl.Exec(data)
	if err != nil {
		return "", fmt.Errorf("template execution failed: %w", err)
	}
	if slotErr != nil {
		return "", slotErr
	}

	return result, nil
}

// getTemplate gets a compiled template from cache or compiles it
func (e *Engine) getTemplate(templateStr string) (*raymond.Template, error) {
	// Check cache first (read lock)
	e.mu.RLock()
	if tmpl, ok := e.cache[templateStr]; ok {
		e.mu.RUnlock()
		return tmpl, nil
	}
	e.mu.RUnlock()

	// Compile the template (write lock)
	e.mu.Lock()
	defer e.mu.Unlock()

	// Check again in case another goroutine compiled it
	if tmpl, ok := e.cache[templateStr]; ok {
		return tmpl, nil
	}

	// Parse and compile the template
	tmpl, err := raymond.Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}

	// Cache the template
	e.cache[templateStr] = tmpl

	return tmpl, nil
}

// ValidateTemplate validates markup without rendering it
func (e *Engine) ValidateTemplate(templateStr string) error {
	_, err := e.getTemplate(templateStr)
	return err
}

// ClearCache clears the compiled template cache
func (e *Engine) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache = make(map[string]*raymond.Template)
}

// Cached returns the number of compiled templates.
func (e *Engine) Cached() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cache)
}
