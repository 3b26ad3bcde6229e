package helper

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identity(_ *Scope, args Args) (any, error) {
	return args.Positional.At(0), nil
}

func TestRegistry_RegisterRejectsBuiltinNames(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"if", "each", "unless", "let", "component"} {
		err := reg.Register(name, Functional(identity))
		var target *BuiltinOverrideError
		require.ErrorAs(t, err, &target, name)
		assert.Equal(t, name, target.Name)
		assert.True(t, errors.Is(err, ErrBuiltinOverride))
	}
	assert.Empty(t, reg.Names())
}

func TestRegistry_ResolveRejectsBuiltinNames(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Resolve("each", ContextCall)
	assert.ErrorIs(t, err, ErrBuiltinOverride)
}

func TestRegistry_RegisterValidation(t *testing.T) {
	reg := NewRegistry()
	assert.Error(t, reg.Register("", Functional(identity)))
	assert.Error(t, reg.Register("nofn", Functional(nil)))
	assert.Error(t, reg.Register("nofactory", Stateful(nil)))

	require.NoError(t, reg.Register("id", Functional(identity)))
	assert.Error(t, reg.Register("id", Functional(identity)), "duplicate names are rejected")
}

func TestRegistry_ResolveKinds(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister("id", Functional(identity))
	reg.MustRegister("counter", Stateful(func() Helper { return &counterHelper{} }))

	def, err := reg.Resolve("id", ContextCall)
	require.NoError(t, err)
	assert.Equal(t, KindFunctional, def.Kind())
	assert.Equal(t, "id", def.Name())

	def, err = reg.Resolve("counter", ContextSubexpression)
	require.NoError(t, err)
	assert.Equal(t, KindStateful, def.Kind())

	again, err := reg.Resolve("counter", ContextAttribute)
	require.NoError(t, err)
	assert.Same(t, def, again, "resolving the same name yields the same definition")
}

func TestRegistry_ResolveUnsupportedContexts(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister("id", Functional(identity))
	reg.MustRegister("counter", Stateful(func() Helper { return &counterHelper{} }))

	tests := []struct {
		name     string
		ctx      Context
		expected string
	}{
		{"id", ContextBlock, "component"},
		{"id", ContextModifier, "modifier"},
		{"counter", ContextBlock, "component"},
		{"counter", ContextModifier, "modifier"},
	}
	for _, tt := range tests {
		t.Run(tt.name+"/"+tt.ctx.String(), func(t *testing.T) {
			_, err := reg.Resolve(tt.name, tt.ctx)
			var target *UnsupportedContextError
			require.ErrorAs(t, err, &target)
			assert.Equal(t, tt.expected, target.Expected)
			assert.Contains(t, err.Error(), tt.expected)
			assert.Contains(t, err.Error(), tt.name)
		})
	}

	for _, ctx := range []Context{ContextCall, ContextSubexpression, ContextAttribute, ContextCurried} {
		_, err := reg.Resolve("id", ctx)
		assert.NoError(t, err, ctx.String())
	}
}

func TestRegistry_ResolveUnknown(t *testing.T) {
	_, err := NewRegistry().Resolve("missing", ContextCall)
	var target *UnknownHelperError
	require.ErrorAs(t, err, &target)
	assert.Equal(t, "missing", target.Name)
}

func TestRegistry_DefinitionIsCopiedOnRegister(t *testing.T) {
	reg := NewRegistry()
	def := Functional(identity)
	reg.MustRegister("a", def)
	reg.MustRegister("b", def)

	a, _ := reg.Resolve("a", ContextCall)
	b, _ := reg.Resolve("b", ContextCall)
	assert.Equal(t, "a", a.Name())
	assert.Equal(t, "b", b.Name())
	assert.Equal(t, "", def.Name())
}

func TestRegisterDefaults(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, RegisterDefaults(reg))
	assert.Contains(t, reg.Names(), "uppercase")
	assert.Contains(t, reg.Names(), "words")
	assert.Error(t, RegisterDefaults(reg), "second registration collides")
}
