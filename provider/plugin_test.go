package provider

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitPath(t *testing.T) {
	tests := []struct {
		path      string
		container string
		symbol    string
		valid     bool
	}{
		{"mymodule.Provider", "mymodule", "Provider", true},
		{"pkg.sub.Provider", "pkg.sub", "Provider", true},
		{"nodotseparator", "", "", false},
		{".Provider", "", "", false},
		{"pkg.", "", "", false},
		{"", "", "", false},
	}

	for _, test := range tests {
		t.Run(test.path, func(t *testing.T) {
			container, symbol, err := SplitPath(test.path)
			if !test.valid {
				assert.ErrorIs(t, err, ErrInvalidPath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.container, container)
			assert.Equal(t, test.symbol, symbol)
		})
	}
}

func TestLoadWithoutSeparatorIsInvalidPath(t *testing.T) {
	plugins := NewPlugins()

	_, err := plugins.Load("nodotseparator")
	assert.ErrorIs(t, err, ErrInvalidPath)
	assert.NotErrorIs(t, err, ErrExternalLoad)
}

func TestLoadMissingSymbolInExistingContainer(t *testing.T) {
	var calls atomic.Int32
	plugins := NewPlugins()
	require.NoError(t, plugins.Register("pkg.sub.Provider", countingConstructor("external", &calls)))

	_, err := plugins.Load("pkg.sub.MissingClass")
	assert.ErrorIs(t, err, ErrExternalLoad)
	assert.ErrorIs(t, err, ErrSymbolNotFound)

	var loadErr *ExternalLoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, "pkg.sub.MissingClass", loadErr.Path)
}

func TestLoadMissingContainer(t *testing.T) {
	plugins := NewPlugins()

	_, err := plugins.Load("nowhere.Provider")
	assert.ErrorIs(t, err, ErrExternalLoad)
	assert.ErrorIs(t, err, ErrContainerNotFound)
}

func TestRegisterAndLoad(t *testing.T) {
	var calls atomic.Int32
	plugins := NewPlugins()
	require.NoError(t, plugins.Register("acme.cloud.Provider", countingConstructor("acme", &calls)))

	ctor, err := plugins.Load("acme.cloud.Provider")
	require.NoError(t, err)

	instance, err := ctor(Config{"type": "external"}, "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", instance.ClusterName())
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, []string{"acme.cloud.Provider"}, plugins.Paths())
}

func TestRegisterRejectsDuplicatesAndBadInput(t *testing.T) {
	var calls atomic.Int32
	plugins := NewPlugins()
	ctor := countingConstructor("x", &calls)

	require.NoError(t, plugins.Register("a.B", ctor))
	assert.EqualError(t, plugins.Register("a.B", ctor), "plugin 'a.B' is already registered")
	assert.ErrorIs(t, plugins.Register("nodot", ctor), ErrInvalidPath)
	assert.Error(t, plugins.Register("a.C", nil))
	assert.Panics(t, func() { plugins.MustRegister("a.B", ctor) })
}
