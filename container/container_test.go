package container

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type widgetController struct{ name string }

type closingBean struct {
	id     string
	closed *[]string
	err    error
}

func (b *closingBean) Close() error {
	*b.closed = append(*b.closed, b.id)
	return b.err
}

func TestNameOf(t *testing.T) {
	assert.Equal(t, "container.widgetController", NameOf(&widgetController{}))
	assert.Equal(t, "container.widgetController", NameOf(widgetController{}))
	assert.Equal(t, "", NameOf(nil))
}

func TestContainer_ProvideAndGet(t *testing.T) {
	c := New(zap.NewNop())
	w := &widgetController{name: "w"}

	require.NoError(t, c.Provide(w))

	bean, err := c.Get("container.widgetController")
	require.NoError(t, err)
	assert.Same(t, w, bean)
	assert.Equal(t, []string{"container.widgetController"}, c.Names())
}

func TestContainer_DuplicateProvide(t *testing.T) {
	c := New(nil)

	require.NoError(t, c.Provide(&widgetController{}))
	err := c.Provide(&widgetController{})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestContainer_LookupError(t *testing.T) {
	c := New(nil)

	_, err := c.Get("missing.Controller")

	var lookupErr *LookupError
	require.True(t, errors.As(err, &lookupErr))
	assert.Equal(t, "missing.Controller", lookupErr.Name)
	assert.Panics(t, func() { c.MustGet("missing.Controller") })
}

func TestContainer_RejectsEmpty(t *testing.T) {
	c := New(nil)

	assert.Error(t, c.ProvideNamed("", &widgetController{}))
	assert.Error(t, c.ProvideNamed("x", nil))
}

func TestContainer_CloseReverseOrder(t *testing.T) {
	c := New(nil)
	var closed []string

	require.NoError(t, c.ProvideNamed("first", &closingBean{id: "first", closed: &closed}))
	require.NoError(t, c.ProvideNamed("plain", &widgetController{}))
	require.NoError(t, c.ProvideNamed("second", &closingBean{id: "second", closed: &closed, err: errors.New("boom")}))

	err := c.Close()

	assert.Equal(t, []string{"second", "first"}, closed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close second")
	assert.Empty(t, c.Names())
}

func TestContainer_ConcurrentGet(t *testing.T) {
	c := New(nil)
	require.NoError(t, c.Provide(&widgetController{}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Get("container.widgetController")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}
