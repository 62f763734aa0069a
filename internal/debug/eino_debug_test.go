package debug

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/cortexanalyst/config"
)

func TestDisabledDebuggerIsNoop(t *testing.T) {
	d := NewEinoDebugger(config.Config{EinoDebugPort: 52538}, nil)
	d.init = func(context.Context) error {
		t.Fatal("plugin must not start when disabled")
		return nil
	}
	require.NoError(t, d.Initialize(context.Background()))
	assert.False(t, d.IsEnabled())
	assert.Empty(t, d.GetDebugURL())
}

func TestEnabledDebugger(t *testing.T) {
	d := NewEinoDebugger(config.Config{EinoDebugEnabled: true, EinoDebugPort: 52538}, nil)
	called := false
	d.init = func(context.Context) error {
		called = true
		return nil
	}
	require.NoError(t, d.Initialize(context.Background()))
	assert.True(t, called)
	assert.Equal(t, "http://localhost:52538", d.GetDebugURL())

	d.init = func(context.Context) error { return errors.New("port in use") }
	err := d.Initialize(context.Background())
	assert.ErrorContains(t, err, "port in use")
}
