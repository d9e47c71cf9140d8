package hooks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"tokenhold/pkg/domain"
)

type receiveOnly struct{}

func (receiveOnly) CanReceive(context.Context, Transfer) bool { return false }

type fullSender struct{}

func (fullSender) CanSend(context.Context, Transfer) bool           { return true }
func (fullSender) TokensToTransfer(context.Context, Transfer) error { return nil }

type denyAll struct{}

func (denyAll) CheckTransfer(context.Context, Transfer) (bool, byte, domain.Bytes32) {
	return false, 0x50, domain.Bytes32{1}
}

func TestRegistry(t *testing.T) {
	a := domain.MustParseAddress("0x000000000000000000000000000000000000000a")
	b := domain.MustParseAddress("0x000000000000000000000000000000000000000b")
	r := NewRegistry()
	r.Register(a, receiveOnly{})
	r.Register(b, fullSender{})

	t.Run("capabilities resolve by interface", func(t *testing.T) {
		_, ok := r.ReceiveValidatorFor(a)
		assert.True(t, ok)
		_, ok = r.RecipientFor(a)
		assert.False(t, ok)
		_, ok = r.SenderFor(b)
		assert.True(t, ok)
		_, ok = r.SendValidatorFor(b)
		assert.True(t, ok)
	})

	t.Run("unregister removes capabilities", func(t *testing.T) {
		r.Register(a, nil)
		_, ok := r.ReceiveValidatorFor(a)
		assert.False(t, ok)
	})

	t.Run("checker per token", func(t *testing.T) {
		_, ok := r.CheckerFor(a)
		assert.False(t, ok)
		r.SetChecker(a, denyAll{})
		c, ok := r.CheckerFor(a)
		assert.True(t, ok)
		pass, status, _ := c.CheckTransfer(context.Background(), Transfer{})
		assert.False(t, pass)
		assert.Equal(t, byte(0x50), status)
	})

	t.Run("nil registry has no capabilities", func(t *testing.T) {
		var nilRegistry *Registry
		_, ok := nilRegistry.SenderFor(a)
		assert.False(t, ok)
		_, ok = nilRegistry.CheckerFor(a)
		assert.False(t, ok)
	})
}
