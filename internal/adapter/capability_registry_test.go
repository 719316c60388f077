package adapter

import (
	"errors"
	"testing"

	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapabilityRegistry_RegisterAndLookup(t *testing.T) {
	r := NewCapabilityRegistry()
	caps := model.PlatformCapabilities{
		Operations:         []model.Operation{model.OpCreate, model.OpGet},
		RateLimitPerMinute: 60,
	}
	require.NoError(t, r.Register("Facebook", caps))

	got, err := r.Lookup("facebook")
	require.NoError(t, err)
	assert.Equal(t, "facebook", got.Name)
	assert.Equal(t, 60, got.RateLimitPerMinute)

	// 返回副本，修改不影响注册表
	got.Operations[0] = model.OpDelete
	assert.True(t, r.CanPerform("facebook", model.OpCreate))
	assert.False(t, r.CanPerform("facebook", model.OpDelete))

	err = r.Register("facebook", caps)
	assert.True(t, errors.Is(err, model.ErrAlreadyRegistered))
}

func TestCapabilityRegistry_LookupUnknown(t *testing.T) {
	r := NewCapabilityRegistry()
	_, err := r.Lookup("nope")
	var nf *model.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "nope", nf.Key)
	assert.False(t, r.CanPerform("nope", model.OpGet))
	assert.False(t, r.IsWriteCapable("nope"))
}

func TestCapabilityRegistry_ReadOnlyNeverWrites(t *testing.T) {
	r := NewCapabilityRegistry()
	require.NoError(t, r.Register("maps", model.PlatformCapabilities{
		ReadOnly:   true,
		Operations: []model.Operation{model.OpCreate, model.OpGet, model.OpClaim},
	}))
	assert.False(t, r.CanPerform("maps", model.OpCreate))
	assert.True(t, r.CanPerform("maps", model.OpClaim))
	assert.False(t, r.IsWriteCapable("maps"))
}

func TestCapabilityRegistry_Freeze(t *testing.T) {
	r := NewCapabilityRegistry()
	require.NoError(t, r.Register("b", model.PlatformCapabilities{Operations: []model.Operation{model.OpUpdate}}))
	require.NoError(t, r.Register("a", model.PlatformCapabilities{}))
	r.Freeze()

	err := r.Register("c", model.PlatformCapabilities{})
	assert.True(t, errors.Is(err, model.ErrRegistryFrozen))
	assert.Equal(t, []string{"a", "b"}, r.Names())
	assert.True(t, r.IsWriteCapable("b"))
	assert.False(t, r.IsWriteCapable("a"))
}

func TestCapabilityRegistry_RejectsUnknownOperation(t *testing.T) {
	r := NewCapabilityRegistry()
	err := r.Register("x", model.PlatformCapabilities{Operations: []model.Operation{"teleport"}})
	assert.True(t, errors.Is(err, model.ErrValidation))
}
