package common

import (
	stderrors "errors"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorCategories(t *testing.T) {
	assert.ErrorIs(t, OutOfMemory("pool %q full", "entities"), ErrOutOfMemory)
	assert.ErrorIs(t, Unsupported("arena remove"), ErrUnsupported)
	assert.ErrorIs(t, InvalidArgument("index %d", 4), ErrInvalidArgument)
	assert.ErrorIs(t, NotFound("loader for %q", "x.obj"), ErrNotFound)

	capErr := CapacityExceeded("camera index space")
	assert.ErrorIs(t, capErr, ErrCapacity)
	assert.ErrorIs(t, capErr, ErrOutOfMemory)
}

func TestLoadFailed(t *testing.T) {
	assert.NoError(t, LoadFailed(nil, "a", 0))

	cause := errors.New("disk on fire")
	err := LoadFailed(cause, "tri.obj", 2)
	assert.ErrorIs(t, err, ErrLoadFailure)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "tri.obj")
}

func TestHalfQuatRoundTrip(t *testing.T) {
	q := [4]float32{0, 0.70710677, 0, 0.70710677}
	back := UnpackHalfQuat(PackHalfQuat(q))
	for i := range q {
		assert.InDelta(t, q[i], back[i], 1e-3)
	}
	assert.Equal(t, [4]uint16{0, 0, 0, 0x3C00}, PackHalfQuat([4]float32{0, 0, 0, 1}))
}

func TestCategories_VisibleToStdlibErrorsIs(t *testing.T) {
	cause := stderrors.New("short read")
	err := LoadFailed(cause, "rock.rmesh", 1)
	assert.True(t, stderrors.Is(err, ErrLoadFailure))
	assert.True(t, stderrors.Is(err, cause))
	assert.False(t, stderrors.Is(err, ErrNotFound))

	capErr := errors.Wrap(CapacityExceeded("instances"), "stage")
	assert.True(t, stderrors.Is(capErr, ErrCapacity))
	assert.True(t, stderrors.Is(capErr, ErrOutOfMemory))
	assert.True(t, errors.Is(capErr, ErrOutOfMemory))
	assert.Equal(t, "stage: instances: capacity exceeded", capErr.Error())
	assert.NoError(t, Categorize(nil, ErrNotFound))
}
