package asyncdb

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition(t *testing.T) {
	legal := []struct {
		from State
		ev   event
		to   State
	}{
		{StateClosed, evOpen, StateOpening},
		{StateClosed, evClose, StateClosed},
		{StateOpening, evOpenOK, StateOpen},
		{StateOpening, evOpenFailed, StateClosed},
		{StateOpening, evClose, StateClosing},
		{StateOpening, evOpen, StateOpening},
		{StateOpen, evOpen, StateOpening},
		{StateOpen, evClose, StateClosing},
		{StateClosing, evClosed, StateClosed},
		{StateClosing, evOpen, StateOpening},
		{StateClosing, evClose, StateClosing},
	}
	for _, tc := range legal {
		t.Run(tc.from.String()+"/"+tc.ev.String(), func(t *testing.T) {
			to, err := transition(tc.from, tc.ev)
			require.NoError(t, err)
			assert.Equal(t, tc.to, to)
		})
	}

	illegal := []struct {
		from State
		ev   event
	}{
		{StateClosed, evOpenOK},
		{StateClosed, evOpenFailed},
		{StateClosed, evClosed},
		{StateOpen, evOpenOK},
		{StateOpen, evClosed},
		{StateOpening, evClosed},
		{StateClosing, evOpenOK},
		{StateClosing, evOpenFailed},
	}
	for _, tc := range illegal {
		t.Run("illegal "+tc.from.String()+"/"+tc.ev.String(), func(t *testing.T) {
			to, err := transition(tc.from, tc.ev)
			assert.ErrorIs(t, err, ErrInvalidTransition)
			assert.Equal(t, tc.from, to)
		})
	}
}

func TestStatusFromRead(t *testing.T) {
	s := statusFromRead([]byte("v"), nil)
	assert.Equal(t, CodeOK, s.Code)
	assert.Equal(t, []byte("v"), s.Value)

	s = statusFromRead(nil, nil)
	assert.Equal(t, CodeOK, s.Code)
	assert.NotNil(t, s.Value)

	s = statusFromRead(nil, ErrNotFound)
	assert.Equal(t, CodeNotFound, s.Code)

	s = statusFromRead(nil, errors.Wrap(ErrNotFound, "lookup"))
	assert.Equal(t, CodeNotFound, s.Code)

	s = statusFromRead(nil, errors.New("disk on fire"))
	assert.Equal(t, CodeError, s.Code)
	assert.True(t, IsEngineError(s.Err))
	assert.Equal(t, "get: disk on fire", s.Err.Error())
}

func TestStatusDeliver(t *testing.T) {
	var got []error
	cb := func(err error) { got = append(got, err) }

	statusOK().deliver(cb)
	statusNotFound().deliver(cb)
	boom := errors.New("boom")
	statusError(boom).deliver(cb)
	statusOK().deliver(nil)

	require.Len(t, got, 3)
	assert.NoError(t, got[0])
	assert.NoError(t, got[1])
	assert.Same(t, boom, got[2])
}

func TestStatusDeliverRead(t *testing.T) {
	type result struct {
		value []byte
		found bool
		err   error
	}
	var got result
	cb := func(value []byte, found bool, err error) { got = result{value, found, err} }

	statusValue([]byte("v")).deliverRead(cb)
	assert.Equal(t, result{[]byte("v"), true, nil}, got)

	statusValue(nil).deliverRead(cb)
	assert.True(t, got.found)
	assert.Equal(t, []byte{}, got.value)

	statusNotFound().deliverRead(cb)
	assert.Equal(t, result{nil, false, nil}, got)

	statusError(ErrNotOpen).deliverRead(cb)
	assert.ErrorIs(t, got.err, ErrNotOpen)
	assert.False(t, got.found)
}

func TestEngineError(t *testing.T) {
	assert.NoError(t, engineError("open", nil))

	inner := errors.New("corrupted manifest")
	err := engineError("open", inner)
	assert.True(t, IsEngineError(err))
	assert.ErrorIs(t, err, inner)

	// Already wrapped errors and handle errors pass through.
	assert.Same(t, err, engineError("close", err))
	assert.Same(t, ErrNotOpen, engineError("write", ErrNotOpen))
	assert.Same(t, ErrEmptyKey, engineError("write", ErrEmptyKey))
	assert.False(t, IsEngineError(ErrNotOpen))
}

func TestTaskKind_String(t *testing.T) {
	kinds := map[TaskKind]string{
		KindOpen:    "open",
		KindClose:   "close",
		KindWrite:   "write",
		KindRead:    "read",
		KindDestroy: "destroy",
		KindRepair:  "repair",
		0:           "unknown",
	}
	for k, want := range kinds {
		assert.Equal(t, want, k.String())
	}
}

func TestBatchDispose(t *testing.T) {
	pooled := getPooledBatch()
	require.True(t, pooled.pooled)
	require.NoError(t, pooled.Put([]byte("k"), []byte("v")))
	pooled.dispose()
	assert.Zero(t, pooled.Len())

	consumer := NewWriteBatch()
	require.NoError(t, consumer.Put([]byte("k"), []byte("v")))
	consumer.dispose()
	assert.Equal(t, 1, consumer.Len())

	var nilBatch *WriteBatch
	nilBatch.dispose()
}

func TestReadOptionsBounds(t *testing.T) {
	var ro *ReadOptions
	lower, upper := ro.bounds()
	assert.Nil(t, lower)
	assert.Nil(t, upper)

	ro = &ReadOptions{LowerBound: []byte("a"), UpperBound: []byte("c")}
	lower, upper = ro.bounds()
	assert.Equal(t, []byte("a"), lower)
	assert.Equal(t, []byte("c"), upper)

	ro.Prefix = []byte("ab")
	lower, upper = ro.bounds()
	assert.Equal(t, []byte("ab"), lower)
	assert.Equal(t, []byte("ac"), upper)
}

func TestNewOptions(t *testing.T) {
	o := newOptions(WithCache(1), WithHandles(2), WithDriver(nil))
	assert.Equal(t, minCache, o.cache)
	assert.Equal(t, minHandles, o.handles)
	assert.Equal(t, PebbleDriver, o.driver)
	assert.True(t, o.createIfMissing)

	o = newOptions(WithCache(64), WithIdealWALBytesPerSync(), WithCreateIfMissing(false))
	assert.Equal(t, 64, o.cache)
	assert.Equal(t, IdealBatchSize*5, o.walBytesPerSync)
	assert.False(t, o.createIfMissing)
}
