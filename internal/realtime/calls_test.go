package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClockedStore(timeout time.Duration) (*CallStore, *time.Time) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewCallStore(timeout)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestCallLifecycle(t *testing.T) {
	s, _ := newClockedStore(time.Minute)

	call, err := s.Create("", 1, 2, "video")
	require.NoError(t, err)
	assert.NotEmpty(t, call.ID)
	assert.Equal(t, CallRinging, call.State)

	_, err = s.Create(call.ID, 3, 4, "audio")
	assert.ErrorIs(t, err, errCallExists)

	// 只有被叫可以接听
	_, err = s.Accept(call.ID, 1)
	assert.ErrorIs(t, err, errCallNotFound)

	accepted, err := s.Accept(call.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, CallAccepted, accepted.State)

	_, err = s.Accept(call.ID, 2)
	assert.ErrorIs(t, err, errCallNotFound)

	_, err = s.Remove(call.ID, 3)
	assert.ErrorIs(t, err, errCallNotFound)
	ended, err := s.Remove(call.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, uint(2), ended.CalleeID)
	assert.Zero(t, s.Len())
}

func TestCallExpiry(t *testing.T) {
	s, now := newClockedStore(30 * time.Second)

	ringing, err := s.Create("ring", 1, 2, "video")
	require.NoError(t, err)
	answered, err := s.Create("answered", 3, 4, "audio")
	require.NoError(t, err)
	_, err = s.Accept(answered.ID, 4)
	require.NoError(t, err)

	*now = now.Add(31 * time.Second)

	_, err = s.Accept(ringing.ID, 2)
	assert.ErrorIs(t, err, errCallNotFound)
	_, err = s.Reject(ringing.ID, 2)
	assert.ErrorIs(t, err, errCallNotFound)

	// 已接通的通话不会过期
	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 1, s.Len())

	// 过期的 id 可以重新使用
	_, err = s.Create("ring", 1, 2, "video")
	assert.NoError(t, err)
}

func TestRejectOnlyByCallee(t *testing.T) {
	s, _ := newClockedStore(time.Minute)

	call, err := s.Create("c1", 1, 2, "video")
	require.NoError(t, err)

	_, err = s.Reject(call.ID, 1)
	assert.ErrorIs(t, err, errCallNotFound)

	rejected, err := s.Reject(call.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, uint(1), rejected.CallerID)
	assert.Zero(t, s.Len())
}
