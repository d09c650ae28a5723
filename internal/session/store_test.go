package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visioncraft/internal/studio"
)

func TestGetOrCreateReusesSession(t *testing.T) {
	created := 0
	s := NewStore(Options{
		TTL: time.Hour,
		NewStudio: func() *studio.Controller {
			created++
			return studio.New(studio.Options{})
		},
	})
	defer s.Close()

	a := s.GetOrCreate("abc")
	b := s.GetOrCreate("abc")
	assert.Same(t, a, b)
	assert.Same(t, a.Studio, b.Studio)
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, s.Len())

	s.GetOrCreate("other")
	assert.Equal(t, 2, created)
	assert.Equal(t, 2, s.Len())
}

func TestGetMissing(t *testing.T) {
	s := NewStore(Options{})
	defer s.Close()

	_, ok := s.Get("nope")
	assert.False(t, ok)
}

func TestResetReplacesStudio(t *testing.T) {
	s := NewStore(Options{})
	defer s.Close()

	before := s.GetOrCreate("abc")
	_, err := before.Studio.SetTheme("dark")
	require.NoError(t, err)

	after := s.Reset("abc")
	assert.NotSame(t, before.Studio, after.Studio)
	assert.Equal(t, "default", string(after.Studio.Snapshot().Theme))
}

func TestDeleteClosesStudio(t *testing.T) {
	s := NewStore(Options{})
	defer s.Close()

	sess := s.GetOrCreate("abc")
	ch, cancel := sess.Studio.Subscribe()
	defer cancel()

	s.Delete("abc")

	_, open := <-ch
	assert.False(t, open, "subscription should be closed with the studio")
	assert.Zero(t, s.Len())
}

func TestSessionsExpire(t *testing.T) {
	s := NewStore(Options{TTL: 20 * time.Millisecond, CleanupInterval: 10 * time.Millisecond})
	defer s.Close()

	s.GetOrCreate("abc")
	require.Eventually(t, func() bool {
		return s.Len() == 0
	}, time.Second, 10*time.Millisecond)
}
