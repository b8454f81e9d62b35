package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Record(t *testing.T) {
	r := NewRecorder()

	r.Record("/", 100*time.Millisecond, nil)
	r.Record("/", 150*time.Millisecond, nil)
	r.Record("/post/", 200*time.Millisecond, nil)
	r.Record("/post/", 0, errors.New("connection refused"))

	s := r.Summary()
	assert.Equal(t, int64(4), s.Navigations)
	assert.Equal(t, int64(1), s.Errors)
	assert.InDelta(t, float64(100*time.Millisecond), float64(s.Min), float64(time.Millisecond))
	assert.InDelta(t, float64(200*time.Millisecond), float64(s.Max), float64(time.Millisecond))
	assert.InDelta(t, float64(150*time.Millisecond), float64(s.P50), float64(time.Millisecond))

	require.Len(t, s.Pages, 2)
	assert.Equal(t, "/", s.Pages[0].Page)
	assert.Equal(t, int64(2), s.Pages[0].Navigations)
	assert.Equal(t, "/post/", s.Pages[1].Page)
	assert.Equal(t, int64(1), s.Pages[1].Errors)
}

func TestRecorder_ClampsLatency(t *testing.T) {
	r := NewRecorder()
	r.Record("/", 0, nil)
	r.Record("/", 2*time.Minute, nil)

	s := r.Summary()
	assert.Equal(t, time.Microsecond, s.Min)
	assert.InDelta(t, float64(60*time.Second), float64(s.Max), float64(100*time.Millisecond))
}

func TestRecorder_Empty(t *testing.T) {
	s := NewRecorder().Summary()
	assert.Zero(t, s.Navigations)
	assert.Zero(t, s.P95)
	assert.Empty(t, s.Pages)
}

func TestRecorder_Merge(t *testing.T) {
	a := NewRecorder()
	a.Record("/", 10*time.Millisecond, nil)
	b := NewRecorder()
	b.Record("/", 30*time.Millisecond, nil)
	b.Record("/about", 0, errors.New("boom"))

	a.Merge(b)
	a.Merge(a)
	a.Merge(nil)

	s := a.Summary()
	assert.Equal(t, int64(3), s.Navigations)
	assert.Equal(t, int64(1), s.Errors)
	require.Len(t, s.Pages, 2)
	assert.Equal(t, int64(2), s.Pages[0].Navigations)
}
