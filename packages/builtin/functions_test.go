package builtin

import (
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedRegistry() *Registry {
	r := NewRegistry()
	r.now = func() time.Time { return time.Date(2020, 1, 5, 9, 30, 0, 0, time.UTC) }
	return r
}

func TestCall_Dates(t *testing.T) {
	r := fixedRegistry()

	tests := []struct {
		expr string
		want string
	}{
		{"now()", "2020-01-05T09:30:00Z"},
		{"timestamp()", "1578216600"},
		{"timestampMs()", "1578216600000"},
		{"date()", "2020-01-05"},
		{`date("Jan 2, 2006")`, "Jan 5, 2020"},
		{"year()", "2020"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, ok, err := r.Call(tt.expr)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCall_Encoders(t *testing.T) {
	r := NewRegistry()

	got, ok, err := r.Call(`base64("pagespec")`)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "cGFnZXNwZWM=", got)

	got, _, err = r.Call(`urlEncode('a b&c')`)
	require.NoError(t, err)
	assert.Equal(t, "a+b%26c", got)
}

func TestCall_Random(t *testing.T) {
	r := NewRegistry()

	id, ok, err := r.Call("uuid()")
	require.NoError(t, err)
	require.True(t, ok)
	_, err = uuid.Parse(id)
	assert.NoError(t, err)

	for i := 0; i < 50; i++ {
		got, _, err := r.Call("random(3, 5)")
		require.NoError(t, err)
		n, err := strconv.Atoi(got)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 3)
		assert.LessOrEqual(t, n, 5)
	}

	s, _, err := r.Call("randomString(12)")
	require.NoError(t, err)
	assert.Len(t, s, 12)
}

func TestCall_Errors(t *testing.T) {
	r := NewRegistry()

	_, ok, err := r.Call("random(1, x)")
	assert.True(t, ok)
	assert.ErrorContains(t, err, `random(): max "x" is not an integer`)

	_, _, err = r.Call("random(9, 1)")
	assert.ErrorContains(t, err, "less than min")

	_, _, err = r.Call("randomString(-1)")
	assert.Error(t, err)
}

func TestCall_NotAFunction(t *testing.T) {
	r := NewRegistry()

	_, ok, err := r.Call("HOME")
	assert.False(t, ok)
	assert.NoError(t, err)

	_, ok, _ = r.Call("nope()")
	assert.False(t, ok)
}

func TestRegister(t *testing.T) {
	r := NewRegistry()
	r.Register("site", func(args []string) (string, error) { return "caffeinated", nil })

	got, ok, err := r.Call("site()")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "caffeinated", got)
}

func TestParseArgs(t *testing.T) {
	assert.Equal(t, []string{"a", "b, c", "d"}, parseArgs(`a, "b, c", 'd'`))
	assert.Nil(t, parseArgs(""))
}
