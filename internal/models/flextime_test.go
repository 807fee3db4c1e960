package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeFlex(t *testing.T, raw string) FlexTime {
	t.Helper()
	var f FlexTime
	require.NoError(t, json.Unmarshal([]byte(raw), &f))
	return f
}

func TestFlexTimeRFC3339(t *testing.T) {
	f := decodeFlex(t, `"2024-03-01T10:30:00Z"`)
	require.NotNil(t, f.Time())
	assert.Equal(t, time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC), f.Time().UTC())
}

func TestFlexTimeUnixMillis(t *testing.T) {
	want := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	f := decodeFlex(t, `1709289000000`)
	require.NotNil(t, f.Time())
	assert.Equal(t, want, f.Time().UTC())
}

func TestFlexTimeUnixSeconds(t *testing.T) {
	want := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	f := decodeFlex(t, `1709289000`)
	require.NotNil(t, f.Time())
	assert.Equal(t, want, f.Time().UTC())
}

func TestFlexTimeServerSentinel(t *testing.T) {
	f := decodeFlex(t, `{"seconds":1709289000,"nanos":0}`)
	require.NotNil(t, f.Time())
	assert.Equal(t, time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC), f.Time().UTC())
}

func TestFlexTimeUnparseableNormalizesToNil(t *testing.T) {
	for _, raw := range []string{`null`, `"not a date"`, `{"foo":1}`, `-5`, `true`} {
		f := decodeFlex(t, raw)
		assert.Nil(t, f.Time(), "raw %s", raw)
	}
}

func TestFlexTimeMarshalRoundTrip(t *testing.T) {
	orig := NewFlexTime(time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC))
	data, err := json.Marshal(orig)
	require.NoError(t, err)

	var back FlexTime
	require.NoError(t, json.Unmarshal(data, &back))
	require.NotNil(t, back.Time())
	assert.True(t, orig.Time().Equal(*back.Time()))
}

func TestFlexTimeMarshalNil(t *testing.T) {
	data, err := json.Marshal(FlexTime{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
}
