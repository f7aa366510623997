package domain_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventlog/pkg/eventlog/domain"
)

func TestUtcTimestampOf(t *testing.T) {
	tests := []struct {
		name  string
		input any
		valid bool
	}{
		{"millisecond precision", "2022-07-12T17:54:21.485Z", true},
		{"midnight", "2022-01-01T00:00:00.000Z", true},
		{"missing milliseconds", "2022-07-12T17:54:21Z", false},
		{"no zone suffix", "2022-07-12T17:54:21.485", false},
		{"offset instead of Z", "2022-07-12T17:54:21.485+02:00", false},
		{"impossible date", "2022-13-40T00:00:00.000Z", false},
		{"not a string", 42, false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, err := domain.UtcTimestampOf(tt.input)
			if !tt.valid {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.input, string(ts))
			assert.False(t, ts.Time().IsZero())
		})
	}
}

func TestEventNameOf(t *testing.T) {
	tests := []struct {
		name  string
		input any
		valid bool
	}{
		{"camel case", "NodeReconnected", true},
		{"single letter", "A", true},
		{"with digits", "Shutdown2Restart", true},
		{"snake case", "node_reconnected", false},
		{"lower camel", "nodeReconnected", false},
		{"empty", "", false},
		{"not a string", 7, false},
		{"too long", strings.Repeat("A", 100), false},
		{"longest allowed", strings.Repeat("A", 99), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, err := domain.EventNameOf(tt.input)
			if !tt.valid {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.input, string(name))
		})
	}
}

func TestStreamOf(t *testing.T) {
	tests := []struct {
		name  string
		input any
		valid bool
	}{
		{"root", "/", true},
		{"context only", "/network", true},
		{"context and entity", "/network/node", true},
		{"full path", "/network/node/node-ap3", true},
		{"numeric id", "/crm/customer/7", true},
		{"no leading slash", "network", false},
		{"uppercase", "/Network", false},
		// The optional inter-segment slashes make a hyphenated single
		// segment parse as a short path ending in the id position.
		{"hyphenated single segment", "/node-1", true},
		{"hyphen in first character run", "/-node", false},
		{"four segments", "/a/b/c1/d", false},
		{"not a string", nil, false},
		{"too long", "/" + strings.Repeat("a", 200), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stream, err := domain.StreamOf(tt.input)
			if !tt.valid {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.input, string(stream))
		})
	}
}

func TestIdentifierConstructors(t *testing.T) {
	for _, valid := range []string{"network", "sis", "shaper2"} {
		_, err := domain.OriginOf(valid)
		assert.NoError(t, err, valid)
		_, err = domain.PublisherOf(valid)
		assert.NoError(t, err, valid)
	}
	for _, invalid := range []any{"Network", "net work", "net-work", "2net", "", 9} {
		_, err := domain.OriginOf(invalid)
		assert.Error(t, err, invalid)
		_, err = domain.PublisherOf(invalid)
		assert.Error(t, err, invalid)
	}

	_, err := domain.OriginOf("Bad")
	var validationErr *domain.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "origin", validationErr.Field)
}

func TestCorrelationIDOf(t *testing.T) {
	for _, valid := range []string{"evt1", "cmd87", "def1", "crl999"} {
		id, err := domain.CorrelationIDOf(valid)
		require.NoError(t, err, valid)
		assert.Equal(t, valid, string(id))
	}
	for _, invalid := range []any{"evt0", "evt01", "evt", "abc1", "EVT1", "", 12} {
		_, err := domain.CorrelationIDOf(invalid)
		assert.Error(t, err, invalid)
	}
}

func TestPayloadOf(t *testing.T) {
	payload, err := domain.PayloadOf(map[string]any{"rule": "console"})
	require.NoError(t, err)
	assert.Equal(t, "console", payload["rule"])

	_, err = domain.PayloadOf(map[string]any{})
	assert.Error(t, err)
	_, err = domain.PayloadOf("not an object")
	assert.Error(t, err)
	_, err = domain.PayloadOf(nil)
	assert.Error(t, err)

	// Serialized form must stay under 2000 bytes.
	_, err = domain.PayloadOf(map[string]any{"blob": strings.Repeat("x", 2000)})
	assert.Error(t, err)
}

func TestIDConstructors(t *testing.T) {
	id, err := domain.EventIDOf(1)
	require.NoError(t, err)
	assert.Equal(t, domain.EventID(1), id)

	for _, invalid := range []int64{0, -1} {
		_, err := domain.EventIDOf(invalid)
		assert.Error(t, err)
		_, err = domain.RejectedEventIDOf(invalid)
		assert.Error(t, err)
	}
}

// Values accepted by a constructor must be accepted again unchanged.
func TestConstructorsAreIdempotent(t *testing.T) {
	ts, err := domain.UtcTimestampOf("2022-07-12T17:54:21.485Z")
	require.NoError(t, err)
	again, err := domain.UtcTimestampOf(string(ts))
	require.NoError(t, err)
	assert.Equal(t, ts, again)

	name, err := domain.EventNameOf("CustomerActivated")
	require.NoError(t, err)
	nameAgain, err := domain.EventNameOf(string(name))
	require.NoError(t, err)
	assert.Equal(t, name, nameAgain)

	stream, err := domain.StreamOf("/crm/customer/8")
	require.NoError(t, err)
	streamAgain, err := domain.StreamOf(string(stream))
	require.NoError(t, err)
	assert.Equal(t, stream, streamAgain)
}
