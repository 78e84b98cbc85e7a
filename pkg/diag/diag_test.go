package diag

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supercrema/adforge/pkg/errors"
)

func TestReportReturnsConciseMessage(t *testing.T) {
	ch := NewChannel(8, "secret")

	err := errors.New(errors.ErrorTypeRejection, "graph error 1487390: ad creative rejected")
	msg := ch.Report(err, map[string]interface{}{"job_id": "j1"})

	// User message carries no platform internals
	assert.NotContains(t, msg, "1487390")
	assert.NotEmpty(t, msg)
	assert.Equal(t, 1, ch.Len())
}

func TestRecordsRequireElevatedToken(t *testing.T) {
	ch := NewChannel(8, "secret")
	ch.Report(errors.New(errors.ErrorTypeValidation, "bad group"), nil)

	assert.Nil(t, ch.Records("wrong"))
	assert.Nil(t, ch.Records(""))

	records := ch.Records("secret")
	require.Len(t, records, 1)
	assert.Equal(t, errors.ErrorTypeValidation, records[0].Kind)
	assert.Contains(t, records[0].Message, "bad group")
}

func TestRecordsWithoutTokenConfigured(t *testing.T) {
	ch := NewChannel(8, "")
	ch.Report(errors.New(errors.ErrorTypeInternal, "boom"), nil)

	// No token configured means no elevated access at all
	assert.Nil(t, ch.Records(""))
}

func TestRingBufferBounds(t *testing.T) {
	ch := NewChannel(4, "secret")
	for i := 0; i < 10; i++ {
		ch.Report(errors.Newf(errors.ErrorTypeInternal, "error %d", i), nil)
	}

	records := ch.Records("secret")
	require.Len(t, records, 4)

	// Oldest first, only the last four survive
	for i, r := range records {
		assert.Equal(t, fmt.Sprintf("internal: error %d", i+6), r.Message)
	}
}
