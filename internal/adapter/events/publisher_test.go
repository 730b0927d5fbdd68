package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/isd-archive-fetch/internal/domain"
)

func TestSerializeToMessage(t *testing.T) {
	result := domain.YearResult{
		Year:           2024,
		Succeeded:      true,
		Stage:          domain.StageDone,
		Extracted:      13580,
		Classification: domain.ClassificationSummary{Moved: 2407, Skipped: 11173},
	}

	msg, err := serializeToMessage(result)
	require.NoError(t, err)

	assert.Equal(t, []byte("2024"), msg.Key)
	assert.Contains(t, string(msg.Value), `"year":2024`)
	assert.Contains(t, string(msg.Value), `"moved":2407`)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "status", msg.Headers[0].Key)
	assert.Equal(t, []byte("ok"), msg.Headers[0].Value)
	assert.Equal(t, "stage", msg.Headers[1].Key)
	assert.Equal(t, []byte("done"), msg.Headers[1].Value)
}

func TestSerializeToMessage_Failure(t *testing.T) {
	result := domain.YearResult{
		Year:  2019,
		Stage: domain.StageDownloading,
		Error: "fetch: exhausted",
	}

	msg, err := serializeToMessage(result)
	require.NoError(t, err)

	assert.Equal(t, []byte("failed"), msg.Headers[0].Value)
	assert.Contains(t, string(msg.Value), `"error":"fetch: exhausted"`)
}
