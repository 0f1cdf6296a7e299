package service

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"kwikflow/internal/outbox"
)

func jobFor(t *testing.T, kind string, payload any) outbox.Job {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return outbox.Job{ID: "job-1", Kind: kind, Payload: data, Attempt: 1}
}
