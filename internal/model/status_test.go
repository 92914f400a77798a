package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentStatus_Transitions(t *testing.T) {
	all := []DocumentStatus{StatusPendingProcessing, StatusProcessing, StatusCompleted, StatusFailed}
	allowed := map[[2]DocumentStatus]bool{
		{StatusPendingProcessing, StatusProcessing}: true,
		{StatusProcessing, StatusCompleted}:         true,
		{StatusProcessing, StatusFailed}:            true,
	}
	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]DocumentStatus{from, to}]
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
			if want {
				assert.NoError(t, ValidateTransition(from, to))
			} else {
				assert.ErrorIs(t, ValidateTransition(from, to), ErrInvalidTransition)
			}
		}
	}
}

func TestDocumentStatus_Terminal(t *testing.T) {
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.False(t, StatusPendingProcessing.IsTerminal())
	assert.False(t, StatusProcessing.IsTerminal())
}

func TestParseDocumentStatus(t *testing.T) {
	st, err := ParseDocumentStatus("COMPLETED")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, st)

	_, err = ParseDocumentStatus("completed")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = ParseDocumentStatus("")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDocumentStatus_ValueAndScan(t *testing.T) {
	v, err := StatusProcessing.Value()
	require.NoError(t, err)
	assert.Equal(t, "PROCESSING", v)

	_, err = DocumentStatus("DONE").Value()
	assert.ErrorIs(t, err, ErrInvalidInput)

	var st DocumentStatus
	require.NoError(t, st.Scan([]byte("FAILED")))
	assert.Equal(t, StatusFailed, st)
	require.NoError(t, st.Scan("PENDING_PROCESSING"))
	assert.Equal(t, StatusPendingProcessing, st)

	assert.Error(t, st.Scan(42))
	assert.ErrorIs(t, st.Scan("ARCHIVED"), ErrInvalidInput)
}
