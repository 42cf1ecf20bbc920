package queue

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	body, err := Encode(SweepTask("helios"))
	require.NoError(t, err)

	task, err := Decode(body)
	require.NoError(t, err)
	assert.Equal(t, KindSweep, task.Kind)
	assert.Equal(t, "helios", task.Chain)
	assert.False(t, task.EnqueuedAt.IsZero())
}

func TestDecodeRejectsInvalidTasks(t *testing.T) {
	for _, body := range []string{
		`not json`,
		`{"kind":"sweep"}`,
		`{"kind":"explode","chain":"helios"}`,
	} {
		_, err := Decode([]byte(body))
		assert.Error(t, err, body)
	}

	task, err := Decode([]byte(`{"kind":"prune"}`))
	require.NoError(t, err)
	assert.Equal(t, KindPrune, task.Kind)
}

func TestPermanent(t *testing.T) {
	base := errors.New("unknown chain")
	err := fmt.Errorf("sweep: %w", Permanent(base))

	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, base)
	assert.False(t, IsPermanent(base))
	assert.NoError(t, Permanent(nil))
}

func TestBackoff(t *testing.T) {
	cfg := RetryConfig{InitialDelay: time.Second, MaxDelay: 5 * time.Second, Multiplier: 2}
	assert.Equal(t, time.Second, cfg.backoff(0))
	assert.Equal(t, 2*time.Second, cfg.backoff(1))
	assert.Equal(t, 4*time.Second, cfg.backoff(2))
	assert.Equal(t, 5*time.Second, cfg.backoff(3))
}
