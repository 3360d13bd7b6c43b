package stats

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_WriteEmitsHeaderOnce(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.Write(Snapshot{Time: time.Unix(0, 0), CurProcFrame: 1}))
	require.NoError(t, w.Write(Snapshot{Time: time.Unix(0, 0), CurProcFrame: 2}))

	rows, err := csv.NewReader(bytes.NewReader(buf.Bytes())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, header, rows[0])
	assert.Equal(t, "1", rows[1][1])
	assert.Equal(t, "2", rows[2][1])
}

func Test_WriteRowMatchesSnapshotFields(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	snap := Snapshot{
		Time:               time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC),
		CurProcFrame:       42,
		DeferralQueueDepth: 3,
		TaskQueueDepth:     10,
		WeightedTaskDepth:  22,
		CompletionDepth:    5,
		StreamerDepth:      1,
	}
	require.NoError(t, w.Write(snap))

	rows, err := csv.NewReader(bytes.NewReader(buf.Bytes())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"2026-07-31T12:00:00Z", "42", "3", "10", "22", "5", "1"}, rows[1])
}

func Test_DrainStopsWhenChannelCloses(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	ch := make(chan Snapshot, 2)
	ch <- Snapshot{Time: time.Unix(0, 0), CurProcFrame: 7}
	close(ch)

	done := make(chan struct{})
	go func() {
		w.Drain(context.Background(), ch, nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Drain did not return after channel closed")
	}

	rows, err := csv.NewReader(bytes.NewReader(buf.Bytes())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "7", rows[1][1])
}

func Test_DrainStopsWhenContextCanceled(t *testing.T) {
	w := NewWriter(&bytes.Buffer{})
	ch := make(chan Snapshot)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		w.Drain(ctx, ch, nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Drain did not return after context cancellation")
	}
}

func Test_DrainReportsWriteErrorsWithoutStopping(t *testing.T) {
	w := NewWriter(&failingWriter{})
	ch := make(chan Snapshot, 1)
	var gotErr error
	ch <- Snapshot{Time: time.Unix(0, 0)}
	close(ch)

	w.Drain(context.Background(), ch, func(err error) { gotErr = err })
	assert.Error(t, gotErr)
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, assertErr }

var assertErr = errWrite{}

type errWrite struct{}

func (errWrite) Error() string { return "boom" }
