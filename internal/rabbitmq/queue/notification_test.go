package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForward(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan []byte, 4)
	out := make(chan JobMessage, 4)

	valid := JobMessage{JobID: "notification-x-1", NotificationID: uuid.New()}
	body, err := json.Marshal(valid)
	require.NoError(t, err)

	in <- []byte("{not json")
	in <- []byte(`{"notification_id":"` + uuid.NewString() + `"}`)
	in <- body
	close(in)

	done := make(chan struct{})
	go func() {
		Forward(ctx, in, out)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("forward did not stop after the input closed")
	}

	require.Len(t, out, 1)
	assert.Equal(t, valid, <-out)
}

func TestForward_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	in := make(chan []byte)
	out := make(chan JobMessage)

	done := make(chan struct{})
	go func() {
		Forward(ctx, in, out)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("forward did not stop on cancel")
	}
}

func TestJobMessage_WireFormat(t *testing.T) {
	id := uuid.MustParse("8a3e2c1f-5b6d-4e7f-9a0b-1c2d3e4f5a6b")

	body, err := json.Marshal(JobMessage{JobID: "notification-" + id.String() + "-1757930400000", NotificationID: id})
	require.NoError(t, err)

	assert.JSONEq(t,
		`{"job_id":"notification-8a3e2c1f-5b6d-4e7f-9a0b-1c2d3e4f5a6b-1757930400000","notification_id":"8a3e2c1f-5b6d-4e7f-9a0b-1c2d3e4f5a6b"}`,
		string(body),
	)
}
