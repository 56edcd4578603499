package offload

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewTask_RequiresExactlyOneFunction(t *testing.T) {
	ctx := context.Background()

	_, err := newTask[int](ctx, Descriptor[int]{}, nil)
	require.ErrorIs(t, err, ErrInvalidDescriptor)

	_, err = newTask[int](ctx, Descriptor[int]{
		Run:       func(context.Context) (int, error) { return 0, nil },
		RunBuffer: func(context.Context, *Buffer) (int, error) { return 0, nil },
	}, nil)
	require.ErrorIs(t, err, ErrInvalidDescriptor)

	_, err = newTask[int](ctx, Descriptor[int]{
		RunBuffer: func(context.Context, *Buffer) (int, error) { return 0, nil },
	}, nil)
	require.ErrorIs(t, err, ErrInvalidDescriptor)

	_, err = newTask[int](ctx, Descriptor[int]{
		Run:     func(context.Context) (int, error) { return 0, nil },
		Payload: NewBuffer([]byte("x")),
	}, nil)
	require.ErrorIs(t, err, ErrInvalidDescriptor)
}

func TestNewTask_AssignsIDWhenEmpty(t *testing.T) {
	tk, err := newTask[int](context.Background(), Descriptor[int]{
		Run: func(context.Context) (int, error) { return 0, nil },
	}, nil)
	require.NoError(t, err)
	require.NotEmpty(t, tk.id)
	require.Equal(t, tk.id, tk.future.ID())

	tk2, err := newTask[int](context.Background(), Descriptor[int]{
		ID:  "my-task",
		Run: func(context.Context) (int, error) { return 0, nil },
	}, nil)
	require.NoError(t, err)
	require.Equal(t, "my-task", tk2.id)
}

func TestTask_TransitionsAreExclusive(t *testing.T) {
	tk, err := newTask[int](context.Background(), Descriptor[int]{
		Run: func(context.Context) (int, error) { return 0, nil },
	}, nil)
	require.NoError(t, err)

	require.Equal(t, StatusQueued, tk.Status())
	require.True(t, tk.transition(StatusQueued, StatusRunning))
	require.False(t, tk.transition(StatusQueued, StatusCancelled))
	require.True(t, tk.transition(StatusRunning, StatusCompleted))
	require.True(t, tk.Status().Terminal())
}

func TestNewTask_WrapsBufferFunction(t *testing.T) {
	payload := NewBuffer([]byte("data"))
	tk, err := newTask[string](context.Background(), Descriptor[string]{
		Payload: payload,
		RunBuffer: func(_ context.Context, b *Buffer) (string, error) {
			data, err := b.Bytes()
			if err != nil {
				return "", err
			}
			return string(data), nil
		},
	}, payload)
	require.NoError(t, err)

	v, err := tk.fn(context.Background())
	require.NoError(t, err)
	require.Equal(t, "data", v)
}

func TestTask_ReleasePayloadIsIdempotentOnInvalidHandles(t *testing.T) {
	payload := NewBuffer([]byte("data"))
	tk, err := newTask[int](context.Background(), Descriptor[int]{
		Payload:   payload,
		RunBuffer: func(context.Context, *Buffer) (int, error) { return 0, nil },
	}, payload)
	require.NoError(t, err)

	tk.releasePayload()
	require.False(t, payload.Valid())
	tk.releasePayload() // already released, must not panic or error
}

func TestTagTaskError(t *testing.T) {
	base := errors.New("boom")

	tagged := tagTaskError(base, "t-7")
	id, ok := ExtractTaskID(tagged)
	require.True(t, ok)
	require.Equal(t, "t-7", id)
	require.ErrorIs(t, tagged, base)

	// A second tag does not stack.
	again := tagTaskError(tagged, "other")
	id, ok = ExtractTaskID(again)
	require.True(t, ok)
	require.Equal(t, "t-7", id)

	require.Nil(t, tagTaskError(nil, "t-7"))
	_, ok = ExtractTaskID(base)
	require.False(t, ok)
}
