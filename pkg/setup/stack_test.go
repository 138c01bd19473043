package setup

import (
	"context"
	"errors"
	"testing"

	"github.com/jarness/jarness/pkg/management"
)

// recordingTask notes the order Setup and TearDown run in
type recordingTask struct {
	name     string
	setupErr error
	tearErr  error
	calls    *[]string
}

func (r *recordingTask) Setup(ctx context.Context, client *management.Client, containerID string) error {
	*r.calls = append(*r.calls, "setup:"+r.name)
	return r.setupErr
}

func (r *recordingTask) TearDown(ctx context.Context, client *management.Client, containerID string) error {
	*r.calls = append(*r.calls, "teardown:"+r.name)
	return r.tearErr
}

func TestStackSetupAndTearDownOrder(t *testing.T) {
	var calls []string
	stack := NewStack(
		&recordingTask{name: "a", calls: &calls},
		&recordingTask{name: "b", calls: &calls},
		&recordingTask{name: "c", calls: &calls},
	)

	ctx := context.Background()
	if err := stack.Setup(ctx, nil, "default"); err != nil {
		t.Fatalf("unexpected setup error: %v", err)
	}
	if stack.Completed() != 3 {
		t.Fatalf("expected 3 completed tasks, got %d", stack.Completed())
	}
	if err := stack.TearDown(ctx, nil, "default"); err != nil {
		t.Fatalf("unexpected teardown error: %v", err)
	}

	want := []string{"setup:a", "setup:b", "setup:c", "teardown:c", "teardown:b", "teardown:a"}
	assertCalls(t, calls, want)
}

func TestStackSetupFailureUnwindsCompletedOnly(t *testing.T) {
	var calls []string
	boom := errors.New("boom")
	stack := NewStack(
		&recordingTask{name: "a", calls: &calls},
		&recordingTask{name: "b", setupErr: boom, calls: &calls},
		&recordingTask{name: "c", calls: &calls},
	)

	err := stack.Setup(context.Background(), nil, "default")
	if err == nil {
		t.Fatalf("expected setup error")
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected original error to be preserved, got %v", err)
	}

	// Task c never ran; task b failed so only task a is unwound.
	want := []string{"setup:a", "setup:b", "teardown:a"}
	assertCalls(t, calls, want)

	if stack.Completed() != 0 {
		t.Fatalf("expected no completed tasks after unwind, got %d", stack.Completed())
	}
}

func TestStackSetupFailureJoinsTeardownErrors(t *testing.T) {
	var calls []string
	setupBoom := errors.New("setup boom")
	tearBoom := errors.New("teardown boom")
	stack := NewStack(
		&recordingTask{name: "a", tearErr: tearBoom, calls: &calls},
		&recordingTask{name: "b", setupErr: setupBoom, calls: &calls},
	)

	err := stack.Setup(context.Background(), nil, "default")
	if !errors.Is(err, setupBoom) {
		t.Fatalf("expected setup error in chain, got %v", err)
	}
	if !errors.Is(err, tearBoom) {
		t.Fatalf("expected teardown error joined onto setup error, got %v", err)
	}
}

func TestStackTearDownAttemptsAllTasks(t *testing.T) {
	var calls []string
	tearBoom := errors.New("teardown boom")
	stack := NewStack(
		&recordingTask{name: "a", calls: &calls},
		&recordingTask{name: "b", tearErr: tearBoom, calls: &calls},
		&recordingTask{name: "c", calls: &calls},
	)

	ctx := context.Background()
	if err := stack.Setup(ctx, nil, "default"); err != nil {
		t.Fatalf("unexpected setup error: %v", err)
	}

	err := stack.TearDown(ctx, nil, "default")
	if !errors.Is(err, tearBoom) {
		t.Fatalf("expected teardown error, got %v", err)
	}

	want := []string{"setup:a", "setup:b", "setup:c", "teardown:c", "teardown:b", "teardown:a"}
	assertCalls(t, calls, want)
}

func assertCalls(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("call sequence %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("call sequence %v, want %v", got, want)
		}
	}
}
