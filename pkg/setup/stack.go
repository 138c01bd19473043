package setup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jarness/jarness/pkg/management"
)

// Stack runs tasks in registration order and unwinds them in reverse
type Stack struct {
	tasks     []Task
	completed []Task
}

// NewStack creates a stack over the given tasks
func NewStack(tasks ...Task) *Stack {
	return &Stack{tasks: tasks}
}

// Add appends a task to the stack
func (s *Stack) Add(task Task) *Stack {
	s.tasks = append(s.tasks, task)
	return s
}

// Setup runs every task in order. On the first failure it stops, unwinds the
// tasks that already completed (reverse order), and returns the setup error
// joined with any teardown errors. The failing task itself is not unwound.
func (s *Stack) Setup(ctx context.Context, client *management.Client, containerID string) error {
	for i, task := range s.tasks {
		if err := task.Setup(ctx, client, containerID); err != nil {
			setupErr := fmt.Errorf("setup task %d failed for container %s: %w", i, containerID, err)
			slog.Error("setup task failed, unwinding completed tasks",
				"container", containerID, "task", i, "error", err)
			if rollbackErr := s.TearDown(ctx, client, containerID); rollbackErr != nil {
				return errors.Join(setupErr, rollbackErr)
			}
			return setupErr
		}
		s.completed = append(s.completed, task)
	}
	return nil
}

// TearDown unwinds every completed task in reverse order. All tasks are
// attempted even when earlier ones fail; failures are joined.
func (s *Stack) TearDown(ctx context.Context, client *management.Client, containerID string) error {
	var errs []error
	for i := len(s.completed) - 1; i >= 0; i-- {
		if err := s.completed[i].TearDown(ctx, client, containerID); err != nil {
			errs = append(errs, fmt.Errorf("teardown of task %d failed for container %s: %w", i, containerID, err))
		}
	}
	s.completed = nil
	return errors.Join(errs...)
}

// Completed returns the number of tasks whose Setup has completed and not yet
// been unwound.
func (s *Stack) Completed() int {
	return len(s.completed)
}
