// Package setup defines the extension point test authors use to run
// configuration work around deployments: an ordered stack of tasks that run
// against a container's management endpoint before the first deployment and
// are unwound after the last one.
package setup

import (
	"context"

	"github.com/Jeffail/gabs/v2"
	"github.com/jarness/jarness/pkg/management"
)

// Task customizes the server configuration around a deployment run.
//
// Setup runs before the first deployment to the container. If Setup returns
// an error, later tasks in the stack are not run, the deployment is skipped,
// and the failing task's own TearDown is not invoked; TearDown of previously
// completed tasks still runs, in reverse order. Implementations that fail
// should therefore do so before altering any server state.
//
// TearDown runs after the last deployment for the container has been
// undeployed.
type Task interface {
	Setup(ctx context.Context, client *management.Client, containerID string) error
	TearDown(ctx context.Context, client *management.Client, containerID string) error
}

// Executor is the slice of the management client the convenience executors
// need. *management.Client satisfies it.
type Executor interface {
	Execute(ctx context.Context, op *management.Operation) (*gabs.Container, error)
}

// ExecuteOperation executes op and fails with a typed *management.OperationError
// when the outcome is not successful. On success it returns the unwrapped
// result node.
func ExecuteOperation(ctx context.Context, client Executor, op *management.Operation) (*gabs.Container, error) {
	return ExecuteOperationMsg(ctx, client, op, nil)
}

// ExecuteOperationMsg is ExecuteOperation with a caller-supplied error
// message builder, invoked with the full response of the failed operation.
func ExecuteOperationMsg(ctx context.Context, client Executor, op *management.Operation,
	msgFn func(response *gabs.Container) string) (*gabs.Container, error) {

	response, err := client.Execute(ctx, op)
	if err != nil {
		return nil, err
	}
	if !management.IsSuccessfulOutcome(response) {
		if msgFn != nil {
			return nil, management.NewOperationErrorMsg(op, response, msgFn(response))
		}
		return nil, management.NewOperationError(op, response)
	}
	return management.ReadResult(response), nil
}

// ExecuteBody wraps a bare operation document and executes it; see
// ExecuteOperation.
func ExecuteBody(ctx context.Context, client Executor, body *gabs.Container) (*gabs.Container, error) {
	return ExecuteOperation(ctx, client, management.NewOperationFromBody(body))
}

// ExecuteBodyMsg wraps a bare operation document and executes it with a
// caller-supplied error message builder; see ExecuteOperationMsg.
func ExecuteBodyMsg(ctx context.Context, client Executor, body *gabs.Container,
	msgFn func(response *gabs.Container) string) (*gabs.Container, error) {
	return ExecuteOperationMsg(ctx, client, management.NewOperationFromBody(body), msgFn)
}

// Funcs adapts plain functions to the Task interface. A nil function is a
// no-op.
type Funcs struct {
	OnSetup    func(ctx context.Context, client *management.Client, containerID string) error
	OnTearDown func(ctx context.Context, client *management.Client, containerID string) error
}

// Setup implements Task
func (f Funcs) Setup(ctx context.Context, client *management.Client, containerID string) error {
	if f.OnSetup == nil {
		return nil
	}
	return f.OnSetup(ctx, client, containerID)
}

// TearDown implements Task
func (f Funcs) TearDown(ctx context.Context, client *management.Client, containerID string) error {
	if f.OnTearDown == nil {
		return nil
	}
	return f.OnTearDown(ctx, client, containerID)
}
