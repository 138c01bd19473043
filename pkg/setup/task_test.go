package setup

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Jeffail/gabs/v2"
	"github.com/jarness/jarness/pkg/management"
)

// fakeExecutor returns canned responses for executed operations
type fakeExecutor struct {
	response *gabs.Container
	err      error
	executed []*management.Operation
}

func (f *fakeExecutor) Execute(ctx context.Context, op *management.Operation) (*gabs.Container, error) {
	f.executed = append(f.executed, op)
	return f.response, f.err
}

func parseResponse(t *testing.T, raw string) *gabs.Container {
	t.Helper()
	response, err := gabs.ParseJSON([]byte(raw))
	if err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	return response
}

func TestExecuteOperationSuccess(t *testing.T) {
	exec := &fakeExecutor{response: parseResponse(t, `{"outcome":"success","result":{"value":7}}`)}

	result, err := ExecuteOperation(context.Background(), exec, management.ReadAttribute("value"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, ok := result.Path("value").Data().(float64); !ok || got != 7 {
		t.Fatalf("expected unwrapped result, got %v", result)
	}
	if len(exec.executed) != 1 {
		t.Fatalf("expected one executed operation, got %d", len(exec.executed))
	}
}

func TestExecuteOperationFailure(t *testing.T) {
	exec := &fakeExecutor{response: parseResponse(t, `{"outcome":"failed","failure-description":"no such resource"}`)}

	_, err := ExecuteOperation(context.Background(), exec, management.NewOperation("remove", "deployment", "x.war"))
	var opErr *management.OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationError, got %v", err)
	}
	if opErr.Operation != "remove" {
		t.Fatalf("expected operation name in error, got %s", opErr.Operation)
	}
}

func TestExecuteOperationMsgCustomMessage(t *testing.T) {
	exec := &fakeExecutor{response: parseResponse(t, `{"outcome":"failed","failure-description":"boom"}`)}

	_, err := ExecuteOperationMsg(context.Background(), exec, management.NewOperation("deploy"),
		func(response *gabs.Container) string {
			return fmt.Sprintf("deployment rejected: %s", management.FailureDescription(response))
		})
	if err == nil || err.Error() != "deployment rejected: boom" {
		t.Fatalf("expected custom message, got %v", err)
	}

	var opErr *management.OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("custom message errors must still be OperationErrors, got %T", err)
	}
}

func TestExecuteOperationTransportError(t *testing.T) {
	boom := errors.New("connection refused")
	exec := &fakeExecutor{err: boom}

	_, err := ExecuteOperation(context.Background(), exec, management.NewOperation("whoami"))
	if !errors.Is(err, boom) {
		t.Fatalf("expected transport error passthrough, got %v", err)
	}
	var opErr *management.OperationError
	if errors.As(err, &opErr) {
		t.Fatalf("transport errors must not be OperationErrors")
	}
}

func TestExecuteBody(t *testing.T) {
	exec := &fakeExecutor{response: parseResponse(t, `{"outcome":"success","result":"ok"}`)}

	body := gabs.New()
	body.Set("read-attribute", "operation")
	body.Set("name", "name")

	result, err := ExecuteBody(context.Background(), exec, body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Data() != "ok" {
		t.Fatalf("expected unwrapped result, got %v", result.Data())
	}
}

func TestFuncsNilCallbacks(t *testing.T) {
	task := Funcs{}
	if err := task.Setup(context.Background(), nil, "default"); err != nil {
		t.Fatalf("nil setup must be a no-op, got %v", err)
	}
	if err := task.TearDown(context.Background(), nil, "default"); err != nil {
		t.Fatalf("nil teardown must be a no-op, got %v", err)
	}
}
