package management

import (
	"fmt"

	"github.com/Jeffail/gabs/v2"
)

// OperationError reports a management operation whose outcome was not
// successful. The full response is retained so callers can inspect it.
type OperationError struct {
	Operation string
	Response  *gabs.Container
	message   string
}

// NewOperationError creates an OperationError with the default message
func NewOperationError(op *Operation, response *gabs.Container) *OperationError {
	return &OperationError{
		Operation: op.Name(),
		Response:  response,
		message: fmt.Sprintf("failed to execute operation '%s': %s",
			op.String(), FailureDescription(response)),
	}
}

// NewOperationErrorMsg creates an OperationError with a caller-supplied
// message.
func NewOperationErrorMsg(op *Operation, response *gabs.Container, message string) *OperationError {
	return &OperationError{Operation: op.Name(), Response: response, message: message}
}

func (e *OperationError) Error() string {
	return e.message
}

// FailureDescription returns the failure description of the stored response
func (e *OperationError) FailureDescription() string {
	return FailureDescription(e.Response)
}
