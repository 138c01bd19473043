package management

import (
	"fmt"
	"io"

	"github.com/Jeffail/gabs/v2"
)

// Operation is a single management operation, optionally carrying attached
// content streams (used for deployment content).
type Operation struct {
	body        *gabs.Container
	attachments []io.Reader
}

// NewOperation creates an operation. The address is given as name/value
// pairs, outermost first, e.g. NewOperation("add", "deployment", "app.war").
func NewOperation(name string, address ...string) *Operation {
	if len(address)%2 != 0 {
		panic("management: address requires name/value pairs")
	}

	body := gabs.New()
	body.Set(name, "operation")

	segments := make([]any, 0, len(address)/2)
	for i := 0; i < len(address); i += 2 {
		segments = append(segments, map[string]any{address[i]: address[i+1]})
	}
	body.Set(segments, "address")

	return &Operation{body: body}
}

// NewOperationFromBody wraps a prebuilt operation document
func NewOperationFromBody(body *gabs.Container) *Operation {
	return &Operation{body: body}
}

// Set sets a parameter on the operation body and returns the operation for
// chaining.
func (o *Operation) Set(key string, value any) *Operation {
	o.body.Set(value, key)
	return o
}

// AddAttachment attaches a content stream and returns its index, for use with
// input-stream-index parameters.
func (o *Operation) AddAttachment(r io.Reader) int {
	o.attachments = append(o.attachments, r)
	return len(o.attachments) - 1
}

// Name returns the operation name
func (o *Operation) Name() string {
	name, _ := o.body.Path("operation").Data().(string)
	return name
}

// Body returns the operation document
func (o *Operation) Body() *gabs.Container {
	return o.body
}

// Attachments returns the attached content streams
func (o *Operation) Attachments() []io.Reader {
	return o.attachments
}

// String returns the operation document as JSON
func (o *Operation) String() string {
	return o.body.String()
}

// Composite combines steps into a single composite operation. Attachments of
// the steps are re-indexed onto the composite in step order.
func Composite(steps ...*Operation) *Operation {
	body := gabs.New()
	body.Set("composite", "operation")
	body.Set([]any{}, "address")

	composite := &Operation{body: body}

	docs := make([]any, 0, len(steps))
	for _, step := range steps {
		if len(step.attachments) > 0 {
			offset := len(composite.attachments)
			composite.attachments = append(composite.attachments, step.attachments...)
			reindexStreams(step.body, offset)
		}
		docs = append(docs, step.body.Data())
	}
	body.Set(docs, "steps")

	return composite
}

func reindexStreams(body *gabs.Container, offset int) {
	if offset == 0 {
		return
	}
	content := body.Path("content")
	if content == nil {
		return
	}
	for _, item := range content.Children() {
		switch idx := item.Path("input-stream-index").Data().(type) {
		case int:
			item.Set(idx+offset, "input-stream-index")
		case float64:
			item.Set(int(idx)+offset, "input-stream-index")
		}
	}
}

// ReadAttribute builds a read-attribute operation for the given attribute
func ReadAttribute(name string, address ...string) *Operation {
	return NewOperation("read-attribute", address...).Set("name", name)
}

// WriteAttribute builds a write-attribute operation
func WriteAttribute(name string, value any, address ...string) *Operation {
	return NewOperation("write-attribute", address...).Set("name", name).Set("value", value)
}

// IsSuccessfulOutcome reports whether the response outcome is "success"
func IsSuccessfulOutcome(response *gabs.Container) bool {
	if response == nil {
		return false
	}
	outcome, _ := response.Path("outcome").Data().(string)
	return outcome == "success"
}

// FailureDescription returns the failure description of an unsuccessful
// response, or "" when none is present.
func FailureDescription(response *gabs.Container) string {
	if response == nil {
		return ""
	}
	desc := response.Path("failure-description")
	if desc == nil {
		return ""
	}
	if s, ok := desc.Data().(string); ok {
		return s
	}
	return desc.String()
}

// ReadResult returns the result node of a response, or an empty node when the
// response carries none.
func ReadResult(response *gabs.Container) *gabs.Container {
	if response == nil {
		return gabs.New()
	}
	if result := response.Path("result"); result != nil {
		return result
	}
	return gabs.New()
}

// ResultString returns the result node as a plain string
func ResultString(response *gabs.Container) string {
	result := ReadResult(response)
	if s, ok := result.Data().(string); ok {
		return s
	}
	return fmt.Sprintf("%v", result.Data())
}
