package management

import (
	"strings"
	"testing"

	"github.com/Jeffail/gabs/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOperationAddress(t *testing.T) {
	op := NewOperation("add", "subsystem", "logging", "logger", "com.example")

	require.Equal(t, "add", op.Name())

	address := op.Body().Path("address").Children()
	require.Len(t, address, 2)
	assert.Equal(t, "logging", address[0].Path("subsystem").Data())
	assert.Equal(t, "com.example", address[1].Path("logger").Data())
}

func TestNewOperationOddAddressPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for odd address segments")
		}
	}()
	NewOperation("add", "subsystem")
}

func TestOperationSet(t *testing.T) {
	op := NewOperation("write-attribute").Set("name", "server-state").Set("value", 42)

	assert.Equal(t, "server-state", op.Body().Path("name").Data())
	assert.Equal(t, 42, op.Body().Path("value").Data())
}

func TestOutcomeHelpers(t *testing.T) {
	success, err := gabs.ParseJSON([]byte(`{"outcome":"success","result":"running"}`))
	require.NoError(t, err)
	failed, err := gabs.ParseJSON([]byte(`{"outcome":"failed","failure-description":"WFLYCTL0216: Management resource not found"}`))
	require.NoError(t, err)

	assert.True(t, IsSuccessfulOutcome(success))
	assert.False(t, IsSuccessfulOutcome(failed))
	assert.False(t, IsSuccessfulOutcome(nil))

	assert.Equal(t, "running", ResultString(success))
	assert.Contains(t, FailureDescription(failed), "not found")
	assert.Empty(t, FailureDescription(success))
}

func TestReadResultMissing(t *testing.T) {
	response, err := gabs.ParseJSON([]byte(`{"outcome":"success"}`))
	require.NoError(t, err)

	result := ReadResult(response)
	require.NotNil(t, result)
	assert.Nil(t, result.Data())
}

func TestCompositeReindexesAttachments(t *testing.T) {
	first := NewOperation("add", "deployment", "a.war")
	idx := first.AddAttachment(strings.NewReader("aaa"))
	first.Set("content", []any{map[string]any{"input-stream-index": idx}})

	second := NewOperation("add", "deployment", "b.war")
	idx = second.AddAttachment(strings.NewReader("bbb"))
	second.Set("content", []any{map[string]any{"input-stream-index": idx}})

	composite := Composite(first, second)

	require.Equal(t, "composite", composite.Name())
	require.Len(t, composite.Attachments(), 2)

	steps := composite.Body().Path("steps").Children()
	require.Len(t, steps, 2)

	firstIdx := steps[0].Path("content").Children()[0].Path("input-stream-index").Data()
	secondIdx := steps[1].Path("content").Children()[0].Path("input-stream-index").Data()
	assert.Equal(t, 0, firstIdx)
	assert.Equal(t, 1, secondIdx)
}

func TestOperationError(t *testing.T) {
	op := NewOperation("deploy", "deployment", "app.war")
	response, err := gabs.ParseJSON([]byte(`{"outcome":"failed","failure-description":"boom"}`))
	require.NoError(t, err)

	opErr := NewOperationError(op, response)
	assert.Contains(t, opErr.Error(), "deploy")
	assert.Contains(t, opErr.Error(), "boom")
	assert.Equal(t, "boom", opErr.FailureDescription())

	custom := NewOperationErrorMsg(op, response, "custom message")
	assert.Equal(t, "custom message", custom.Error())
}
