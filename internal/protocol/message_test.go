package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFullMessage(t *testing.T) {
	msg, err := Parse([]byte(`{"id":7,"method":"loadNetworkResource","params":["https://example.test/a.map","",3]}`))
	require.NoError(t, err)

	assert.True(t, msg.HasID)
	assert.Equal(t, 7, msg.ID)
	assert.Equal(t, "loadNetworkResource", msg.Method)
	assert.Len(t, msg.Params, 3)
}

func TestParseWithoutID(t *testing.T) {
	msg, err := Parse([]byte(`{"method":"loadCompleted"}`))
	require.NoError(t, err)

	assert.False(t, msg.HasID)
	assert.Equal(t, 0, msg.ID)
	assert.NotNil(t, msg.Params)
	assert.Empty(t, msg.Params)
}

func TestParseZeroIDIsPresent(t *testing.T) {
	msg, err := Parse([]byte(`{"id":0,"method":"reattach"}`))
	require.NoError(t, err)
	assert.True(t, msg.HasID)
	assert.Equal(t, 0, msg.ID)
}

func TestParseMissingMethod(t *testing.T) {
	_, err := Parse([]byte(`{"id":1,"params":[]}`))
	assert.True(t, errors.Is(err, ErrMissingMethod))
}

func TestParseMalformedJSON(t *testing.T) {
	_, err := Parse([]byte(`{"method":`))
	assert.Error(t, err)
}

func TestParseNonObject(t *testing.T) {
	_, err := Parse([]byte(`[1,2,3]`))
	assert.Error(t, err)
}

func TestParamDecoding(t *testing.T) {
	msg, err := Parse([]byte(`{"method":"setPreference","params":["theme","\"dark\""]}`))
	require.NoError(t, err)

	var name, value string
	require.NoError(t, msg.Param(0, &name))
	require.NoError(t, msg.Param(1, &value))
	assert.Equal(t, "theme", name)
	assert.Equal(t, `"dark"`, value)
}

func TestParamOutOfRange(t *testing.T) {
	msg, err := Parse([]byte(`{"method":"setPreference","params":["only"]}`))
	require.NoError(t, err)

	var s string
	assert.Error(t, msg.Param(1, &s))
	assert.Error(t, msg.Param(-1, &s))
}

func TestParamTypeMismatch(t *testing.T) {
	msg, err := Parse([]byte(`{"method":"loadNetworkResource","params":["url"]}`))
	require.NoError(t, err)

	var n int
	assert.Error(t, msg.Param(0, &n))
}

func TestNewCallArgLimit(t *testing.T) {
	_, err := NewCall(FnStreamWrite, 1, "chunk", false)
	assert.NoError(t, err)

	_, err = NewCall(FnStreamWrite, 1, 2, 3, 4)
	assert.True(t, errors.Is(err, ErrTooManyArgs))
}

func TestCallJavaScript(t *testing.T) {
	call, err := NewCall(FnStreamWrite, 3, `quote " and \ slash`, true)
	require.NoError(t, err)

	js, err := call.JavaScript()
	require.NoError(t, err)
	assert.Equal(t, `DevToolsAPI.streamWrite(3, "quote \" and \\ slash", true);`, js)
}

func TestCallJavaScriptNoArgs(t *testing.T) {
	call, err := NewCall("DevToolsAPI.readyForTest")
	require.NoError(t, err)

	js, err := call.JavaScript()
	require.NoError(t, err)
	assert.Equal(t, "DevToolsAPI.readyForTest();", js)
}
