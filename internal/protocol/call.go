package protocol

import (
	"encoding/json"
	"strings"
)

// maxCallArgs is the transport-imposed argument ceiling for one client
// function invocation.
const maxCallArgs = 3

// Call is one invocation of a named client-side function with up to
// three JSON-serializable arguments.
type Call struct {
	Function string `json:"function"`
	Args     []any  `json:"args"`
}

// NewCall builds a client call. More than three arguments is a
// programming error and returns ErrTooManyArgs.
func NewCall(function string, args ...any) (Call, error) {
	if len(args) > maxCallArgs {
		return Call{}, ErrTooManyArgs
	}
	return Call{Function: function, Args: args}, nil
}

// JavaScript renders the call as a script statement for embedders that
// deliver by evaluating code in the frontend, e.g.
// DevToolsAPI.streamWrite(3, "chunk", false);
func (c Call) JavaScript() (string, error) {
	var sb strings.Builder
	sb.WriteString(c.Function)
	sb.WriteByte('(')
	for i, arg := range c.Args {
		encoded, err := json.Marshal(arg)
		if err != nil {
			return "", err
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.Write(encoded)
	}
	sb.WriteString(");")
	return sb.String(), nil
}
