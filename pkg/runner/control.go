package runner

import (
	"fmt"

	"github.com/tidwall/gjson"

	craftparts "github.com/mensylisir/craftkit/pkg/craftparts/errors"
)

// controlCall is a single JSON-encoded invocation a scriptlet writes to
// the call FIFO, e.g. {"function":"stage","args":[]}.
type controlCall struct {
	Function string
	Args     []string
}

// parseControlCall decodes a control-FIFO line. It uses gjson rather
// than encoding/json so a malformed or partial write (the
// FIFO is read non-blockingly, mid-write) is reported as a clear
// InternalError instead of a generic unmarshal failure; the Runner turns
// that into InvalidControlAPICall for the part.
func parseControlCall(scriptletName, raw string) (controlCall, error) {
	if !gjson.Valid(raw) {
		return controlCall{}, &craftparts.InternalError{
			Reason: fmt.Sprintf("%s scriptlet called a function with invalid json: %s", scriptletName, raw),
		}
	}

	result := gjson.Parse(raw)
	functionField := result.Get("function")
	if !functionField.Exists() {
		return controlCall{}, &craftparts.InternalError{
			Reason: fmt.Sprintf("%s control call missing attribute \"function\"", scriptletName),
		}
	}
	argsField := result.Get("args")
	if !argsField.Exists() {
		return controlCall{}, &craftparts.InternalError{
			Reason: fmt.Sprintf("%s control call missing attribute \"args\"", scriptletName),
		}
	}

	var args []string
	for _, a := range argsField.Array() {
		args = append(args, a.String())
	}

	return controlCall{Function: functionField.String(), Args: args}, nil
}
