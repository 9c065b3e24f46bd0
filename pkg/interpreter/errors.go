package interpreter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ojpbarbosa/rinha-interpreter/pkg/ast"
	"github.com/ojpbarbosa/rinha-interpreter/pkg/runtime"
)

// RuntimeError is the failure of an evaluation run, tagged with the span of
// the term that raised it.
type RuntimeError struct {
	Kind     runtime.ErrorKind
	Message  string
	Location ast.Location
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s: %s at %s", e.Kind, e.Message, e.Location)
}

func argumentError(loc ast.Location, message string) error {
	return &RuntimeError{Kind: runtime.ArgumentError, Message: message, Location: loc}
}

// DescribeError renders err for a terminal. Runtime errors whose source text
// is supplied get a numbered snippet with a caret under the start offset;
// everything else falls back to Error().
func DescribeError(err error, src []byte) string {
	if err == nil {
		return ""
	}
	var rtErr *RuntimeError
	if !errors.As(err, &rtErr) || len(src) == 0 {
		return err.Error()
	}
	line, col := rtErr.Location.Position(src)
	lines := strings.Split(string(src), "\n")
	if line > len(lines) {
		line = len(lines)
	}

	var b strings.Builder
	name := rtErr.Location.Filename
	if name != "" {
		fmt.Fprintf(&b, "%s in %s at %d:%d: %s\n\n", rtErr.Kind, name, line, col, rtErr.Message)
	} else {
		fmt.Fprintf(&b, "%s at %d:%d: %s\n\n", rtErr.Kind, line, col, rtErr.Message)
	}
	if line > 1 {
		fmt.Fprintf(&b, "%4d | %s\n", line-1, lines[line-2])
	}
	fmt.Fprintf(&b, "%4d | %s\n", line, lines[line-1])
	fmt.Fprintf(&b, "     | %s^\n", strings.Repeat(" ", col-1))
	if line < len(lines) && lines[line] != "" {
		fmt.Fprintf(&b, "%4d | %s\n", line+1, lines[line])
	}
	return b.String()
}
