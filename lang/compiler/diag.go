package compiler

import (
	"fmt"
	"strings"

	"github.com/loxvm/lox/lang/token"
)

// Diagnostic is a single compile-time error, always carrying the span of
// source it concerns so the CLI can render it against the original file.
type Diagnostic struct {
	Start, End token.Pos
	Message    string
}

func (d Diagnostic) String() string { return d.Message }

// Diagnostics is an ordered list of Diagnostic values, returned by Compile
// when the input could not be fully compiled. It implements error so
// callers can treat a non-empty Diagnostics the same way they treat any
// other Go error.
type Diagnostics []Diagnostic

func (ds Diagnostics) Error() string {
	if len(ds) == 1 {
		return ds[0].Message
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d compile errors:", len(ds))
	for _, d := range ds {
		b.WriteString("\n\t")
		b.WriteString(d.Message)
	}
	return b.String()
}

// Err returns ds as an error, or nil if ds is empty.
func (ds Diagnostics) Err() error {
	if len(ds) == 0 {
		return nil
	}
	return ds
}
