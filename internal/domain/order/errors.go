package order

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/go-faster/errors"
)

// Field names used as ValidationError keys. They match the request body.
const (
	FieldName   = "name"
	FieldDonuts = "donuts"
)

// Validation messages.
const (
	MsgNameBlank       = "can't be blank"
	MsgNameTooLong     = "must NOT have more than 20 characters"
	MsgNotSelected     = "should be selected"
	MsgInvalidQuantity = "quantity must be a positive integer"
	MsgInvalidDonut    = "must reference a donut"
	MsgDuplicateDonut  = "must not repeat a donut"
	MsgUnknownDonut    = "references an unknown donut"
)

// ValidationError lists every rejected field of an order submission with
// one or more messages each.
type ValidationError struct {
	Fields map[string][]string
}

// Add appends msg to field unless it is already recorded.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	if slices.Contains(e.Fields[field], msg) {
		return
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

// Empty reports whether no field has been rejected.
func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("validation failed")
	for i, field := range slices.Sorted(maps.Keys(e.Fields)) {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s %s", field, strings.Join(e.Fields[field], ", "))
	}
	return b.String()
}

// newValidationError returns a ValidationError with a single message.
func newValidationError(field, msg string) *ValidationError {
	e := &ValidationError{}
	e.Add(field, msg)
	return e
}

// ErrDanglingDonut is wrapped by DanglingDonutError.
var ErrDanglingDonut = errors.New("dangling donut reference")

// DanglingDonutError indicates a persisted detail whose donut could not be
// resolved while projecting an order.
type DanglingDonutError struct {
	DetailID int64
	DonutID  int64
}

func (e *DanglingDonutError) Error() string {
	return fmt.Sprintf("detail %d: donut %d not found", e.DetailID, e.DonutID)
}

func (e *DanglingDonutError) Unwrap() error {
	return ErrDanglingDonut
}
