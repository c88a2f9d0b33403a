package apiclient

import (
	"fmt"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-faster/jx"
)

// Error is a non-success API response. Fields holds the messages of an
// {"errors":{field:[{message}]}} body and is empty when the body had none.
type Error struct {
	Status int
	Fields map[string][]string
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, strings.Join(e.Messages(), "; "))
}

// Messages flattens Fields into readable lines such as
// "Name can't be blank", ordered by field.
func (e *Error) Messages() []string {
	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	slices.Sort(fields)

	var out []string
	for _, f := range fields {
		for _, msg := range e.Fields[f] {
			out = append(out, humanize(f)+" "+msg)
		}
	}
	return out
}

func humanize(field string) string {
	r, size := utf8.DecodeRuneInString(field)
	if r == utf8.RuneError {
		return field
	}
	return string(unicode.ToUpper(r)) + field[size:]
}

// decodeError builds an *Error from a failed response. Bodies that are not
// in the error shape yield an Error with no fields.
func decodeError(status int, body []byte) *Error {
	e := &Error{Status: status}
	fields := make(map[string][]string)
	err := onlyField(jx.DecodeBytes(body), "errors", func(d *jx.Decoder) error {
		return d.ObjBytes(func(d *jx.Decoder, k []byte) error {
			field := string(k)
			return d.Arr(func(d *jx.Decoder) error {
				return d.ObjBytes(func(d *jx.Decoder, k []byte) error {
					if string(k) != "message" {
						return d.Skip()
					}
					msg, err := d.Str()
					if err != nil {
						return err
					}
					fields[field] = append(fields[field], msg)
					return nil
				})
			})
		})
	})
	if err == nil {
		e.Fields = fields
	}
	return e
}
