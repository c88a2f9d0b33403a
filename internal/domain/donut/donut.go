package donut

import (
	"context"
	"unicode/utf8"

	"github.com/go-faster/errors"
)

// MaxFlavorLength is the longest flavor name the catalog accepts.
const MaxFlavorLength = 255

// ErrInvalidFlavor is returned when a flavor name is empty or too long.
var ErrInvalidFlavor = errors.New("invalid donut flavor")

// Donut is a selectable flavor from the catalog.
type Donut struct {
	ID     int64
	Flavor string
}

// Repository defines read operations for the donut catalog.
type Repository interface {
	List(ctx context.Context) ([]Donut, error)
}

// Writer seeds the catalog. Upsert is keyed by flavor, so seeding twice
// keeps the existing identifiers.
type Writer interface {
	Upsert(ctx context.Context, flavor string) (*Donut, error)
}

// ValidateFlavor checks the catalog constraints on a flavor name.
func ValidateFlavor(flavor string) error {
	if flavor == "" || utf8.RuneCountInString(flavor) > MaxFlavorLength {
		return errors.Wrapf(ErrInvalidFlavor, "%q", flavor)
	}
	return nil
}
