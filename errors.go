package ardw

import (
	"errors"
	"fmt"
)

var (
	// ErrLookup reports a selection that names an entity the index does not know.
	ErrLookup = errors.New("entity not found")
	// ErrSheetMismatch reports a highlight that belongs to a different sheet
	// than the one being displayed.
	ErrSheetMismatch = errors.New("sheet mismatch")
	// ErrNonFinite reports a zoom update that would produce a non-finite or
	// non-positive zoom.
	ErrNonFinite = errors.New("non-finite zoom factor")
	// ErrDataLoad reports a board or schematic document that could not be read.
	ErrDataLoad = errors.New("data load failure")
	// ErrUnknownMessage reports a sync message with an unrecognized kind.
	ErrUnknownMessage = errors.New("unknown message kind")
)

// DataLoadError describes which input document failed to load.
type DataLoadError struct {
	Document string // "board", "schematic" or a sheet image name
	Path     string
	Err      error
}

func (e *DataLoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("load %s %s: %v", e.Document, e.Path, e.Err)
	}
	return fmt.Sprintf("load %s: %v", e.Document, e.Err)
}

// Unwrap returns the underlying cause.
func (e *DataLoadError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrDataLoad) match any DataLoadError.
func (e *DataLoadError) Is(target error) bool { return target == ErrDataLoad }
