package detconv

// Errors reported while reading, resolving and writing annotation data.

import "fmt"

// NotFoundError is returned when a lookup by ID or name matches no entry.
type NotFoundError struct {
	What string // The kind of entry, e.g. "category" or "image".
	Key  string // The key that was looked up.
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %s matches %s", e.What, e.Key)
}

// AmbiguousError is returned when a lookup matches more than one entry. Appending never creates
// such duplicates for names, so this signals corrupt input with clashing IDs.
type AmbiguousError struct {
	What  string
	Key   string
	Count int // The number of matching entries.
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("%d entries of type %s match %s", e.Count, e.What, e.Key)
}

// MissingSourceError is returned when the pixels for an image are required but there is neither a
// local file nor a usable URL.
type MissingSourceError struct {
	Image string // The image file name.
	Path  string // The local path that was tried.
}

func (e *MissingSourceError) Error() string {
	return fmt.Sprintf("no source for image %q: %q does not exist and downloading is disabled"+
		" or no URL is available", e.Image, e.Path)
}

// MalformedInputError is returned when a source lacks a required field or is structurally
// invalid.
type MalformedInputError struct {
	Source string // The file being read.
	Field  string // The offending field, if known.
	Err    error  // The underlying cause, if any.
}

func (e *MalformedInputError) Error() string {
	msg := fmt.Sprintf("malformed input %q", e.Source)
	if e.Field != "" {
		msg += fmt.Sprintf(": field %q", e.Field)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedInputError) Unwrap() error {
	return e.Err
}

// malformed is shorthand for a MalformedInputError with a formatted cause.
func malformed(source, field, format string, a ...interface{}) error {
	return &MalformedInputError{Source: source, Field: field, Err: fmt.Errorf(format, a...)}
}

// missingField reports the absence of a required field.
func missingField(source, field string) error {
	return &MalformedInputError{Source: source, Field: field, Err: fmt.Errorf("required field is missing")}
}
