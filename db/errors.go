package db

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound = errors.New("not found")
	ErrParse    = errors.New("malformed catalog")
)

// NotFoundError reports a missing or unreadable catalog, ROM or config path.
// Suggestions is filled for unknown game identifiers.
type NotFoundError struct {
	Path        string
	Suggestions []string
	Err         error
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("[%v] not found", e.Path)
	if e.Err != nil {
		msg = fmt.Sprintf("[%v] not found - %v", e.Path, e.Err)
	}
	if len(e.Suggestions) != 0 {
		msg += fmt.Sprintf(" (did you mean: %v)", strings.Join(e.Suggestions, ", "))
	}
	return msg
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ParseError reports a malformed catalog. Line is 0 when unknown.
type ParseError struct {
	Path string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("failed to parse catalog [%v] line %d - %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("failed to parse catalog [%v] - %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}
