package process

import (
	"errors"
	"fmt"

	"github.com/rotool/resolution-override-tool/db"
	"github.com/rotool/resolution-override-tool/fileio"
	"github.com/rotool/resolution-override-tool/viewport"
)

type Outcome int

const (
	OUTCOME_WRITTEN Outcome = iota
	OUTCOME_DELETED
	// nothing to do, e.g. removing a config that does not exist
	OUTCOME_UNCHANGED
	OUTCOME_SKIPPED
	OUTCOME_FAILED
)

func (o Outcome) String() string {
	switch o {
	case OUTCOME_WRITTEN:
		return "written"
	case OUTCOME_DELETED:
		return "deleted"
	case OUTCOME_UNCHANGED:
		return "unchanged"
	case OUTCOME_SKIPPED:
		return "skipped"
	case OUTCOME_FAILED:
		return "failed"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

type ErrorKind int

const (
	ERROR_NONE ErrorKind = iota
	ERROR_PARSE
	ERROR_NOT_FOUND
	ERROR_UNRESOLVED
	ERROR_IO
)

func (k ErrorKind) String() string {
	switch k {
	case ERROR_NONE:
		return ""
	case ERROR_PARSE:
		return "parse"
	case ERROR_NOT_FOUND:
		return "not found"
	case ERROR_UNRESOLVED:
		return "unresolved"
	case ERROR_IO:
		return "io"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ClassifyError maps an error to its kind. Unknown errors count as I/O,
// the only failures left once catalogs are loaded.
func ClassifyError(err error) ErrorKind {
	var ioErr *fileio.IOError
	switch {
	case err == nil:
		return ERROR_NONE
	case errors.Is(err, viewport.ErrUnresolvedViewport):
		return ERROR_UNRESOLVED
	case errors.Is(err, db.ErrParse):
		return ERROR_PARSE
	case errors.As(err, &ioErr):
		return ERROR_IO
	case errors.Is(err, db.ErrNotFound):
		return ERROR_NOT_FOUND
	}
	return ERROR_IO
}

// ItemResult is the outcome for one game.
type ItemResult struct {
	Game     string
	Outcome  Outcome
	Kind     ErrorKind
	Path     string
	Viewport viewport.Viewport
	Err      error
}

func newItemResult(game string, path string, outcome Outcome, err error) ItemResult {
	return ItemResult{
		Game:    game,
		Outcome: outcome,
		Kind:    ClassifyError(err),
		Path:    path,
		Err:     err,
	}
}

// Report aggregates one batch over one system. Err is set when the batch
// could not run at all, e.g. because the catalog failed to load.
type Report struct {
	System string
	Items  []ItemResult
	Err    error
}

func (r *Report) add(item ItemResult) {
	r.Items = append(r.Items, item)
}

func (r *Report) Count(outcome Outcome) int {
	count := 0
	for _, item := range r.Items {
		if item.Outcome == outcome {
			count++
		}
	}
	return count
}

// Succeeded counts the games whose config ended up as requested.
func (r *Report) Succeeded() int {
	return r.Count(OUTCOME_WRITTEN) + r.Count(OUTCOME_DELETED) + r.Count(OUTCOME_UNCHANGED)
}

func (r *Report) Failed() int {
	return r.Count(OUTCOME_FAILED)
}

func (r *Report) Skipped() int {
	return r.Count(OUTCOME_SKIPPED)
}

// Problems returns every item that did not succeed.
func (r *Report) Problems() []ItemResult {
	var result []ItemResult
	for _, item := range r.Items {
		if item.Outcome == OUTCOME_SKIPPED || item.Outcome == OUTCOME_FAILED {
			result = append(result, item)
		}
	}
	return result
}

// HasFailures is true when the batch did not run or any game failed.
func (r *Report) HasFailures() bool {
	return r.Err != nil || r.Failed() > 0
}
