package types

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindInvalidInput            ErrorKind = "InvalidInput"
	KindNoArtifactsFound        ErrorKind = "NoArtifactsFound"
	KindNoAnswersFound          ErrorKind = "NoAnswersFound"
	KindMixedQuestionInput      ErrorKind = "MixedQuestionInputError"
	KindClassificationExhausted ErrorKind = "ClassificationExhausted"
	KindSummarizationFailed     ErrorKind = "SummarizationFailed"
	KindTranscriptionFailed     ErrorKind = "TranscriptionFailed"
	KindAssemblyFailed          ErrorKind = "AssemblyFailed"
	KindInternal                ErrorKind = "InternalError"
)

// Sentinels for errors.Is. A StageError matches the sentinel of its kind.
var (
	ErrInvalidInput            = &StageError{Kind: KindInvalidInput}
	ErrNoArtifactsFound        = &StageError{Kind: KindNoArtifactsFound}
	ErrNoAnswersFound          = &StageError{Kind: KindNoAnswersFound}
	ErrMixedQuestionInput      = &StageError{Kind: KindMixedQuestionInput}
	ErrClassificationExhausted = &StageError{Kind: KindClassificationExhausted}
	ErrSummarizationFailed     = &StageError{Kind: KindSummarizationFailed}
	ErrTranscriptionFailed     = &StageError{Kind: KindTranscriptionFailed}
	ErrAssemblyFailed          = &StageError{Kind: KindAssemblyFailed}
)

type StageError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *StageError) Error() string {
	msg := string(e.Kind)
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StageError) Unwrap() error { return e.Err }

func (e *StageError) Is(target error) bool {
	t, ok := target.(*StageError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Msg == "" && t.Err == nil
}

func NewError(kind ErrorKind, format string, args ...any) *StageError {
	return &StageError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func WrapError(kind ErrorKind, err error, format string, args ...any) *StageError {
	return &StageError{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the taxonomy kind carried by err, or KindInternal.
func KindOf(err error) ErrorKind {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}
