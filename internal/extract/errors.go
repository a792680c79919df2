package extract

import (
	"errors"
	"fmt"
)

// Code is the machine-readable failure class of an extraction.
type Code string

const (
	CodeInputInvalid         Code = "INPUT_INVALID"
	CodePDFParseFailed       Code = "PDF_PARSE_FAILED"
	CodeOCRRuntimeMissing    Code = "OCR_RUNTIME_MISSING"
	CodeOCRFailed            Code = "OCR_FAILED"
	CodeDOCXGenerationFailed Code = "DOCX_GENERATION_FAILED"
)

// Error is returned for every classified pipeline failure.
type Error struct {
	Code    Code
	Message string
	// Page is the 1-based page that failed, 0 when the failure is document-wide.
	Page int
	Err  error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Page > 0 {
		msg = fmt.Sprintf("page %d: %s", e.Page, msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code Code, page int, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Page: page, Err: err}
}

// CodeOf returns the pipeline code carried by err, or "" for unclassified errors
// such as context cancellation.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
