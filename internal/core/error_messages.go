package core

// error_messages.go maps technical errors to user-facing messages with a
// code that staff can quote when reporting a problem.
//
// Codes are grouped by category:
//
//	DB001-DB099   database constraints and connectivity
//	VAL001-VAL099 rejected values
//	FILE001-...   uploaded files
//	IMP001-...    import runs
//	EXP001-...    exports and progress sessions
//	AUTH001-...   login and permissions
//	RES001-...    residents
//	RATE001       request throttling
//	REQ001        unreadable request bodies
//	ERR000        fallback, check the application log
//
// Sentinel errors are matched first with errors.Is. Everything else is
// matched case-insensitively against a pattern list; the first match wins,
// so specific patterns come before general ones.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type sentinelMessage struct {
	err error
	msg UserMessage
}

var sentinelMessages = []sentinelMessage{
	{ErrNotFound, UserMessage{"Record not found", "Check the identifier and try again", "RES001"}},
	{ErrInvalidField, UserMessage{"This field cannot be edited", "Only mobile number, UID, health ID and household ID can be changed", "RES002"}},
	{ErrForbidden, UserMessage{"You do not have permission for this action", "Ask an administrator to update your role or secretariats", "AUTH002"}},
	{ErrInvalidCredentials, UserMessage{"Invalid username or password", "Check your credentials and try again", "AUTH001"}},
	{ErrUnauthenticated, UserMessage{"Your session has expired", "Sign in again", "AUTH003"}},
	{ErrTooManyJobs, UserMessage{"System is busy with other exports or imports", "Please wait a moment and try again", "EXP001"}},
	{ErrInvalidSession, UserMessage{"Progress session not recognised", "Start a new export", "EXP002"}},
	{ErrInvalidFormat, UserMessage{"Unsupported export format", "Choose CSV or Excel", "EXP003"}},
	{ErrInvalidMode, UserMessage{"Unknown import mode", "Choose add, update or upsert", "IMP001"}},
	{ErrNoFiles, UserMessage{"No file was selected", "Attach a health file, a demographic file, or both", "FILE004"}},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Database constraints
	{"duplicate key", UserMessage{"A record with this ID already exists", "Use update or upsert mode to change existing residents", "DB001"}},
	{"violates unique", UserMessage{"A duplicate value was found", "Review your data for duplicate key values", "DB002"}},
	{"violates foreign key", UserMessage{"Referenced record does not exist", "Check that the resident or user still exists", "DB003"}},
	{"violates check constraint", UserMessage{"A value is outside the allowed set", "Check roles and other restricted values", "DB008"}},

	// Database connectivity
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB004"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Please try again", "DB005"}},
	{"deadlock", UserMessage{"Database was busy with conflicting operations", "Please try again", "DB007"}},

	// Values
	{"invalid date", UserMessage{"Invalid date format detected", "Use YYYY-MM-DD or DD/MM/YYYY", "VAL001"}},
	{"uid: must be 12 digits", UserMessage{"UID must be exactly 12 digits", "Remove letters and check the number", "VAL002"}},
	{"mobile_number: must be 10 digits", UserMessage{"Mobile number must be 10 digits", "Enter the number without country code", "VAL003"}},
	{"missing required column", UserMessage{"Required column is missing from the file", "Check the file headers against the template", "VAL004"}},
	{"required field", UserMessage{"Required field is empty", "Ensure all required columns have values", "VAL005"}},

	// Files
	{"file too large", UserMessage{"File exceeds the maximum size limit", "Split the file into smaller parts", "FILE001"}},
	{"invalid csv", UserMessage{"File is not a valid CSV", "Ensure the file is comma-separated with consistent columns", "FILE002"}},
	{"invalid xlsx", UserMessage{"File is not a valid Excel workbook", "Save the file as .xlsx and try again", "FILE003"}},
	{"unsupported file type", UserMessage{"Unsupported file type", "Upload a .csv or .xlsx file", "FILE006"}},
	{"empty file", UserMessage{"The uploaded file is empty", "Upload a file with a header row and data rows", "FILE005"}},

	// Requests
	{"context canceled", UserMessage{"Request was cancelled", "Please try again", "ERR001"}},
	{"context deadline exceeded", UserMessage{"Request timed out", "Narrow the filters or try again later", "ERR002"}},
	{"timeout", UserMessage{"Operation timed out", "Please try again later", "DB006"}},

	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}},
	{"invalid request body", UserMessage{"The request could not be read", "Check the submitted values and try again", "REQ001"}},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.err) {
			return sm.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	var verr *ValidationError
	if errors.As(err, &verr) && verr.Msg != "" {
		return UserMessage{
			Message: "Invalid value for " + verr.Field,
			Action:  strings.ToUpper(verr.Msg[:1]) + verr.Msg[1:],
			Code:    "VAL006",
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error, kept for logging, with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
