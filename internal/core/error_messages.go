package core

// # Error Codes Reference
//
// Every error shown to a user carries a code they can quote to support.
// Codes are grouped by category:
//
//	AUTH001-AUTH006   sign-in, tokens, permissions
//	FILE001-FILE006   upload validation and stored files
//	PARSE001-PARSE005 workbook parsing
//	USR001-USR003     accounts
//	CHT001-CHT003     charts
//	UPL001-UPL003     uploads and request lifetime
//	DB001-DB006       database constraints and connectivity
//	RATE001           throttling
//	VAL001            malformed requests
//	ERR000            anything else; check the logs for the request ID
//
// Patterns are matched case-insensitively with strings.Contains and the
// first match wins, so specific patterns come before general ones.

import (
	"fmt"
	"strings"
)

// UserMessage is the user-facing side of an error.
type UserMessage struct {
	Message string // what happened
	Action  string // what to do about it
	Code    string // support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Auth
	{"invalid credentials", UserMessage{"Invalid credentials", "Check your email and password and try again", "AUTH001"}},
	{"account is deactivated", UserMessage{"Account is deactivated", "Contact an administrator to reactivate your account", "AUTH002"}},
	{"token expired", UserMessage{"Your session has expired", "Please log in again", "AUTH003"}},
	{"invalid token", UserMessage{"Not authorized, invalid token", "Please log in again", "AUTH004"}},
	{"admin privileges required", UserMessage{"Access denied. Admin privileges required", "Sign in with an administrator account", "AUTH005"}},
	{"no token", UserMessage{"Not authorized, no token", "Please log in to continue", "AUTH006"}},

	// Files
	{"file too large", UserMessage{"File exceeds the maximum upload size", "Upload a smaller workbook or split it into several files", "FILE001"}},
	{"invalid file type", UserMessage{"Only Excel files (.xls, .xlsx) are allowed", "Choose an .xls or .xlsx file", "FILE002"}},
	{"no file uploaded", UserMessage{"No file was uploaded", "Please select an Excel file to upload", "FILE003"}},
	{"file not found on server", UserMessage{"File not found on server", "Upload the workbook again", "FILE004"}},
	{"multipart", UserMessage{"The upload could not be read", "Please try the upload again", "FILE005"}},
	{"request body too large", UserMessage{"The request is larger than the server accepts", "Upload a smaller workbook", "FILE006"}},

	// Parsing
	{"no sheets found", UserMessage{"The workbook has no sheets", "Check that the file is a valid Excel workbook", "PARSE001"}},
	{"sheet not found", UserMessage{"The selected sheet does not exist", "Pick one of the workbook's sheets", "PARSE002"}},
	{"no data found", UserMessage{"The sheet is empty", "Choose a sheet that contains data", "PARSE003"}},
	{"no column headers", UserMessage{"The first row has no column headers", "Put column names in the first row of the sheet", "PARSE004"}},
	{"failed to process excel file", UserMessage{"The workbook could not be read", "Check that the file opens in Excel and try again", "PARSE005"}},

	// Accounts
	{"email is already taken", UserMessage{"User already exists with this email", "Sign in or use a different email address", "USR001"}},
	{"user not found", UserMessage{"User not found", "Check the email address or user ID", "USR002"}},
	{"cannot delete your own account", UserMessage{"Cannot delete your own account", "Ask another administrator to remove it", "USR003"}},

	// Charts
	{"chart not found", UserMessage{"Chart not found", "It may have been deleted", "CHT001"}},
	{"unknown chart type", UserMessage{"Unsupported chart type", "Use bar, line, pie, scatter, 3d-bar or 3d-scatter", "CHT003"}},
	{"invalid chart", UserMessage{"The chart configuration is invalid", "Check the selected axes and title", "CHT002"}},

	// Uploads
	{"upload not found", UserMessage{"Upload not found", "It may have been deleted", "UPL001"}},
	{"too many concurrent uploads", UserMessage{"The server is busy processing other uploads", "Please wait a moment and try again", "UPL002"}},
	{"context canceled", UserMessage{"Request was cancelled", "Please try again", "UPL003"}},
	{"context deadline exceeded", UserMessage{"Request timed out", "Try a smaller file or check your connection", "UPL003"}},

	// Database
	{"duplicate key", UserMessage{"A record with this value already exists", "Use a different value", "DB001"}},
	{"foreign key", UserMessage{"Referenced record does not exist", "Refresh the page and try again", "DB002"}},
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB003"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Please try again", "DB004"}},
	{"timeout", UserMessage{"Operation timed out", "Please try again later", "DB005"}},
	{"deadlock", UserMessage{"Database was busy with conflicting operations", "Please try again", "DB006"}},

	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}},
	{"invalid request", UserMessage{"The request is invalid", "Check the submitted fields and try again", "VAL001"}},
	{"route not found", UserMessage{"Route not found", "Check the URL and try again", "VAL001"}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-facing message. Unknown
// errors map to ERR000; nil maps to the zero UserMessage.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
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

// NewUserError maps err. It returns nil for a nil err.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{Technical: err, User: MapError(err)}
}
