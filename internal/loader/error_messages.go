package loader

// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support
// reference. Rejected rows and failed loads carry the code of their reason.
//
// Codes are grouped by category:
//
//	PARSE001-PARSE099  malformed rows reported by the scanner
//	VAL001-VAL099      values that cannot be converted to the column type
//	LOAD001-LOAD099    load lifecycle (limits, cancellation, lookups)
//	TBL001-TBL099      destination table and column mapping
//	FMT001-FMT099      format and character configuration
//	FILE001-FILE099    upload and decompression
//	DB001-DB099        database operations and constraints
//	REQ001             malformed request parameters
//	RATE001            request rate limiting
//	ERR000             anything else; check the logs for the original error
//
// Patterns are matched case-insensitively with strings.Contains. The first
// match wins, so specific patterns come before general ones.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Scanner statuses
	{"incomplete column", UserMessage{
		Message: "A quoted value is never closed",
		Action:  "Check for a missing closing quote in this row",
		Code:    "PARSE001",
	}},
	{"row has no column delimiter", UserMessage{
		Message: "Row contains a single column",
		Action:  "Check the delimiter setting matches the file",
		Code:    "PARSE002",
	}},
	{"too few columns", UserMessage{
		Message: "Row has fewer columns than expected",
		Action:  "Fix the row or load with lenient column counts",
		Code:    "PARSE003",
	}},
	{"too many columns", UserMessage{
		Message: "Row has more columns than expected",
		Action:  "Fix the row, map the extra columns, or load with lenient column counts",
		Code:    "PARSE004",
	}},
	{"row too large", UserMessage{
		Message: "Row exceeds the maximum row size",
		Action:  "Check for an unbalanced quote that swallows following rows",
		Code:    "PARSE005",
	}},

	// Value conversion
	{"invalid date", UserMessage{
		Message: "Invalid date format detected",
		Action:  "Use YYYY-MM-DD, MM/DD/YYYY, or Jan 15, 2024",
		Code:    "VAL001",
	}},
	{"invalid number", UserMessage{
		Message: "Invalid number format detected",
		Action:  "Use a standard decimal format",
		Code:    "VAL002",
	}},
	{"required field", UserMessage{
		Message: "Required field is empty",
		Action:  "Provide a value for every NOT NULL column",
		Code:    "VAL003",
	}},
	{"invalid integer", UserMessage{
		Message: "Invalid whole number detected",
		Action:  "Remove fractions and non-numeric characters",
		Code:    "VAL004",
	}},
	{"invalid boolean", UserMessage{
		Message: "Invalid true/false value detected",
		Action:  "Use true/false, yes/no, or 1/0",
		Code:    "VAL005",
	}},
	{"invalid timestamp", UserMessage{
		Message: "Invalid timestamp format detected",
		Action:  "Use YYYY-MM-DD HH:MM:SS or RFC 3339",
		Code:    "VAL006",
	}},
	{"value too long", UserMessage{
		Message: "Value is longer than the column allows",
		Action:  "Shorten the value or widen the column",
		Code:    "VAL007",
	}},
	{"invalid encoding", UserMessage{
		Message: "Value is not valid UTF-8",
		Action:  "Convert the file to UTF-8 before loading",
		Code:    "VAL008",
	}},

	// Load lifecycle
	{"too many rejected rows", UserMessage{
		Message: "Too many rows were rejected",
		Action:  "Download the rejected rows, fix them, and load again",
		Code:    "LOAD001",
	}},
	{"too many concurrent loads", UserMessage{
		Message: "The server is busy with other loads",
		Action:  "Please try again in a few moments",
		Code:    "LOAD002",
	}},
	{"load not found", UserMessage{
		Message: "Load not found",
		Action:  "The load may have expired; start it again",
		Code:    "LOAD003",
	}},
	{"load cancelled", UserMessage{
		Message: "Load was cancelled",
		Action:  "Start the load again if this was unintended",
		Code:    "LOAD004",
	}},

	// Tables and mapping
	{"unknown table", UserMessage{
		Message: "Destination table does not exist",
		Action:  "Check the table and schema names",
		Code:    "TBL001",
	}},
	{"unknown column", UserMessage{
		Message: "Mapped column does not exist in the table",
		Action:  "Check the column list against the table",
		Code:    "TBL002",
	}},
	{"column mapped more than once", UserMessage{
		Message: "A table column is mapped twice",
		Action:  "Map each table column at most once",
		Code:    "TBL003",
	}},
	{"no columns to load", UserMessage{
		Message: "No file column is mapped to the table",
		Action:  "Map at least one column",
		Code:    "TBL004",
	}},
	{"header matching not possible", UserMessage{
		Message: "Columns cannot be mapped by the header row",
		Action:  "Send a delimited file with a header row and no column list",
		Code:    "TBL005",
	}},
	{"required columns missing from header", UserMessage{
		Message: "The header row does not name every required column",
		Action:  "Add the missing columns to the file or give them a default in the table",
		Code:    "TBL006",
	}},

	// Formats
	{"unknown format", UserMessage{
		Message: "Unknown file format",
		Action:  "Use one of the formats listed by /api/formats",
		Code:    "FMT001",
	}},
	{"invalid column widths", UserMessage{
		Message: "Column widths do not match the columns",
		Action:  "Give one positive width per file column",
		Code:    "FMT002",
	}},
	{"field delimiter collides", UserMessage{
		Message: "Delimiter conflicts with another setting",
		Action:  "Use different characters for delimiter, quote, and escape",
		Code:    "FMT003",
	}},
	{"row delimiter", UserMessage{
		Message: "Invalid row delimiter",
		Action:  "Use a newline row delimiter",
		Code:    "FMT004",
	}},
	{"fixed-width format does not support", UserMessage{
		Message: "Fixed-width files cannot use quotes or escapes",
		Action:  "Remove the quote and escape settings",
		Code:    "FMT005",
	}},
	{"invalid character", UserMessage{
		Message: "Invalid character setting",
		Action:  `Use a single character, an escape like \t, hex like 0x7c, or none`,
		Code:    "FMT006",
	}},

	// Files
	{"file too large", UserMessage{
		Message: "File exceeds maximum size limit",
		Action:  "Split the file or compress it",
		Code:    "FILE001",
	}},
	{"failed to create", UserMessage{
		Message: "Compressed file could not be read",
		Action:  "Check the file is not corrupt and its extension matches the compression",
		Code:    "FILE002",
	}},
	{"no file", UserMessage{
		Message: "No file was uploaded",
		Action:  "Attach the file in the 'file' form field",
		Code:    "FILE003",
	}},

	// Database
	{"duplicate key", UserMessage{
		Message: "A record with this key already exists",
		Action:  "Remove duplicates from the file or the table",
		Code:    "DB001",
	}},
	{"unique constraint", UserMessage{
		Message: "This value must be unique but already exists",
		Action:  "Check for duplicate entries in your file",
		Code:    "DB002",
	}},
	{"violates unique", UserMessage{
		Message: "This value must be unique but already exists",
		Action:  "Check for duplicate entries in your file",
		Code:    "DB002",
	}},
	{"foreign key", UserMessage{
		Message: "Referenced record does not exist",
		Action:  "Load parent records first",
		Code:    "DB003",
	}},
	{"connection refused", UserMessage{
		Message: "Unable to connect to database",
		Action:  "Please try again in a few moments",
		Code:    "DB004",
	}},
	{"connection reset", UserMessage{
		Message: "Database connection was interrupted",
		Action:  "Please try again",
		Code:    "DB005",
	}},
	{"deadline exceeded", UserMessage{
		Message: "Operation timed out",
		Action:  "Load a smaller file or try again later",
		Code:    "DB006",
	}},
	{"timeout", UserMessage{
		Message: "Operation timed out",
		Action:  "Load a smaller file or try again later",
		Code:    "DB006",
	}},
	{"deadlock", UserMessage{
		Message: "Database was busy with conflicting operations",
		Action:  "Please try again",
		Code:    "DB007",
	}},
	{"permission denied", UserMessage{
		Message: "Not allowed to write to this table",
		Action:  "Ask an administrator for INSERT privileges",
		Code:    "DB008",
	}},

	{"invalid parameter", UserMessage{
		Message: "Invalid request parameter",
		Action:  "Check the query parameters of the request",
		Code:    "REQ001",
	}},
	{"rate limit", UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}},
}

// defaultMessage is returned when no pattern matches.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. A nil
// error maps to the zero UserMessage.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	return MapReason(err.Error())
}

// MapReason maps an error text, such as a RejectedRow reason.
func MapReason(reason string) UserMessage {
	lower := strings.ToLower(reason)
	for _, ep := range errorPatterns {
		if strings.Contains(lower, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError creates a formatted error string for display:
// "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
