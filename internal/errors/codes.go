// Package errors provides structured error handling for Scenarium.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (file, disk, index storage)
//   - 3XX: Descriptor parse errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file and disk I/O errors.
	CategoryIO Category = "IO"
	// CategoryParse indicates scenario descriptor parse errors.
	CategoryParse Category = "PARSE"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"
	ErrCodeNoRoots        = "ERR_103_NO_SCAN_ROOTS"

	// IO errors (200-299)
	ErrCodePathNotFound   = "ERR_201_PATH_NOT_FOUND"
	ErrCodePathPermission = "ERR_202_PATH_PERMISSION"
	ErrCodeIndexCorrupt   = "ERR_203_INDEX_CORRUPT"
	ErrCodeIndexLocked    = "ERR_204_INDEX_LOCKED"
	ErrCodeIndexReadOnly  = "ERR_205_INDEX_READ_ONLY"

	// Parse errors (300-399)
	ErrCodeDescriptorMalformed = "ERR_301_DESCRIPTOR_MALFORMED"
	ErrCodeDescriptorMissing   = "ERR_302_DESCRIPTOR_MISSING"
	ErrCodeParseTimeout        = "ERR_303_PARSE_TIMEOUT"

	// Validation errors (400-499)
	ErrCodeInvalidInput    = "ERR_401_INVALID_INPUT"
	ErrCodeInvalidQuery    = "ERR_402_INVALID_QUERY"
	ErrCodeUnknownIdentity = "ERR_403_UNKNOWN_IDENTITY"

	// Internal errors (500-599)
	ErrCodeInternal         = "ERR_501_INTERNAL"
	ErrCodeRescanInProgress = "ERR_502_RESCAN_IN_PROGRESS"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryParse
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeIndexCorrupt, ErrCodeIndexLocked:
		return SeverityFatal
	case ErrCodePathNotFound, ErrCodePathPermission,
		ErrCodeDescriptorMalformed, ErrCodeDescriptorMissing, ErrCodeParseTimeout:
		// Per-package failures are warnings at the scan-pass level.
		return SeverityWarning
	default:
		return SeverityError
	}
}
