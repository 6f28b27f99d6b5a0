package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name         string
		code         string
		wantCategory Category
		wantSeverity Severity
	}{
		{name: "config error", code: ErrCodeConfigInvalid, wantCategory: CategoryConfig, wantSeverity: SeverityError},
		{name: "io error is warning", code: ErrCodePathNotFound, wantCategory: CategoryIO, wantSeverity: SeverityWarning},
		{name: "corrupt index is fatal", code: ErrCodeIndexCorrupt, wantCategory: CategoryIO, wantSeverity: SeverityFatal},
		{name: "parse error is warning", code: ErrCodeDescriptorMalformed, wantCategory: CategoryParse, wantSeverity: SeverityWarning},
		{name: "parse timeout is warning", code: ErrCodeParseTimeout, wantCategory: CategoryParse, wantSeverity: SeverityWarning},
		{name: "validation error", code: ErrCodeInvalidQuery, wantCategory: CategoryValidation, wantSeverity: SeverityError},
		{name: "internal error", code: ErrCodeInternal, wantCategory: CategoryInternal, wantSeverity: SeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, "boom", nil)
			assert.Equal(t, tt.wantCategory, err.Category)
			assert.Equal(t, tt.wantSeverity, err.Severity)
			assert.Contains(t, err.Error(), tt.code)
			assert.Contains(t, err.Error(), "boom")
		})
	}
}

func TestWrap(t *testing.T) {
	cause := fmt.Errorf("underlying failure")
	err := Wrap(ErrCodeDescriptorMalformed, cause)
	require.NotNil(t, err)
	assert.Equal(t, cause, err.Unwrap())
	assert.True(t, stderrors.Is(err, cause))
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestIsMatchesByCode(t *testing.T) {
	err := New(ErrCodeRescanInProgress, "rescan already running", nil)
	target := New(ErrCodeRescanInProgress, "different message", nil)
	assert.True(t, stderrors.Is(err, target))

	other := New(ErrCodeInternal, "rescan already running", nil)
	assert.False(t, stderrors.Is(err, other))
}

func TestWithDetailAndSuggestion(t *testing.T) {
	err := New(ErrCodePathPermission, "cannot open directory", nil).
		WithDetail("path", "/roots/a").
		WithSuggestion("check directory permissions")

	assert.Equal(t, "/roots/a", err.Details["path"])
	assert.Equal(t, "check directory permissions", err.Suggestion)
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(New(ErrCodeIndexCorrupt, "index unreadable", nil)))
	assert.False(t, IsFatal(New(ErrCodeDescriptorMalformed, "bad descriptor", nil)))
	assert.False(t, IsFatal(fmt.Errorf("plain error")))
	assert.False(t, IsFatal(nil))
}

func TestFormatForLog(t *testing.T) {
	err := New(ErrCodeDescriptorMalformed, "bad field", fmt.Errorf("xml: truncated")).
		WithDetail("path", "/lib/A/summary.xml")

	fields := FormatForLog(err)
	assert.Equal(t, ErrCodeDescriptorMalformed, fields["error_code"])
	assert.Equal(t, "xml: truncated", fields["cause"])
	assert.Equal(t, "/lib/A/summary.xml", fields["detail_path"])
}

func TestFormatForCLI(t *testing.T) {
	out := FormatForCLI(New(ErrCodeNoRoots, "no scan roots configured", nil).
		WithSuggestion("add roots to config.yaml"))
	assert.Contains(t, out, "no scan roots configured")
	assert.Contains(t, out, "add roots to config.yaml")
	assert.Contains(t, out, ErrCodeNoRoots)
}
