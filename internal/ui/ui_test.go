package ui

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"flakeload/internal/pipeline"
	"flakeload/pkg/errors"
)

func TestShowErrorIncludesCodeAndSuggestions(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)

	err := errors.ConfigMissing("SNOWFLAKE_ACCOUNT", "env SNOWFLAKE_ACCOUNT", "/run/secrets/snowflake_account")
	p.ShowError(err)

	out := buf.String()
	assert.Contains(t, out, "ERROR:")
	assert.Contains(t, out, string(errors.ErrCodeConfigMissing))
	assert.Contains(t, out, "SNOWFLAKE_ACCOUNT")
	assert.NotContains(t, out, "\x1b[")
}

func TestShowErrorListsContext(t *testing.T) {
	var buf bytes.Buffer
	err := errors.ProvisioningError("GRANT USAGE ON DATABASE IDENTIFIER('DEMO_DB') TO ROLE IDENTIFIER('LOADER_ROLE')", fmt.Errorf("insufficient privileges")).
		WithContext("role", "LOADER_ROLE")
	NewPrinter(&buf, false).ShowError(err)

	out := buf.String()
	role := strings.Index(out, "role: LOADER_ROLE")
	stmt := strings.Index(out, "statement: GRANT USAGE")
	assert.True(t, role >= 0 && stmt >= 0, out)
	assert.Less(t, role, stmt, "context keys are sorted")
}

func TestNoColorOverridesTerminal(t *testing.T) {
	restore := isTerminal
	isTerminal = func(io.Writer) bool { return true }
	t.Cleanup(func() { isTerminal = restore })

	var buf bytes.Buffer
	NewPrinter(&buf, false).ShowSuccess("done")
	assert.Contains(t, buf.String(), "\x1b[")

	buf.Reset()
	p := NewPrinter(&buf, true)
	p.ShowSuccess("done")
	p.ShowSummary(&pipeline.Report{Steps: []pipeline.Step{{Name: "load", Status: pipeline.StatusFailed}}})
	assert.NotContains(t, buf.String(), "\x1b[")
	assert.True(t, strings.HasPrefix(buf.String(), "SUCCESS: done\n"))
}

func TestShowErrorPlain(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, false).ShowError(fmt.Errorf("first\nsecond"))
	assert.Equal(t, "\nERROR: first\n  second\n", buf.String())
}

func TestStepFinished(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)

	p.StepFinished(pipeline.Step{Name: "load", Target: "customers", Status: pipeline.StatusOK, Detail: "3 rows loaded", Duration: 1500 * time.Millisecond})
	p.StepFinished(pipeline.Step{Name: "count", Target: "customers", Status: pipeline.StatusFailed, Detail: "boom"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "✓ load"))
	assert.Contains(t, lines[0], "1.5s")
	assert.True(t, strings.HasPrefix(lines[1], "✗ count"))
}

func TestShowSummary(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, false).ShowSummary(&pipeline.Report{Steps: []pipeline.Step{
		{Name: "provision", Target: "LOADER_ROLE", Status: pipeline.StatusOK, Detail: "10 statements"},
		{Name: "load", Target: "customers", Status: pipeline.StatusFailed, Detail: "COPY INTO failed"},
	}})

	out := buf.String()
	assert.Contains(t, out, "STEP")
	assert.Contains(t, out, "LOADER_ROLE")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "COPY INTO failed")
}

func TestShowSummaryEmpty(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, false).ShowSummary(nil)
	assert.Empty(t, buf.String())
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "<1ms", formatDuration(0))
	assert.Equal(t, "250ms", formatDuration(250*time.Millisecond))
	assert.Equal(t, "2.0s", formatDuration(2*time.Second))
	assert.Equal(t, "1m05s", formatDuration(65*time.Second))
}

func TestShowHeader(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, false).ShowHeader("flakeload")
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 3)
	assert.Equal(t, len(lines[0]), len(lines[1]))
}
