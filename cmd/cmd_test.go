// File: cmd/cmd_test.go
package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulngate/vulngate/internal/findings"
	"github.com/vulngate/vulngate/internal/gate"
)

const cleanFindingsJSON = `{
	"tool": "trivy",
	"target": "registry.example.com/payments/api:1.42.0",
	"findings": [
		{"id": "CVE-2024-1111", "severity": "LOW", "package": "busybox"}
	]
}`

const criticalFindingsJSON = `{
	"tool": "trivy",
	"target": "registry.example.com/payments/api:1.42.0",
	"findings": [
		{"id": "CVE-2024-2222", "severity": "CRITICAL", "package": "openssl", "fixedVersion": "3.0.14"},
		{"id": "CVE-2024-3333", "severity": "HIGH", "package": "libxml2"}
	]
}`

// writeFindings drops a findings document into a temp dir and returns its path.
func writeFindings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trivy-results.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// executeEval runs a fresh command tree against the given args, with the
// audit log redirected into a temp dir so tests never touch the workspace.
func executeEval(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("VULNGATE_AUDIT_LOG_FILE", filepath.Join(t.TempDir(), "bypass-audit.jsonl"))

	rootCmd := NewRootCommand()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestRootCmd_VersionFlag(t *testing.T) {
	rootCmd := NewRootCommand()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"--version"})

	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "vulngate "+Version)
}

func TestVersionCmd(t *testing.T) {
	rootCmd := NewRootCommand()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})

	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	assert.Equal(t, "vulngate "+Version+"\n", out.String())
}

func TestEval_CleanFindingsPass(t *testing.T) {
	path := writeFindings(t, cleanFindingsJSON)
	out := filepath.Join(t.TempDir(), "verdict.json")

	_, err := executeEval(t, "eval", "--findings", path, "-o", out, "-f", "json")
	require.NoError(t, err)

	var verdict gate.Verdict
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &verdict))
	assert.Equal(t, gate.StatusPass, verdict.Status)
}

func TestEval_ViolationsFail(t *testing.T) {
	path := writeFindings(t, criticalFindingsJSON)
	out := filepath.Join(t.TempDir(), "verdict.json")

	_, err := executeEval(t, "eval", "--findings", path, "-o", out, "-f", "json")
	require.Error(t, err)

	var fail *FailError
	require.ErrorAs(t, err, &fail)
	assert.Equal(t, ExitFail, exitCode(err))

	var verdict gate.Verdict
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &verdict))
	assert.Equal(t, gate.StatusFail, verdict.Status)
	assert.Len(t, verdict.Violations, 2)
}

func TestEval_MissingFindingsFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.json")
	_, err := executeEval(t, "eval", "--findings", missing)
	require.Error(t, err)

	var le *findings.LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, findings.NotFound, le.Kind)
	assert.Equal(t, ExitError, exitCode(err))
}

func TestEval_ThresholdFlagOverride(t *testing.T) {
	path := writeFindings(t, `{
		"tool": "trivy",
		"target": "img",
		"findings": [{"id": "CVE-2024-4444", "severity": "HIGH", "package": "zlib1g"}]
	}`)

	// HIGH violates the default threshold but passes a CRITICAL one.
	_, err := executeEval(t, "eval", "--findings", path, "-t", "CRITICAL", "-o", filepath.Join(t.TempDir(), "v.json"), "-f", "json")
	assert.NoError(t, err)
}

func TestEval_ExceptionFlag(t *testing.T) {
	path := writeFindings(t, criticalFindingsJSON)

	_, err := executeEval(t, "eval", "--findings", path,
		"-e", "openssl", "-e", "libxml2",
		"-o", filepath.Join(t.TempDir(), "v.json"), "-f", "json")
	assert.NoError(t, err)
}

func TestEval_BypassGranted(t *testing.T) {
	path := writeFindings(t, criticalFindingsJSON)
	auditLog := filepath.Join(t.TempDir(), "bypass-audit.jsonl")
	out := filepath.Join(t.TempDir(), "verdict.json")

	t.Setenv("VULNGATE_BYPASS_SECRET", "gate-secret")
	t.Setenv("VULNGATE_BYPASS_TOKEN", "gate-secret")
	t.Setenv("VULNGATE_BYPASS_REASON", "Critical production hotfix, incident INC-4821")
	t.Setenv("VULNGATE_AUDIT_LOG_FILE", auditLog)

	rootCmd := NewRootCommand()
	rootCmd.SetArgs([]string{"eval", "--findings", path, "-o", out, "-f", "json"})
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))

	var verdict gate.Verdict
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &verdict))
	assert.Equal(t, gate.StatusBypassed, verdict.Status)

	// The grant left a trail.
	trail, err := os.ReadFile(auditLog)
	require.NoError(t, err)
	assert.Contains(t, string(trail), `"decision":"granted"`)
	assert.NotContains(t, string(trail), "gate-secret")
}

func TestEval_BypassRejectedWithoutReason(t *testing.T) {
	path := writeFindings(t, criticalFindingsJSON)
	out := filepath.Join(t.TempDir(), "verdict.json")

	t.Setenv("VULNGATE_BYPASS_SECRET", "gate-secret")
	t.Setenv("VULNGATE_BYPASS_TOKEN", "gate-secret")

	_, err := executeEval(t, "eval", "--findings", path, "-o", out, "-f", "json")
	var fail *FailError
	require.ErrorAs(t, err, &fail)

	var verdict gate.Verdict
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &verdict))
	assert.Equal(t, gate.StatusFail, verdict.Status)
	assert.Equal(t, "missing reason", verdict.BypassCause)
}

func TestEval_ConfigFileOverrides(t *testing.T) {
	path := writeFindings(t, `{
		"tool": "trivy",
		"target": "img",
		"findings": [{"id": "CVE-2024-5555", "severity": "MEDIUM", "package": "grpc"}]
	}`)
	cfgFile := filepath.Join(t.TempDir(), "vulngate.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("policy:\n  severity_threshold: MEDIUM\n"), 0o600))

	_, err := executeEval(t, "--config", cfgFile, "eval", "--findings", path,
		"-o", filepath.Join(t.TempDir(), "v.json"), "-f", "json")
	var fail *FailError
	require.ErrorAs(t, err, &fail)
}

func TestEval_InvalidThresholdFlag(t *testing.T) {
	path := writeFindings(t, cleanFindingsJSON)
	_, err := executeEval(t, "eval", "--findings", path, "-t", "SEVERE")
	require.Error(t, err)

	var fail *FailError
	assert.False(t, errors.As(err, &fail))
	assert.Equal(t, ExitError, exitCode(err))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitPass, exitCode(nil))
	assert.Equal(t, ExitFail, exitCode(&FailError{Summary: "FAIL: 2 violation(s)"}))
	assert.Equal(t, ExitError, exitCode(errors.New("boom")))
}
