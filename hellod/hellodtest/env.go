package hellodtest

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// Env provides a chainable builder for setting [hellod.BaseEnvironment] env vars
// via t.Setenv. Create one with [SetBaseEnv].
type Env struct {
	t testing.TB
}

// SetBaseEnv sets all [hellod.BaseEnvironment] env vars to sensible test defaults.
// Port is required because each test must use a unique port to avoid collisions.
//
// Defaults:
//   - HELLOD_SERVICE_NAME: "test"
//   - HELLOD_LOG_LEVEL: "info"
//   - HELLOD_OTEL_EXPORTER: "none"
//   - HELLOD_DENY_USER_AGENT_PREFIXES: ""
//   - HELLOD_MAX_CONF_RECORDS: "0"
//   - HELLOD_RESPONSE_BUFFER_LIMIT: "-1"
//   - HELLOD_REQUEST_TIMEOUT: "5s"
//   - HELLOD_WATCH_SITE: "false"
//
// Use the returned [Env] to override individual values:
//
//	hellodtest.SetBaseEnv(t, 18085, site).DenyUserAgentPrefixes("curl")
func SetBaseEnv(t testing.TB, port int, siteFile string) *Env {
	t.Helper()
	t.Setenv("HELLOD_PORT", strconv.Itoa(port))
	t.Setenv("HELLOD_SITE_FILE", siteFile)
	t.Setenv("HELLOD_SERVICE_NAME", "test")
	t.Setenv("HELLOD_LOG_LEVEL", "info")
	t.Setenv("HELLOD_OTEL_EXPORTER", "none")
	t.Setenv("HELLOD_DENY_USER_AGENT_PREFIXES", "")
	t.Setenv("HELLOD_MAX_CONF_RECORDS", "0")
	t.Setenv("HELLOD_RESPONSE_BUFFER_LIMIT", "-1")
	t.Setenv("HELLOD_REQUEST_TIMEOUT", "5s")
	t.Setenv("HELLOD_WATCH_SITE", "false")

	return &Env{t: t}
}

// ServiceName overrides HELLOD_SERVICE_NAME.
func (e *Env) ServiceName(name string) *Env {
	e.t.Helper()
	e.t.Setenv("HELLOD_SERVICE_NAME", name)

	return e
}

// LogLevel overrides HELLOD_LOG_LEVEL.
func (e *Env) LogLevel(level string) *Env {
	e.t.Helper()
	e.t.Setenv("HELLOD_LOG_LEVEL", level)

	return e
}

// DenyUserAgentPrefixes overrides HELLOD_DENY_USER_AGENT_PREFIXES.
func (e *Env) DenyUserAgentPrefixes(prefixes ...string) *Env {
	e.t.Helper()
	e.t.Setenv("HELLOD_DENY_USER_AGENT_PREFIXES", strings.Join(prefixes, ","))

	return e
}

// MaxConfRecords overrides HELLOD_MAX_CONF_RECORDS.
func (e *Env) MaxConfRecords(n int) *Env {
	e.t.Helper()
	e.t.Setenv("HELLOD_MAX_CONF_RECORDS", strconv.Itoa(n))

	return e
}

// RequestTimeout overrides HELLOD_REQUEST_TIMEOUT.
func (e *Env) RequestTimeout(d string) *Env {
	e.t.Helper()
	e.t.Setenv("HELLOD_REQUEST_TIMEOUT", d)

	return e
}

// WatchSite sets HELLOD_WATCH_SITE to true.
func (e *Env) WatchSite() *Env {
	e.t.Helper()
	e.t.Setenv("HELLOD_WATCH_SITE", "true")

	return e
}

// WriteSite writes a site file with the given YAML content to a temporary directory and returns its path.
func WriteSite(t testing.TB, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "site.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("hellodtest: write site file: %v", err)
	}

	return path
}
