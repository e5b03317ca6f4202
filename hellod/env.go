package hellod

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap/zapcore"
)

// Environment defines the interface that all environment configurations must implement.
// Embed BaseEnvironment in your struct to satisfy this interface.
type Environment interface {
	port() int
	serviceName() string
	siteFile() string
	logLevel() zapcore.Level
	otelExporter() string
	deniedUserAgentPrefixes() []string
	maxConfRecords() int
	responseBufferLimit() int
	requestTimeout() time.Duration
	watchSite() bool
}

// BaseEnvironment contains the variables every hellod process reads.
// Embed this in your custom environment struct.
type BaseEnvironment struct {
	Port         int           `env:"HELLOD_PORT,required"`
	ServiceName  string        `env:"HELLOD_SERVICE_NAME" envDefault:"hellod"`
	SiteFile     string        `env:"HELLOD_SITE_FILE,required"`
	LogLevel     zapcore.Level `env:"HELLOD_LOG_LEVEL" envDefault:"info"`
	OtelExporter string        `env:"HELLOD_OTEL_EXPORTER" envDefault:"stdout"`
	// DenyUserAgentPrefixes makes the hello_world access handler reject matching clients. Empty allows
	// every client.
	DenyUserAgentPrefixes []string `env:"HELLOD_DENY_USER_AGENT_PREFIXES" envSeparator:","`
	// MaxConfRecords bounds the configuration records modules may allocate. Zero is unbounded.
	MaxConfRecords      int           `env:"HELLOD_MAX_CONF_RECORDS" envDefault:"0"`
	ResponseBufferLimit int           `env:"HELLOD_RESPONSE_BUFFER_LIMIT" envDefault:"-1"`
	RequestTimeout      time.Duration `env:"HELLOD_REQUEST_TIMEOUT" envDefault:"30s"`
	// WatchSite rebuilds the server whenever the site file changes.
	WatchSite bool `env:"HELLOD_WATCH_SITE" envDefault:"false"`
}

func (e BaseEnvironment) port() int {
	return e.Port
}

func (e BaseEnvironment) serviceName() string {
	return e.ServiceName
}

func (e BaseEnvironment) siteFile() string {
	return e.SiteFile
}

func (e BaseEnvironment) logLevel() zapcore.Level {
	return e.LogLevel
}

func (e BaseEnvironment) otelExporter() string {
	return e.OtelExporter
}

func (e BaseEnvironment) deniedUserAgentPrefixes() []string {
	return e.DenyUserAgentPrefixes
}

func (e BaseEnvironment) maxConfRecords() int {
	return e.MaxConfRecords
}

func (e BaseEnvironment) responseBufferLimit() int {
	return e.ResponseBufferLimit
}

func (e BaseEnvironment) requestTimeout() time.Duration {
	return e.RequestTimeout
}

func (e BaseEnvironment) watchSite() bool {
	return e.WatchSite
}

var _ Environment = BaseEnvironment{}

// ParseEnv parses environment variables into the given Environment type.
func ParseEnv[E Environment]() func() (E, error) {
	return func() (E, error) {
		return parseEnv[E](env.Options{})
	}
}

// ParseEnvFrom parses vars instead of the process environment into the given Environment type.
func ParseEnvFrom[E Environment](vars map[string]string) (E, error) {
	return parseEnv[E](env.Options{Environment: vars})
}

func parseEnv[E Environment](opts env.Options) (e E, err error) {
	if err := env.ParseWithOptions(&e, opts); err != nil {
		return e, errors.Wrap(err, "failed to parse environment")
	}

	if e.maxConfRecords() < 0 {
		return e, errors.Newf("HELLOD_MAX_CONF_RECORDS must not be negative, got %d", e.maxConfRecords())
	}

	return e, nil
}
