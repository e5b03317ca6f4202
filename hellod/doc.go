// Package hellod provides the batteries-included hello_world server process.
//
// # Overview
//
// hellod handles the boilerplate around a [bphase.Server]: environment parsing, structured logging,
// OpenTelemetry tracing, loading the site file and graceful shutdown. A complete process is created in a
// single call:
//
//	hellod.NewApp[hellod.BaseEnvironment]().Run()
//
// # Environment Configuration
//
// Define your environment by embedding [BaseEnvironment]:
//
//	type Env struct {
//	    hellod.BaseEnvironment
//	    Greeter string `env:"GREETER"`
//	}
//
// BaseEnvironment provides the following environment variables:
//
//	| Variable                        | Required | Default | Description                                      |
//	|---------------------------------|----------|---------|--------------------------------------------------|
//	| HELLOD_PORT                     | Yes      | -       | Port the HTTP server listens on                  |
//	| HELLOD_SITE_FILE                | Yes      | -       | YAML file with the location tree                 |
//	| HELLOD_SERVICE_NAME             | No       | hellod  | Service name for logging and tracing             |
//	| HELLOD_LOG_LEVEL                | No       | info    | Log level (debug, info, warn, error)             |
//	| HELLOD_OTEL_EXPORTER            | No       | stdout  | Trace exporter: "stdout", "xrayudp" or "none"    |
//	| HELLOD_DENY_USER_AGENT_PREFIXES | No       | -       | Comma separated User-Agent prefixes to reject    |
//	| HELLOD_MAX_CONF_RECORDS         | No       | 0       | Bound on configuration records, 0 is unbounded   |
//	| HELLOD_RESPONSE_BUFFER_LIMIT    | No       | -1      | Bound on buffered response bodies, -1 is none    |
//	| HELLOD_REQUEST_TIMEOUT          | No       | 30s     | Deadline of every request                        |
//	| HELLOD_WATCH_SITE               | No       | false   | Rebuild the server when the site file changes    |
//
// # Site File
//
// The site file describes the server scope and its nested locations. Each directive is a list of its name
// followed by its arguments:
//
//	directives:
//	  - [hello_world_text, "world"]
//	locations:
//	  - location: /hello
//	    directives:
//	      - [hello_world]
//	  - location: /agent
//	    directives:
//	      - [hello_world]
//	      - [hello_world_text, "$http_user_agent"]
//
// # Reloading
//
// Requests are served by a [SiteHandler] that holds the current build. [SiteHandler.Reload] rebuilds from
// the site file and swaps it in; when the rebuild fails the previous build keeps serving.
//
// # Logging
//
// Every request carries a zap logger that is available to module handlers through [bphase.Log]. When the
// request is traced the logger includes trace_id and span_id. The access log module writes one line per
// request from the log phase.
//
// # Testing
//
// The hellodtest package builds the same dependency graph on top of fxtest.
package hellod
