package bphase

import (
	"net"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
)

// ComplexValue is a directive argument that may reference request variables, e.g. "$http_host at $uri". It
// is compiled once while the server is built and evaluated per request.
type ComplexValue struct {
	src   string
	parts []cvPart
}

type cvPart struct {
	lit string
	v   variable
}

type variable func(r *http.Request) string

// CompileComplexValue parses s. A variable is written as $name or ${name}; "$$" is a literal dollar sign.
func CompileComplexValue(s string) (*ComplexValue, error) {
	cv := &ComplexValue{src: s}

	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			cv.parts = append(cv.parts, cvPart{lit: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(s); i++ {
		if s[i] != '$' {
			lit.WriteByte(s[i])
			continue
		}

		if i+1 < len(s) && s[i+1] == '$' {
			lit.WriteByte('$')
			i++

			continue
		}

		var name string
		if i+1 < len(s) && s[i+1] == '{' {
			end := strings.IndexByte(s[i+2:], '}')
			if end < 0 {
				return nil, errors.Newf("unterminated variable at offset %d in %q", i, s)
			}

			name = s[i+2 : i+2+end]
			i += end + 2
		} else {
			j := i + 1
			for j < len(s) && isVarChar(s[j]) {
				j++
			}

			name = s[i+1 : j]
			i = j - 1
		}

		if name == "" {
			return nil, errors.Newf("empty variable name in %q", s)
		}

		v, err := lookupVariable(name)
		if err != nil {
			return nil, err
		}

		flush()
		cv.parts = append(cv.parts, cvPart{v: v})
	}

	flush()

	return cv, nil
}

// LiteralValue returns a value that always evaluates to s.
func LiteralValue(s string) *ComplexValue {
	cv := &ComplexValue{src: s}
	if s != "" {
		cv.parts = []cvPart{{lit: s}}
	}

	return cv
}

// Evaluate expands the value for request r.
func (cv *ComplexValue) Evaluate(r *http.Request) string {
	if len(cv.parts) == 1 && cv.parts[0].v == nil {
		return cv.parts[0].lit
	}

	var b strings.Builder
	for _, p := range cv.parts {
		if p.v == nil {
			b.WriteString(p.lit)
			continue
		}

		b.WriteString(p.v(r))
	}

	return b.String()
}

// IsEmpty reports whether the value has no text and no variables.
func (cv *ComplexValue) IsEmpty() bool { return len(cv.parts) == 0 }

// IsStatic reports whether the value references no variables.
func (cv *ComplexValue) IsStatic() bool {
	for _, p := range cv.parts {
		if p.v != nil {
			return false
		}
	}

	return true
}

// String returns the source the value was compiled from.
func (cv *ComplexValue) String() string { return cv.src }

func isVarChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

var variables = map[string]variable{
	"uri":             func(r *http.Request) string { return r.URL.Path },
	"request_uri":     func(r *http.Request) string { return r.RequestURI },
	"args":            func(r *http.Request) string { return r.URL.RawQuery },
	"host":            hostVariable,
	"remote_addr":     remoteAddrVariable,
	"request_method":  func(r *http.Request) string { return r.Method },
	"scheme":          schemeVariable,
	"server_protocol": func(r *http.Request) string { return r.Proto },
	"location": func(r *http.Request) string {
		if loc := LocationFrom(r.Context()); loc != nil {
			return loc.Path()
		}

		return ""
	},
}

func lookupVariable(name string) (variable, error) {
	if v, ok := variables[name]; ok {
		return v, nil
	}

	switch {
	case strings.HasPrefix(name, "http_") && len(name) > len("http_"):
		hdr := http.CanonicalHeaderKey(strings.ReplaceAll(name[len("http_"):], "_", "-"))
		return func(r *http.Request) string { return r.Header.Get(hdr) }, nil
	case strings.HasPrefix(name, "arg_") && len(name) > len("arg_"):
		arg := name[len("arg_"):]
		return func(r *http.Request) string { return r.URL.Query().Get(arg) }, nil
	}

	return nil, errors.Newf("unknown variable %q", "$"+name)
}

func hostVariable(r *http.Request) string {
	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	return strings.ToLower(host)
}

func remoteAddrVariable(r *http.Request) string {
	if h, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return h
	}

	return r.RemoteAddr
}

func schemeVariable(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}

	return "http"
}
