// Package config reads typed values from environment variables.
//
// Unlike a get-or-default helper, Env never silently replaces a malformed
// value: every parse failure is recorded as a *FieldError and returned by
// Err, so startup can report all problems at once and refuse to run.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// FieldError describes one invalid configuration key.
type FieldError struct {
	Key   string
	Value string
	Err   error
}

func (e *FieldError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("%s=%q: %v", e.Key, e.Value, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// InvalidFields returns the keys of every *FieldError found in err,
// including errors combined with errors.Join.
func InvalidFields(err error) []string {
	var keys []string
	var walk func(error)
	walk = func(e error) {
		if e == nil {
			return
		}
		if fe, ok := e.(*FieldError); ok {
			keys = append(keys, fe.Key)
			return
		}
		switch u := e.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			walk(u.Unwrap())
		}
	}
	walk(err)
	return keys
}

// Env reads environment variables and accumulates parse errors.
// It is not safe for concurrent use.
type Env struct {
	lookup func(string) (string, bool)
	errs   []error
}

// NewEnv reads from the process environment.
func NewEnv() *Env {
	return &Env{lookup: os.LookupEnv}
}

// NewEnvFrom reads from a fixed map. Used by tests and the diagnostic script.
func NewEnvFrom(values map[string]string) *Env {
	return &Env{lookup: func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}}
}

// Fail records a validation error for key.
func (e *Env) Fail(key, value string, err error) {
	e.errs = append(e.errs, &FieldError{Key: key, Value: value, Err: err})
}

// Err returns every recorded error joined, or nil.
func (e *Env) Err() error {
	return errors.Join(e.errs...)
}

// raw returns the trimmed value and whether it was set to something non-empty.
func (e *Env) raw(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

// String returns the value of key, or def when unset or empty.
func (e *Env) String(key, def string) string {
	if v, ok := e.raw(key); ok {
		return v
	}
	return def
}

// Required returns the value of key and records an error when it is missing.
func (e *Env) Required(key string) string {
	v, ok := e.raw(key)
	if !ok {
		e.Fail(key, "", errors.New("is required"))
	}
	return v
}

// Int parses key as a base-10 integer.
func (e *Env) Int(key string, def int) int {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.Fail(key, v, errors.New("must be an integer"))
		return def
	}
	return n
}

// Int64 parses key as a base-10 64-bit integer.
func (e *Env) Int64(key string, def int64) int64 {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		e.Fail(key, v, errors.New("must be an integer"))
		return def
	}
	return n
}

// Float parses key as a float64.
func (e *Env) Float(key string, def float64) float64 {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.Fail(key, v, errors.New("must be a number"))
		return def
	}
	return f
}

// Bool parses key with strconv.ParseBool.
func (e *Env) Bool(key string, def bool) bool {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.Fail(key, v, errors.New("must be a boolean"))
		return def
	}
	return b
}

// Duration parses key with time.ParseDuration ("30s", "5m").
func (e *Env) Duration(key string, def time.Duration) time.Duration {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.Fail(key, v, errors.New("must be a duration such as 30s or 5m"))
		return def
	}
	return d
}

// StringList splits key on commas, trimming blanks and dropping empty parts.
func (e *Env) StringList(key string) []string {
	v, ok := e.raw(key)
	if !ok {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
