package config

import (
	"runtime"

	"go.uber.org/zap"
)

// TranslatorConfig is the fluent configuration object threaded through
// internal/translate and internal/classfile, generalized from the
// teacher's RuntimeConfig (config.go): an immutable value type whose
// With* methods each return a modified copy, so a base config can be
// safely shared and specialized per call site without aliasing bugs.
type TranslatorConfig struct {
	options         Options
	maxParallelism  int
	verbose         bool
	errorOnFailure  bool
}

// NewTranslatorConfig returns the default configuration: every
// optimization pass enabled, one goroutine per available CPU, and
// per-class failures logged and skipped rather than aborting the run.
func NewTranslatorConfig() TranslatorConfig {
	return TranslatorConfig{
		options:        All(),
		maxParallelism: runtime.GOMAXPROCS(0),
		verbose:        false,
		errorOnFailure: false,
	}
}

func (c TranslatorConfig) WithOptions(o Options) TranslatorConfig {
	c.options = o
	return c
}

func (c TranslatorConfig) Options() Options { return c.options }

// WithMaxParallelism overrides the number of classes translated
// concurrently within one dex file. A value <= 0 means "unbounded".
func (c TranslatorConfig) WithMaxParallelism(n int) TranslatorConfig {
	c.maxParallelism = n
	return c
}

func (c TranslatorConfig) MaxParallelism() int { return c.maxParallelism }

func (c TranslatorConfig) WithVerboseLogging(v bool) TranslatorConfig {
	c.verbose = v
	return c
}

// WithErrorOnFailure makes a per-class MalformedDexError abort the whole
// run instead of being logged and skipped. Used by the CLI's --strict flag.
func (c TranslatorConfig) WithErrorOnFailure(v bool) TranslatorConfig {
	c.errorOnFailure = v
	return c
}

func (c TranslatorConfig) ErrorOnFailure() bool { return c.errorOnFailure }

// NewLogger builds the *zap.Logger used across a translation run,
// switching construction style by verbosity: zap.NewProduction when
// quiet, zap.NewDevelopment when verbose.
func (c TranslatorConfig) NewLogger() (*zap.Logger, error) {
	if c.verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
