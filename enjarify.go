// Package enjarify translates Android dex bytecode into standard JVM
// classfiles. It is the public entry point; internal/dex,
// internal/classfile and internal/translate do the actual work. The
// shape here (a long-lived Translator built from a fluent config, plus
// an optional Cache passed in separately) follows a familiar runtime
// package shape (NewRuntime/NewRuntimeConfig/Cache-style construction).
package enjarify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/enjarify-go/enjarify/internal/config"
	"github.com/enjarify-go/enjarify/internal/dex"
	"github.com/enjarify-go/enjarify/internal/translate"
)

// Config is the fluent translator configuration, re-exported from
// internal/config so callers never need to import an internal package.
type Config = config.TranslatorConfig

// Options is the bit-packed optimization flag set, re-exported from
// internal/config.
type Options = config.Options

// NewConfig returns the default Config: every optimization enabled, one
// worker per CPU, failures logged and skipped.
func NewConfig() Config { return config.NewTranslatorConfig() }

// Cache memoizes translated classfiles across Translator.Dex calls,
// keyed by (dex checksum, class name, Options). A nil *Cache disables
// caching. A cache outlives any single translation call and may be
// shared across concurrent ones.
type Cache struct {
	inner *translate.ClassCache
}

// NewCache returns a Cache holding up to size translated classfiles. A
// size <= 0 disables caching.
func NewCache(size int) (*Cache, error) {
	inner, err := translate.NewClassCache(size)
	if err != nil {
		return nil, err
	}
	return &Cache{inner: inner}, nil
}

// ClassResult is one translated class: its JVM internal-form name (e.g.
// "com/foo/Bar", also its expected output path plus ".class") and its
// finished classfile bytes.
type ClassResult = translate.ClassResult

// Translator translates dex files under one fixed Config and logger.
type Translator struct {
	cfg    Config
	cache  *translate.ClassCache
	logger *zap.Logger
}

// NewTranslator builds a Translator from cfg. cache may be nil. The
// logger is always built with Config.NewLogger(); no other logger can be
// supplied.
func NewTranslator(cfg Config, cache *Cache) (*Translator, error) {
	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, fmt.Errorf("enjarify: building logger: %w", err)
	}
	var inner *translate.ClassCache
	if cache != nil {
		inner = cache.inner
	}
	return &Translator{cfg: cfg, cache: inner, logger: logger}, nil
}

// Dex parses raw as a single dex file and translates every class it
// defines, honoring the bounded concurrency and cache this Translator
// was built with.
func (t *Translator) Dex(ctx context.Context, raw []byte) ([]ClassResult, error) {
	dexf, err := dex.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("enjarify: parsing dex: %w", err)
	}
	return translate.Dex(ctx, t.cfg, dexf, t.cache, t.logger)
}

// Close flushes any buffered logging of the logger NewTranslator built.
func (t *Translator) Close() error {
	return t.logger.Sync()
}
