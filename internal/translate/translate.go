// Package translate drives whole-dex-file translation: one bounded
// worker pool per dex file translating every class concurrently,
// backed by an optional ClassCache and reporting per-class failures
// through *zap.Logger rather than aborting the run. Uses
// golang.org/x/sync/errgroup the way idiomatic Go bounds fan-out work.
package translate

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/enjarify-go/enjarify/internal/classfile"
	"github.com/enjarify-go/enjarify/internal/config"
	"github.com/enjarify-go/enjarify/internal/constantpool"
	"github.com/enjarify-go/enjarify/internal/dex"
)

// ClassResult is one class's translation output.
type ClassResult struct {
	// Name is the class's internal-form name (e.g. "com/foo/Bar"), also
	// the classfile's expected path relative to the output root plus
	// ".class".
	Name  string
	Bytes []byte
}

// Dex translates every class defined in dexf, running up to
// cfg.MaxParallelism() translations concurrently. A class whose
// translation fails with classfile.MalformedDexError is logged and
// skipped unless cfg.ErrorOnFailure() is set, in which case the whole
// call returns that error. Any other error (a bug, not a malformed
// input) always aborts the run. The returned slice preserves the dex
// file's class_def order with failed/skipped classes omitted.
func Dex(ctx context.Context, cfg config.TranslatorConfig, dexf *dex.File, cache *ClassCache, logger *zap.Logger) ([]ClassResult, error) {
	classes := dexf.Classes()
	slots := make([]ClassResult, len(classes))
	present := make([]bool, len(classes))

	g, ctx := errgroup.WithContext(ctx)
	if n := cfg.MaxParallelism(); n > 0 {
		g.SetLimit(n)
	}

	checksum := dexf.Checksum()
	opts := cfg.Options()

	for i, class := range classes {
		i, class := i, class
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			name := string(class.Name)

			if data, ok := cache.Get(checksum, class.Name, opts); ok {
				slots[i] = ClassResult{Name: name, Bytes: data}
				present[i] = true
				return nil
			}

			data, err := classfile.Translate(opts, dexf, class)
			if err != nil {
				var malformed *classfile.MalformedDexError
				if errors.As(err, &malformed) {
					logSkippedClass(logger, name, malformed)
					if cfg.ErrorOnFailure() {
						return malformed
					}
					return nil
				}
				return fmt.Errorf("class %s: %w", name, err)
			}

			cache.Put(checksum, class.Name, opts, data)
			slots[i] = ClassResult{Name: name, Bytes: data}
			present[i] = true
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]ClassResult, 0, len(classes))
	for i, ok := range present {
		if ok {
			out = append(out, slots[i])
		}
	}
	return out, nil
}

// logSkippedClass logs a per-class failure at a level matching its
// underlying cause: Warn when the class still could not fit the
// classfile format even after classfile.Translate retried with every
// optimization enabled, Error for every other malformed-input cause.
func logSkippedClass(logger *zap.Logger, name string, err *classfile.MalformedDexError) {
	fields := []zap.Field{zap.String("class", name), zap.Error(err)}
	if errors.Is(err.Err, constantpool.ErrClassfileLimitExceeded) {
		logger.Warn("class exceeds classfile format limits, skipping", fields...)
		return
	}
	logger.Error("malformed class, skipping", fields...)
}
