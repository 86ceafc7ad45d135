package main

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/enjarify-go/enjarify"
	"github.com/enjarify-go/enjarify/internal/config"
)

// runTranslate reads every input (a bare .dex file, or an .apk whose
// classes*.dex entries are extracted via archive/zip) and writes each
// translated class to outDir/<internal-class-name>.class. Archive
// handling and argument parsing are deliberately thin: they sit outside
// the core translation engine and are implemented here with the standard
// library rather than a dedicated third-party dependency.
func runTranslate(ctx context.Context, cfg config.TranslatorConfig, inputs []string, outDir string, cacheSize int) error {
	cache, err := enjarify.NewCache(cacheSize)
	if err != nil {
		return err
	}
	t, err := enjarify.NewTranslator(cfg, cache)
	if err != nil {
		return err
	}
	defer t.Close()

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	for _, input := range inputs {
		dexFiles, err := readDexInputs(input)
		if err != nil {
			return fmt.Errorf("reading %s: %w", input, err)
		}
		for _, raw := range dexFiles {
			results, err := t.Dex(ctx, raw)
			if err != nil {
				return fmt.Errorf("translating %s: %w", input, err)
			}
			for _, r := range results {
				if err := writeClassFile(outDir, r); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// readDexInputs returns the raw bytes of every dex file named by path: a
// single-element slice for a bare .dex file, or one element per
// classes*.dex entry for an .apk (read in zip directory order, which is
// also Android's own multidex load order).
func readDexInputs(path string) ([][]byte, error) {
	if strings.HasSuffix(strings.ToLower(path), ".apk") {
		return readDexFromAPK(path)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return [][]byte{raw}, nil
}

func readDexFromAPK(path string) ([][]byte, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var out [][]byte
	for _, f := range zr.File {
		name := f.Name
		if !strings.HasPrefix(name, "classes") || !strings.HasSuffix(name, ".dex") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no classes*.dex entries found in %s", path)
	}
	return out, nil
}

func writeClassFile(outDir string, r enjarify.ClassResult) error {
	dest := filepath.Join(outDir, filepath.FromSlash(r.Name)+".class")
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", r.Name, err)
	}
	if err := os.WriteFile(dest, r.Bytes, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	return nil
}
