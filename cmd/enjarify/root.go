package main

import (
	"github.com/spf13/cobra"

	"github.com/enjarify-go/enjarify/internal/config"
)

// optionFlags binds one --flag-name per config.Options bit, letting a
// caller disable individual passes instead of accepting only
// Options.All()/None()/Pretty() wholesale.
type optionFlags struct {
	inlineConsts     bool
	pruneStoreLoads  bool
	copyPropagation  bool
	removeUnusedRegs bool
	dup2ize          bool
	sortRegisters    bool
	splitPool        bool
	delayConsts      bool
}

func (f optionFlags) toOptions() config.Options {
	var o config.Options
	set := func(cond bool, bit config.Options) {
		if cond {
			o |= bit
		}
	}
	set(f.inlineConsts, config.InlineConsts)
	set(f.pruneStoreLoads, config.PruneStoreLoads)
	set(f.copyPropagation, config.CopyPropagation)
	set(f.removeUnusedRegs, config.RemoveUnusedRegs)
	set(f.dup2ize, config.Dup2ize)
	set(f.sortRegisters, config.SortRegisters)
	set(f.splitPool, config.SplitPool)
	set(f.delayConsts, config.DelayConsts)
	return o
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "enjarify",
		Short: "Translate Dalvik dex bytecode into JVM classfiles",
	}
	root.AddCommand(newTranslateCmd())
	return root
}

func newTranslateCmd() *cobra.Command {
	var (
		outDir    string
		workers   int
		cacheSize int
		verbose   bool
		strict    bool
		opts      optionFlags
	)

	cmd := &cobra.Command{
		Use:   "translate <dex-or-apk>...",
		Short: "Translate one or more .dex or .apk inputs into a directory of .class files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.NewTranslatorConfig().
				WithOptions(opts.toOptions()).
				WithVerboseLogging(verbose).
				WithErrorOnFailure(strict)
			if workers > 0 {
				cfg = cfg.WithMaxParallelism(workers)
			}
			return runTranslate(cmd.Context(), cfg, args, outDir, cacheSize)
		},
	}

	cmd.Flags().StringVarP(&outDir, "output", "o", ".", "output directory for translated .class files")
	cmd.Flags().IntVar(&workers, "workers", 0, "maximum concurrent per-class translations (0 = one per CPU)")
	cmd.Flags().IntVar(&cacheSize, "cache-size", 0, "number of translated classfiles to memoize across inputs (0 disables caching)")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "enable development-mode (human-readable, debug-level) logging")
	cmd.Flags().BoolVar(&strict, "strict", false, "abort the run on the first malformed class instead of skipping it")

	cmd.Flags().BoolVar(&opts.inlineConsts, "inline-consts", true, "inline constants instead of always synthesizing them in place")
	cmd.Flags().BoolVar(&opts.pruneStoreLoads, "prune-store-loads", true, "remove redundant store/load pairs")
	cmd.Flags().BoolVar(&opts.copyPropagation, "copy-propagation", true, "propagate register copies to their source")
	cmd.Flags().BoolVar(&opts.removeUnusedRegs, "remove-unused-regs", true, "remove stores to registers never subsequently read")
	cmd.Flags().BoolVar(&opts.dup2ize, "dup2ize", true, "share repeated narrow loads via dup/dup2")
	cmd.Flags().BoolVar(&opts.sortRegisters, "sort-registers", true, "allocate registers by descending use frequency")
	cmd.Flags().BoolVar(&opts.splitPool, "split-pool", true, "use the split low/high constant pool layout")
	cmd.Flags().BoolVar(&opts.delayConsts, "delay-consts", true, "defer constant pool allocation until every method in a class is built")

	return cmd
}
