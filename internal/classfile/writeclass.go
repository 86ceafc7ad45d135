package classfile

import (
	"errors"
	"fmt"

	"github.com/enjarify-go/enjarify/internal/config"
	"github.com/enjarify-go/enjarify/internal/constantpool"
	"github.com/enjarify-go/enjarify/internal/dex"
	"github.com/enjarify-go/enjarify/internal/ir"
	"github.com/enjarify-go/enjarify/internal/optimize"
)

// MalformedDexError wraps a per-class translation failure (bad descriptor
// syntax, an out-of-range constant reference, anything internal/irbuilder
// or internal/typeinfer reject outright, and also a classfile-format limit
// error that Translate's retry did not get rid of): the class this dex
// file names as Class and the underlying cause, still reachable through
// Unwrap. internal/translate catches this type, logs it, and moves on to
// the next class rather than aborting the whole run.
type MalformedDexError struct {
	Class []byte
	Err   error
}

func (e *MalformedDexError) Error() string {
	return fmt.Sprintf("malformed class %s: %v", e.Class, e.Err)
}

func (e *MalformedDexError) Unwrap() error { return e.Err }

const classfileMagic = 0xcafebabe
const classfileMinorVersion = 0
const classfileMajorVersion = 49 // Java 5, the version enjarify's own output targets

// Translate compiles one dex class into a finished classfile byte stream.
// It first tries cfg; if the class overflows a classfile-format limit
// (too many constant pool entries, too long a Code attribute) under that
// option set, it retries once with every optimization enabled
// (config.All()), since several passes (RemoveUnusedRegs, SplitPool,
// DelayConsts especially) exist specifically to shrink output that would
// otherwise exceed a limit. A second failure is returned to the caller.
func Translate(cfg config.Options, dexf *dex.File, class *dex.Class) ([]byte, error) {
	out, err := translateWith(cfg, dexf, class)
	if err == nil {
		return out, nil
	}
	if !errors.Is(err, constantpool.ErrClassfileLimitExceeded) {
		return nil, &MalformedDexError{Class: class.Name, Err: err}
	}
	if cfg == config.All() {
		return nil, &MalformedDexError{Class: class.Name, Err: err}
	}
	out, err = translateWith(config.All(), dexf, class)
	if err != nil {
		return nil, &MalformedDexError{Class: class.Name, Err: err}
	}
	return out, nil
}

func translateWith(cfg config.Options, dexf *dex.File, class *dex.Class) ([]byte, error) {
	var pool constantpool.Pool
	if cfg.Has(config.SplitPool) {
		pool = constantpool.NewSplitPool()
	} else {
		pool = constantpool.NewSimplePool()
	}

	fields, methods := class.ParseData()

	prepared := make([]PreparedMethod, 0, len(methods))
	codeMethods := make([]int, 0, len(methods)) // indices into methods with Code != nil
	for i, m := range methods {
		if m.Code == nil {
			continue
		}
		prep, err := PrepareMethod(cfg, pool, dexf, class.Name, &methods[i])
		if err != nil {
			return nil, err
		}
		prepared = append(prepared, prep)
		codeMethods = append(codeMethods, i)
	}

	resolvedConsts := map[string]uint16{}
	if cfg.Has(config.DelayConsts) && len(prepared) > 0 {
		methodOps := make([][]ir.Instruction, len(prepared))
		for i, p := range prepared {
			methodOps[i] = p.Ops
		}
		cands := optimize.CollectCandidates(methodOps)
		allocated, err := optimize.AllocateRequiredConstants(pool, cands)
		if err != nil {
			return nil, err
		}
		for _, c := range cands {
			idx, ok := allocated[c.ID]
			if !ok {
				continue
			}
			resolvedConsts[DelayKey(c.MethodIdx, c.Key)] = idx
		}
	}

	compiled := make(map[int]CompiledMethod, len(prepared))
	for i, p := range prepared {
		cm, err := FinishMethod(pool, i, p, resolvedConsts)
		if err != nil {
			return nil, err
		}
		compiled[codeMethods[i]] = cm
	}

	w := newClassWriter(pool)
	return w.build(class, fields, methods, compiled)
}
