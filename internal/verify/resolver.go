package verify

import (
	"github.com/hashicorp/go-hclog"

	"github.com/massaudit/massaudit/internal/symbols"
)

// SymbolResolver resolves missing context fragments through the symbol index.
// Lookups are capped per session so a chatty engine cannot force unbounded
// filesystem walks.
type SymbolResolver struct {
	index   *symbols.Index
	logger  hclog.Logger
	cap     int
	lookups int
}

// NewSymbolResolver builds a resolver with a per-session lookup cap.
// cap <= 0 means unlimited.
func NewSymbolResolver(index *symbols.Index, logger hclog.Logger, lookupCap int) *SymbolResolver {
	return &SymbolResolver{
		index:  index,
		logger: logger.Named("resolver"),
		cap:    lookupCap,
	}
}

// ResolveMissing looks up every requested symbol not already present in
// contextSet, appends the top-ranked definition for each, and returns the
// fragments added this round. Symbols already present are satisfied from the
// set without a new lookup; unresolved symbols are a normal miss, not an
// error.
func (r *SymbolResolver) ResolveMissing(symbolNames []string, contextSet *ContextSet, projectRoot string) []ContextFragment {
	var added []ContextFragment

	for _, name := range symbolNames {
		if name == "" || contextSet.Has(name) {
			continue
		}
		if r.cap > 0 && r.lookups >= r.cap {
			r.logger.Warn("resolver lookup cap reached, ignoring further requests", "cap", r.cap)
			break
		}
		r.lookups++

		definitions := r.index.Resolve(name, projectRoot)
		if len(definitions) == 0 {
			r.logger.Debug("symbol not found", "symbol", name)
			continue
		}

		top := definitions[0]
		fragment := ContextFragment{
			Symbol:    top.Symbol,
			FilePath:  top.FilePath,
			StartLine: top.StartLine,
			EndLine:   top.EndLine,
			Language:  top.Language,
			Text:      top.Text,
		}
		if contextSet.Add(fragment) {
			added = append(added, fragment)
		}
	}

	return added
}
