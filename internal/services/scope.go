package services

import "carteira/internal/core"

// ResolveEffectiveScope decides which scope an edit or delete of target
// runs with. Ungrouped rows always use ScopeOnly whatever was asked;
// grouped rows need an explicit, known scope.
func ResolveEffectiveScope(target core.Transaction, requested core.Scope) (core.Scope, error) {
	if !target.IsGrouped() {
		return core.ScopeOnly, nil
	}
	if requested == "" {
		return "", core.Invalidf("scope", "transaction %s belongs to group %s: choose only, from_here or from_first", target.ID, target.GroupID())
	}
	if !requested.Valid() {
		return "", core.Invalidf("scope", "unknown scope %q", requested)
	}
	return requested, nil
}
