package storage

import (
	"strings"

	"carteira/internal/store"
)

// whereClause renders f as a WHERE clause with positional arguments. An
// empty filter renders as "".
func whereClause(f store.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if len(f.IDs) > 0 {
		conds = append(conds, "id IN ("+placeholders(len(f.IDs))+")")
		args = appendStrings(args, f.IDs)
	}
	if f.InstallmentGroupID != "" {
		conds = append(conds, "installment_group_id = ?")
		args = append(args, f.InstallmentGroupID)
	}
	if f.RecurrenceGroupID != "" {
		conds = append(conds, "recurrence_group_id = ?")
		args = append(args, f.RecurrenceGroupID)
	}
	if f.MinInstallmentIndex > 0 {
		conds = append(conds, "installment_index >= ?")
		args = append(args, f.MinInstallmentIndex)
	}
	if !f.DateFrom.IsZero() {
		conds = append(conds, "date >= ?")
		args = append(args, f.DateFrom.String())
	}
	if !f.DateTo.IsZero() {
		conds = append(conds, "date <= ?")
		args = append(args, f.DateTo.String())
	}
	if len(f.AccountIDs) > 0 {
		ph := placeholders(len(f.AccountIDs))
		conds = append(conds, "(account_id IN ("+ph+") OR account_from_id IN ("+ph+") OR account_to_id IN ("+ph+"))")
		for range 3 {
			args = appendStrings(args, f.AccountIDs)
		}
	}
	if len(f.CategoryIDs) > 0 {
		conds = append(conds, "category_id IN ("+placeholders(len(f.CategoryIDs))+")")
		args = appendStrings(args, f.CategoryIDs)
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
		conds = append(conds, "("+foldFunc+"(description) LIKE ? ESCAPE '\\' OR "+foldFunc+"(note) LIKE ? ESCAPE '\\')")
		args = append(args, pattern, pattern)
	}
	if f.UnclearedOnly {
		conds = append(conds, "is_cleared = 0")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var orderColumns = map[store.OrderField]string{
	store.ByDate:             "date",
	store.ByCreatedAt:        "created_at",
	store.ByInstallmentIndex: "COALESCE(installment_index, 0)",
}

// orderClause always ends on rowid so equal keys keep insertion order.
func orderClause(orders []store.Order) string {
	if len(orders) == 0 {
		orders = store.DefaultOrder
	}
	parts := make([]string, 0, len(orders)+1)
	for _, o := range orders {
		col, ok := orderColumns[o.Field]
		if !ok {
			continue
		}
		if o.Desc {
			col += " DESC"
		}
		parts = append(parts, col)
	}
	parts = append(parts, "rowid")
	return " ORDER BY " + strings.Join(parts, ", ")
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func appendStrings(args []any, vals []string) []any {
	for _, v := range vals {
		args = append(args, v)
	}
	return args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
