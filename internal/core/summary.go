package core

// AccountBalance is an account's running balance at the end of a month.
type AccountBalance struct {
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
	Balance   Money  `json:"balance"`
}

// MonthSummary is a compact summary for a specific year+month.
type MonthSummary struct {
	Year         int              `json:"year"`
	Month        int              `json:"month"` // 1-12
	Income       Money            `json:"income"`
	Expense      Money            `json:"expense"`
	Balances     []AccountBalance `json:"balances"`
	SummaryTotal Money            `json:"summary_total"`
}

// ApplyToBalances adds the signed effect of txs to balances, keyed by
// account id. Accounts missing from the map start at zero.
func ApplyToBalances(balances map[string]Money, txs []Transaction) {
	for _, tx := range txs {
		switch tx.Type {
		case Transfer:
			if tx.AccountFromID != "" {
				balances[tx.AccountFromID] = balances[tx.AccountFromID].Sub(tx.Amount)
			}
			if tx.AccountToID != "" {
				balances[tx.AccountToID] = balances[tx.AccountToID].Add(tx.Amount)
			}
		case Expense:
			balances[tx.AccountID] = balances[tx.AccountID].Sub(tx.Amount)
		case Income:
			balances[tx.AccountID] = balances[tx.AccountID].Add(tx.Amount)
		}
	}
}

// Summarize builds the month summary. history must hold every transaction
// dated up to the last day of the month; monthTxs only that month's rows.
func Summarize(year, month int, accounts []Account, history, monthTxs []Transaction) MonthSummary {
	balances := make(map[string]Money, len(accounts))
	for _, a := range accounts {
		balances[a.ID] = a.InitialBalance
	}
	ApplyToBalances(balances, history)

	s := MonthSummary{Year: year, Month: month, Balances: make([]AccountBalance, 0, len(accounts))}
	for _, a := range accounts {
		b := balances[a.ID]
		s.Balances = append(s.Balances, AccountBalance{AccountID: a.ID, Name: a.Name, Balance: b})
		if a.IncludeInMonthlySummary {
			s.SummaryTotal = s.SummaryTotal.Add(b)
		}
	}
	for _, tx := range monthTxs {
		switch tx.Type {
		case Income:
			s.Income = s.Income.Add(tx.Amount)
		case Expense:
			s.Expense = s.Expense.Add(tx.Amount)
		}
	}
	return s
}
