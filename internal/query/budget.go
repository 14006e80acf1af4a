package query

import "time"

// Budget is a wall-clock allowance for evaluating a query. The zero Budget
// never runs out.
type Budget struct {
	deadline time.Time
}

func NewBudget(d time.Duration) Budget {
	return Budget{deadline: time.Now().Add(d)}
}

func BudgetUntil(deadline time.Time) Budget {
	return Budget{deadline: deadline}
}

func (b Budget) HasTimeLeft() bool {
	return b.deadline.IsZero() || time.Now().Before(b.deadline)
}

func (b Budget) Expired() bool {
	return !b.HasTimeLeft()
}

func (b Budget) TimeLeft() time.Duration {
	if b.deadline.IsZero() {
		return time.Duration(1<<63 - 1)
	}
	return max(time.Until(b.deadline), 0)
}
