package awakener

import "fmt"

// HardLimitSlack is how many tool calls past the normal budget the loop
// tolerates before it stops dispatching entirely.
const HardLimitSlack = 3

// BudgetHint is the deterministic self-prompt prepended to every tool
// result. It nudges rather than enforces: the agent reads it in-band and
// decides for itself when to wrap up.
func BudgetHint(used, limit int) string {
	remaining := limit - used
	switch {
	case remaining <= 0:
		return fmt.Sprintf("[Budget: %d/%d tool calls used. Your budget is exhausted. Stop calling tools and write your final summary now.]", used, limit)
	case remaining <= 3:
		return fmt.Sprintf("[Budget: %d/%d tool calls used. Only %d left. Finish what you are doing and wrap up.]", used, limit, remaining)
	case remaining <= 8:
		return fmt.Sprintf("[Budget: %d/%d tool calls used. Start planning how to wrap up this round.]", used, limit)
	default:
		return fmt.Sprintf("[Budget: %d/%d tool calls used.]", used, limit)
	}
}
