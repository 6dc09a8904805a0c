package awakener

import (
	"strings"
	"testing"
)

func TestBudgetHintBands(t *testing.T) {
	const limit = 12
	tests := []struct {
		used int
		want string
	}{
		{1, "12 tool calls used.]"},
		{3, "12 tool calls used.]"},
		{4, "Start planning"},
		{8, "Start planning"},
		{9, "Only 3 left"},
		{11, "Only 1 left"},
		{12, "exhausted"},
		{14, "exhausted"},
	}
	for _, tt := range tests {
		got := BudgetHint(tt.used, limit)
		if !strings.Contains(got, tt.want) {
			t.Errorf("BudgetHint(%d, %d) = %q, want substring %q", tt.used, limit, got, tt.want)
		}
	}
}

func TestBudgetHintBoundaries(t *testing.T) {
	// One call before the limit warns; at the limit it is exhausted.
	if got := BudgetHint(9, 10); !strings.Contains(got, "Only 1 left") {
		t.Errorf("at limit-1: %q", got)
	}
	if got := BudgetHint(10, 10); !strings.Contains(got, "exhausted") {
		t.Errorf("at limit: %q", got)
	}
}
