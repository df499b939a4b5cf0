package token

import "testing"

func TestEstimate(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{name: "empty", text: "", want: 0},
		{name: "whitespace only", text: "  \n\t ", want: 0},
		{name: "single char", text: "a", want: 1},
		{name: "exact multiple", text: "abcdefgh", want: 2},
		{name: "rounds up", text: "hello", want: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Estimate(tt.text); got != tt.want {
				t.Errorf("Estimate(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestEstimateCustomRatio(t *testing.T) {
	e := Estimator{CharsPerToken: 2}
	if got := e.Estimate("abcde"); got != 3 {
		t.Errorf("Estimate = %d, want 3", got)
	}
	// Zero ratio falls back to the default.
	if got := (Estimator{}).Estimate("abcd"); got != 1 {
		t.Errorf("Estimate = %d, want 1", got)
	}
}
