package ratelimit

import (
	"net/http"
	"testing"
	"time"
)

func TestParseHeaders(t *testing.T) {
	observed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name            string
		headers         map[string]string
		expectUnlimited bool
		expectRemaining int
		expectQuota     int
		expectWindow    time.Duration
		expectResetIn   time.Duration
		shouldError     bool
	}{
		{
			name: "full budget headers",
			headers: map[string]string{
				HeaderRequestsLeft:  "142",
				HeaderRequestsQuota: "150",
				HeaderTimeWindowMs:  "30000",
				HeaderTimeResetMs:   "12000",
			},
			expectRemaining: 142,
			expectQuota:     150,
			expectWindow:    30 * time.Second,
			expectResetIn:   12 * time.Second,
		},
		{
			name: "remaining only",
			headers: map[string]string{
				HeaderRequestsLeft: "7",
			},
			expectRemaining: 7,
		},
		{
			name:            "no headers means unlimited",
			headers:         map[string]string{},
			expectUnlimited: true,
		},
		{
			name: "invalid remaining header",
			headers: map[string]string{
				HeaderRequestsLeft: "many",
			},
			shouldError: true,
		},
		{
			name: "invalid reset header",
			headers: map[string]string{
				HeaderRequestsLeft: "10",
				HeaderTimeResetMs:  "soon",
			},
			shouldError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := http.Header{}
			for k, v := range tt.headers {
				headers.Set(k, v)
			}

			state, err := ParseHeaders(headers, observed)
			if tt.shouldError {
				if err == nil {
					t.Fatal("Expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			if state.Unlimited != tt.expectUnlimited {
				t.Errorf("Unlimited = %v, want %v", state.Unlimited, tt.expectUnlimited)
			}
			if state.ObservedAt != observed {
				t.Errorf("ObservedAt = %v, want %v", state.ObservedAt, observed)
			}
			if tt.expectUnlimited {
				return
			}
			if state.RemainingCalls != tt.expectRemaining {
				t.Errorf("RemainingCalls = %d, want %d", state.RemainingCalls, tt.expectRemaining)
			}
			if state.Quota != tt.expectQuota {
				t.Errorf("Quota = %d, want %d", state.Quota, tt.expectQuota)
			}
			if state.Window != tt.expectWindow {
				t.Errorf("Window = %v, want %v", state.Window, tt.expectWindow)
			}
			if state.TimeUntilReset() != tt.expectResetIn {
				t.Errorf("TimeUntilReset() = %v, want %v", state.TimeUntilReset(), tt.expectResetIn)
			}
		})
	}
}

func TestState_TimeUntilReset(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		state    State
		expected time.Duration
	}{
		{
			name:     "reset in future",
			state:    State{ObservedAt: now, ResetAt: now.Add(5 * time.Second)},
			expected: 5 * time.Second,
		},
		{
			name:     "reset already passed",
			state:    State{ObservedAt: now, ResetAt: now.Add(-5 * time.Second)},
			expected: 0,
		},
		{
			name:     "reset not reported",
			state:    State{ObservedAt: now},
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.TimeUntilReset(); got != tt.expected {
				t.Errorf("TimeUntilReset() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_Thresholds(t *testing.T) {
	tests := []struct {
		name            string
		state           State
		expectExhausted bool
		expectLow       bool
	}{
		{
			name:  "healthy",
			state: State{RemainingCalls: 100},
		},
		{
			name:      "at warning threshold minus one",
			state:     State{RemainingCalls: RemainingThresholdWarning - 1},
			expectLow: true,
		},
		{
			name:  "at warning threshold",
			state: State{RemainingCalls: RemainingThresholdWarning},
		},
		{
			name:            "exhausted",
			state:           State{RemainingCalls: 0},
			expectExhausted: true,
		},
		{
			name:  "unlimited is never low",
			state: State{Unlimited: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsExhausted(); got != tt.expectExhausted {
				t.Errorf("IsExhausted() = %v, want %v", got, tt.expectExhausted)
			}
			if got := tt.state.IsLow(); got != tt.expectLow {
				t.Errorf("IsLow() = %v, want %v", got, tt.expectLow)
			}
		})
	}
}

func TestThresholdConstants(t *testing.T) {
	if RemainingThresholdCritical >= RemainingThresholdWarning {
		t.Errorf("RemainingThresholdCritical (%d) must be less than RemainingThresholdWarning (%d)",
			RemainingThresholdCritical, RemainingThresholdWarning)
	}
}
