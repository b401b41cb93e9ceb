// Package ratelimit implements BigCommerce call budget tracking and throttling.
// It parses the X-Rate-Limit-* response headers into an immutable State and
// derives the delay a caller must observe before issuing the next request.
package ratelimit

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Response headers carrying the call budget.
const (
	HeaderRequestsLeft  = "X-Rate-Limit-Requests-Left"
	HeaderRequestsQuota = "X-Rate-Limit-Requests-Quota"
	HeaderTimeWindowMs  = "X-Rate-Limit-Time-Window-Ms"
	HeaderTimeResetMs   = "X-Rate-Limit-Time-Reset-Ms"
)

// Thresholds for log severity on state updates.
const (
	// RemainingThresholdWarning marks a budget that is close to exhaustion.
	RemainingThresholdWarning = 10

	// RemainingThresholdCritical marks an exhausted budget.
	// The next request will wait for the window to reset.
	RemainingThresholdCritical = 1
)

// State is a snapshot of the call budget reported by a single response.
// A State is never modified after ParseHeaders returns it.
type State struct {
	// RemainingCalls is the number of calls left in the current window.
	// Meaningless when Unlimited is true.
	RemainingCalls int `json:"remaining_calls"`

	// Quota is the total number of calls allowed per window (0 if not reported).
	Quota int `json:"quota"`

	// Window is the length of the rate limit window (0 if not reported).
	Window time.Duration `json:"window"`

	// ResetAt is when the window resets. Zero if not reported.
	ResetAt time.Time `json:"reset_at"`

	// ObservedAt is when the response carrying this state was received.
	ObservedAt time.Time `json:"observed_at"`

	// Unlimited is true when the endpoint reported no call budget at all.
	Unlimited bool `json:"unlimited"`
}

// UnlimitedState returns a state for responses without budget headers.
func UnlimitedState(observedAt time.Time) State {
	return State{ObservedAt: observedAt, Unlimited: true}
}

// ParseHeaders builds a State from response headers.
// A missing X-Rate-Limit-Requests-Left header yields an unlimited state.
func ParseHeaders(headers http.Header, observedAt time.Time) (State, error) {
	leftStr := headers.Get(HeaderRequestsLeft)
	if leftStr == "" {
		return UnlimitedState(observedAt), nil
	}

	left, err := strconv.Atoi(leftStr)
	if err != nil {
		return State{}, fmt.Errorf("parse %s header: %w", HeaderRequestsLeft, err)
	}

	state := State{
		RemainingCalls: left,
		ObservedAt:     observedAt,
	}

	if quota, ok, err := intHeader(headers, HeaderRequestsQuota); err != nil {
		return State{}, err
	} else if ok {
		state.Quota = quota
	}

	if windowMs, ok, err := intHeader(headers, HeaderTimeWindowMs); err != nil {
		return State{}, err
	} else if ok {
		state.Window = time.Duration(windowMs) * time.Millisecond
	}

	if resetMs, ok, err := intHeader(headers, HeaderTimeResetMs); err != nil {
		return State{}, err
	} else if ok {
		state.ResetAt = observedAt.Add(time.Duration(resetMs) * time.Millisecond)
	}

	return state, nil
}

func intHeader(headers http.Header, name string) (int, bool, error) {
	raw := headers.Get(name)
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("parse %s header: %w", name, err)
	}
	return v, true, nil
}

// TimeUntilReset returns the time between observation and window reset.
// Returns 0 if no reset time was reported or it lies in the past.
func (s State) TimeUntilReset() time.Duration {
	if s.ResetAt.IsZero() {
		return 0
	}
	d := s.ResetAt.Sub(s.ObservedAt)
	if d < 0 {
		return 0
	}
	return d
}

// IsExhausted returns true if the budget has no calls left.
func (s State) IsExhausted() bool {
	return !s.Unlimited && s.RemainingCalls < RemainingThresholdCritical
}

// IsLow returns true if the budget is close to exhaustion.
func (s State) IsLow() bool {
	return !s.Unlimited && s.RemainingCalls < RemainingThresholdWarning && !s.IsExhausted()
}
