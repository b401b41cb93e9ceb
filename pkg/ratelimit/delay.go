package ratelimit

import "time"

// DefaultFallbackWindow is the window assumed when a response reports a
// budget but neither a window length nor a reset time.
const DefaultFallbackWindow = 30 * time.Second

// Calculator maps a State to the wait required before the next call.
type Calculator struct {
	// FallbackWindow spreads the remaining calls when the response carries no window.
	FallbackWindow time.Duration
}

// DefaultCalculator returns a calculator using DefaultFallbackWindow.
func DefaultCalculator() Calculator {
	return Calculator{FallbackWindow: DefaultFallbackWindow}
}

// Delay returns how long to wait before the next call.
//
// Unlimited states never wait. An exhausted budget waits out the whole
// window, whether or not a reset time was reported. Otherwise the time left in the window is spread evenly over the
// remaining calls, so the result shrinks as RemainingCalls grows and is never
// negative.
func (c Calculator) Delay(s State) time.Duration {
	if s.Unlimited {
		return 0
	}

	span := c.span(s)
	if span <= 0 {
		return 0
	}
	if s.RemainingCalls <= 0 {
		return span
	}

	return span / time.Duration(s.RemainingCalls)
}

// span is the time left in the current window: the reported reset, else the
// reported window length, else FallbackWindow.
func (c Calculator) span(s State) time.Duration {
	if !s.ResetAt.IsZero() {
		return s.TimeUntilReset()
	}
	if s.Window > 0 {
		return s.Window
	}
	return c.FallbackWindow
}

// Delay is DefaultCalculator().Delay(s).
func Delay(s State) time.Duration {
	return DefaultCalculator().Delay(s)
}
