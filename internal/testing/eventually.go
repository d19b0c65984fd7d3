package kmtesting

import (
	"fmt"
	"testing"
	"time"
)

// Eventually polls condition until it returns true or the timeout elapses.
// interval controls how often the condition is re-evaluated. On failure the
// test is aborted with the optional formatted message.
func Eventually(t testing.TB, timeout, interval time.Duration, condition func() bool, msgAndArgs ...any) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !condition() {
		if time.Now().After(deadline) {
			msg := "condition not met within timeout"
			if len(msgAndArgs) > 0 {
				msg = fmt.Sprintf(msgAndArgs[0].(string), msgAndArgs[1:]...)
			}
			t.Fatal(msg)
		}
		time.Sleep(interval)
	}
}

// Consistently verifies that condition holds for the whole duration,
// re-checking every interval. It fails the test on the first violation.
func Consistently(t testing.TB, duration, interval time.Duration, condition func() bool, msgAndArgs ...any) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if !condition() {
			msg := "condition violated"
			if len(msgAndArgs) > 0 {
				msg = fmt.Sprintf(msgAndArgs[0].(string), msgAndArgs[1:]...)
			}
			t.Fatal(msg)
		}
		time.Sleep(interval)
	}
}
