package reliability

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestIsRetryableHTTPStatus(t *testing.T) {
	cases := []struct {
		code int
		want bool
	}{
		{200, false},
		{400, false},
		{409, false},
		{429, true},
		{500, true},
		{503, true},
	}
	for _, tc := range cases {
		got := IsRetryableHTTPStatus(tc.code)
		if got != tc.want {
			t.Fatalf("IsRetryableHTTPStatus(%d) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestKindForHTTPStatus(t *testing.T) {
	cases := []struct {
		code int
		want Kind
	}{
		{401, KindPermission},
		{403, KindPermission},
		{422, KindValidation},
		{409, KindValidation},
		{402, KindPayment},
		{503, KindTransient},
		{418, KindUnknown},
	}
	for _, tc := range cases {
		if got := KindForHTTPStatus(tc.code); got != tc.want {
			t.Fatalf("KindForHTTPStatus(%d) = %q, want %q", tc.code, got, tc.want)
		}
	}
}

func TestClassifyUnwrapsClassifiedError(t *testing.T) {
	inner := &ClassifiedError{Kind: KindPermission, Code: "mic_denied", Err: errors.New("denied")}
	wrapped := fmt.Errorf("start recording: %w", inner)
	if got := Classify(wrapped); got != KindPermission {
		t.Fatalf("Classify() = %q, want %q", got, KindPermission)
	}
}

func TestIsRetryable(t *testing.T) {
	retryable := &ClassifiedError{Kind: KindTransient, Code: "tts_http_503", Retryable: true, Err: errors.New("overloaded")}
	if !IsRetryable(fmt.Errorf("synthesize: %w", retryable)) {
		t.Fatalf("wrapped retryable ClassifiedError should be retryable")
	}
	sticky := &ClassifiedError{Kind: KindPermission, Code: "mic_denied", Err: errors.New("denied")}
	if IsRetryable(sticky) {
		t.Fatalf("permission errors must not be retryable")
	}
	if !IsRetryable(context.DeadlineExceeded) {
		t.Fatalf("deadline expiry should be retryable")
	}
	if IsRetryable(errors.New("mystery")) {
		t.Fatalf("unknown errors must not be retryable")
	}
	if IsRetryable(nil) {
		t.Fatalf("nil error must not be retryable")
	}
}

func TestClassifyContextErrors(t *testing.T) {
	if got := Classify(context.Canceled); got != KindTransient {
		t.Fatalf("Classify(context.Canceled) = %q, want %q", got, KindTransient)
	}
	if got := Classify(context.DeadlineExceeded); got != KindTransient {
		t.Fatalf("Classify(context.DeadlineExceeded) = %q, want %q", got, KindTransient)
	}
}

func TestBackoffCap(t *testing.T) {
	base := 100 * time.Millisecond
	capDur := 700 * time.Millisecond
	if got := Backoff(0, base, capDur); got != base {
		t.Fatalf("attempt 0 = %v, want %v", got, base)
	}
	if got := Backoff(10, base, capDur); got != capDur {
		t.Fatalf("attempt 10 = %v, want %v", got, capDur)
	}
}
