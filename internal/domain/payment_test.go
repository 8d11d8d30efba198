package domain

import (
	"errors"
	"testing"
)

func TestParsePaymentMethod(t *testing.T) {
	tests := []struct {
		raw     string
		want    PaymentMethod
		wantErr bool
	}{
		{raw: "Cash", want: PaymentMethodCash},
		{raw: "card", want: PaymentMethodCard},
		{raw: " UPI ", want: PaymentMethodUPI},
		{raw: "Bitcoin", wantErr: true},
		{raw: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParsePaymentMethod(tt.raw)
		if tt.wantErr {
			if !errors.Is(err, ErrValidation) {
				t.Errorf("ParsePaymentMethod(%q): expected validation error, got %v", tt.raw, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParsePaymentMethod(%q) = %q, %v; want %q", tt.raw, got, err, tt.want)
		}
	}
}

func TestPaymentStatusTransitions(t *testing.T) {
	if !PaymentStatusPending.CanTransitionTo(PaymentStatusPaid) {
		t.Error("pending -> paid must be allowed")
	}
	if !PaymentStatusPaid.CanTransitionTo(PaymentStatusRefunded) {
		t.Error("paid -> refunded must be allowed")
	}
	if PaymentStatusRefunded.CanTransitionTo(PaymentStatusRefunded) {
		t.Error("refunded is final")
	}
	if PaymentStatusPaid.CanTransitionTo(PaymentStatusPending) {
		t.Error("paid -> pending must be rejected")
	}
}

func TestParsePaymentStatus(t *testing.T) {
	if _, err := ParsePaymentStatus("captured"); !errors.Is(err, ErrStoreIntegrity) {
		t.Fatalf("expected store integrity error, got %v", err)
	}
}
