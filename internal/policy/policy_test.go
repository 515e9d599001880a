package policy

import (
	"strings"
	"testing"

	"github.com/ashureev/orderdesk/internal/domain"
)

var allActions = []string{ActionRefund, ActionReplacement, ActionCancel, ActionGeneral, ActionTracking}

func TestResponseTableIsExhaustive(t *testing.T) {
	t.Parallel()

	for _, action := range allActions {
		for _, status := range domain.AllStatuses {
			resp := GetResponse(action, status, "12345")
			if resp == "" {
				t.Errorf("no response for (%s, %s)", action, status)
				continue
			}
			if !strings.Contains(resp, "12345") {
				t.Errorf("(%s, %s) response omits the order id: %q", action, status, resp)
			}
			if strings.Contains(resp, "{order_id}") {
				t.Errorf("(%s, %s) response left the placeholder: %q", action, status, resp)
			}
			if !Validate(resp, "12345") {
				t.Errorf("(%s, %s) response fails validation: %q", action, status, resp)
			}
		}
	}
}

func TestGetResponseFallsBackToGeneral(t *testing.T) {
	t.Parallel()

	got := GetResponse("escalation", domain.StatusShipped, "777")
	want := GetResponse(ActionGeneral, domain.StatusShipped, "777")
	if got != want {
		t.Errorf("unknown action did not fall back to general: %q", got)
	}

	if got := GetResponse("", "", "777"); !strings.Contains(got, "777") {
		t.Errorf("empty action/status response = %q", got)
	}
}

func TestGetResponseIsDeterministic(t *testing.T) {
	t.Parallel()

	a := GetResponse(ActionRefund, domain.StatusProcessing, "45")
	b := GetResponse(ActionRefund, domain.StatusProcessing, "45")
	if a != b {
		t.Error("same inputs gave different responses")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		response string
		orderID  string
		want     bool
	}{
		{"empty response", "", "12345", false},
		{"empty order id", "Order #12345 has been refunded.", "", false},
		{"missing order id literal", "Your refund is on the way.", "12345", false},
		{"statement with order id", "Order #12345 has been refunded.", "12345", true},
		{"unsanctioned question", "What is wrong with order #12345?", "12345", false},
		{"post-resolution allowed", PostResolutionResponse, "12345", true},
		{"missing-info order id allowed", MissingInfoResponse(MissingOrderID), "12345", true},
		{"missing-info issue allowed", MissingInfoResponse(MissingIssue), "12345", true},
		{"missing-info resolution allowed", MissingInfoResponse(MissingResolution), "12345", true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Validate(tt.response, tt.orderID); got != tt.want {
				t.Errorf("Validate(%q, %q) = %v, want %v", tt.response, tt.orderID, got, tt.want)
			}
		})
	}
}

func TestApplyBusinessLogic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		current    domain.OrderStatus
		resolution string
		want       domain.OrderStatus
	}{
		{domain.StatusUnknown, ActionTracking, domain.StatusShipped},
		{domain.StatusShipped, ActionTracking, domain.StatusShipped},
		{domain.StatusProcessing, ActionRefund, domain.StatusRefunded},
		{domain.StatusUnknown, ActionRefund, domain.StatusRefunded},
		{domain.StatusShipped, ActionRefund, domain.StatusShipped},
		{domain.StatusDelivered, ActionRefund, domain.StatusDelivered},
		{domain.StatusProcessing, ActionReplacement, domain.StatusReplacementSent},
		{domain.StatusShipped, ActionReplacement, domain.StatusReplacementSent},
		{domain.StatusDelivered, ActionReplacement, domain.StatusReplacementSent},
		{domain.StatusRefunded, ActionReplacement, domain.StatusRefunded},
		{domain.StatusProcessing, ActionCancel, domain.StatusCancelled},
		{domain.StatusShipped, ActionCancel, domain.StatusShipped},
		{domain.StatusCancelled, ActionCancel, domain.StatusCancelled},
	}
	for _, tt := range tests {
		if got := ApplyBusinessLogic(tt.current, tt.resolution); got != tt.want {
			t.Errorf("ApplyBusinessLogic(%s, %s) = %s, want %s", tt.current, tt.resolution, got, tt.want)
		}
	}
}

func TestValidateCompleteRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                      string
		orderID, issue, resolution string
		want                      bool
	}{
		{"tracking pair", "12345", "tracking", "tracking", true},
		{"cancel without issue", "12345", "", "cancel", true},
		{"refund with issue", "12345", "wrong_item", "refund", true},
		{"refund without issue", "12345", "", "refund", false},
		{"refund with bogus issue", "12345", "vibes", "refund", false},
		{"unknown resolution", "12345", "general", "escalate", false},
		{"short order id", "12", "general", "refund", false},
		{"blank order id", "   ", "general", "refund", false},
		{"replacement with damaged", "98765", "damaged", "replacement", true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ValidateCompleteRequest(tt.orderID, tt.issue, tt.resolution)
			if got != tt.want {
				t.Errorf("ValidateCompleteRequest(%q, %q, %q) = %v, want %v",
					tt.orderID, tt.issue, tt.resolution, got, tt.want)
			}
		})
	}
}

func TestResolverFallback(t *testing.T) {
	t.Parallel()

	got := ResolverFallback("refund", "12345")
	if !strings.Contains(got, "refund") || !strings.Contains(got, "#12345") {
		t.Errorf("fallback = %q", got)
	}
}
