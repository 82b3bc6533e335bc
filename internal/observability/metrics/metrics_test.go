package metrics

import (
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("user_id", "123"),
		attribute.String("customer_email", "a@b.c"),
		attribute.String("meal_type", "lunch"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != "user_id" && attrs[1].Key != "user_id" {
		t.Fatalf("expected user_id to be retained")
	}
	if attrs[0].Key != "meal_type" && attrs[1].Key != "meal_type" {
		t.Fatalf("expected meal_type to be retained")
	}
}

func TestNewHTTPMetricsRegistersCollectors(t *testing.T) {
	m, err := NewHTTPMetrics(Config{ServiceName: "tiffin"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Handler() == nil {
		t.Fatalf("expected scrape handler")
	}
}
