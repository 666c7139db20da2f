package tracing

import (
	"context"
	"testing"
)

func TestInitWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), "api", "  ", 1)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown() error = %v", err)
	}
}

func TestStripScheme(t *testing.T) {
	cases := map[string]string{
		"http://otel:4317":  "otel:4317",
		"https://otel:4317": "otel:4317",
		"otel:4317":         "otel:4317",
	}
	for in, want := range cases {
		if got := stripScheme(in); got != want {
			t.Fatalf("stripScheme(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestClampRatio(t *testing.T) {
	if clampRatio(0) != 1 || clampRatio(2) != 1 || clampRatio(0.25) != 0.25 {
		t.Fatalf("unexpected ratio clamping")
	}
}
