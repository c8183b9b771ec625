package mockembed

import (
	"context"
	"math"
	"testing"

	"github.com/mnemoforge/mnemo/pkg/embedder"
)

func TestEmbedIsDeterministic(t *testing.T) {
	e := New(8)
	a, err := e.Embed(context.Background(), "hello", embedder.PurposeAdd)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	b, err := e.Embed(context.Background(), "hello", embedder.PurposeAdd)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("expected identical vectors for identical input, got %v vs %v", a, b)
		}
	}
}

func TestEmbedDiffersByInput(t *testing.T) {
	e := New(8)
	a, _ := e.Embed(context.Background(), "hello", embedder.PurposeAdd)
	b, _ := e.Embed(context.Background(), "goodbye", embedder.PurposeAdd)
	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatalf("expected different inputs to embed differently")
	}
}

func TestEmbedReturnsUnitVector(t *testing.T) {
	e := New(16)
	v, err := e.Embed(context.Background(), "some text", embedder.PurposeSearch)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if math.Abs(math.Sqrt(sum)-1.0) > 1e-4 {
		t.Fatalf("expected a unit-length vector, got norm %v", math.Sqrt(sum))
	}
}

func TestDimensionDefaultsWhenNonPositive(t *testing.T) {
	e := New(0)
	if e.Dimension() != 64 {
		t.Fatalf("expected default dimension 64, got %d", e.Dimension())
	}
}
