package config

import "testing"

func TestDefaults(t *testing.T) {
	v := New()
	cfg := Load(v)

	if cfg.VectorStore.Metric != "IP" {
		t.Errorf("expected default metric IP, got %q", cfg.VectorStore.Metric)
	}
	if cfg.RAG.TopK != 5 {
		t.Errorf("expected default rag.top_k 5, got %d", cfg.RAG.TopK)
	}
	if cfg.RAG.LTMThreshold != 0.75 {
		t.Errorf("expected default rag.ltm_threshold 0.75, got %v", cfg.RAG.LTMThreshold)
	}
	if cfg.STMMaxItems != 32 {
		t.Errorf("expected default stm.max_items 32, got %d", cfg.STMMaxItems)
	}
	if cfg.GraphStore.Enabled {
		t.Errorf("expected graph store disabled by default")
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("MNEMO_VECTOR_STORE_METRIC", "L2")
	t.Setenv("MNEMO_RAG_TOP_K", "10")

	v := New()
	cfg := Load(v)

	if cfg.VectorStore.Metric != "L2" {
		t.Errorf("expected env override to set metric L2, got %q", cfg.VectorStore.Metric)
	}
	if cfg.RAG.TopK != 10 {
		t.Errorf("expected env override to set rag.top_k 10, got %d", cfg.RAG.TopK)
	}
}

