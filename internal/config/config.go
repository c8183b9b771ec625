// Package config loads mnemo's runtime configuration via viper, following
// the defaults-then-flags-then-env layering 88lin-divinesense's cmd/divinesense
// uses (viper.SetDefault, BindPFlag, environment overrides) — generalized
// from its flat profile struct to the nested sections spec.md §6 names.
package config

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// VectorStoreConfig configures pkg/vectorstore.
type VectorStoreConfig struct {
	Path               string
	CollectionName     string
	EmbeddingModelDims int
	Metric             string
}

// LLMConfig configures pkg/generator backends.
type LLMConfig struct {
	Provider    string
	Model       string
	Temperature float64
	MaxTokens   int
	TopP        float64
}

// EmbedderConfig configures pkg/embedder backends.
type EmbedderConfig struct {
	Provider string
	Model    string
	Dims     int
}

// RAGConfig configures pkg/rag.
type RAGConfig struct {
	TopK         int
	LTMThreshold float64
}

// GraphStoreConfig is a reserved, never-activated slot: spec.md's
// Non-goals exclude graph memory, but the configuration surface still
// names the slot so a future deployment can opt in without a breaking
// config change. No component in this tree reads it.
type GraphStoreConfig struct {
	Provider string
	Enabled  bool
}

// Config is the fully resolved runtime configuration.
type Config struct {
	VectorStore      VectorStoreConfig
	LLM              LLMConfig
	Embedder         EmbedderConfig
	HistoryDBPath    string
	RAG              RAGConfig
	STMMaxItems      int
	ProceduralEveryN int
	GraphStore       GraphStoreConfig
}

const envPrefix = "MNEMO"

// Defaults sets every recognised key's default value on v.
func Defaults(v *viper.Viper) {
	v.SetDefault("vector_store.path", "./data")
	v.SetDefault("vector_store.collection_name", "memories")
	v.SetDefault("vector_store.embedding_model_dims", 1536)
	v.SetDefault("vector_store.metric", "IP")

	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.top_p", 0.0)

	v.SetDefault("embedder.provider", "mock")
	v.SetDefault("embedder.model", "")
	v.SetDefault("embedder.dims", 1536)

	v.SetDefault("history_db_path", "./data/history.db")

	v.SetDefault("rag.top_k", 5)
	v.SetDefault("rag.ltm_threshold", 0.75)

	v.SetDefault("stm.max_items", 32)
	v.SetDefault("procedural.every_n_messages", 0)

	v.SetDefault("graph_store.provider", "")
	v.SetDefault("graph_store.enabled", false)
}

// New creates a viper instance with defaults set and environment overrides
// enabled under the MNEMO_ prefix (MNEMO_VECTOR_STORE_PATH overrides
// vector_store.path, following viper's dot-to-underscore key mapping). No
// flags are bound here; call BindFlags separately to add them.
func New() *viper.Viper {
	v := viper.New()
	Defaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// BindFlags binds the persistent flags a cobra command exposes to their
// matching viper keys, mirroring 88lin-divinesense's BindPFlag wiring in
// cmd/divinesense/main.go's init().
func BindFlags(v *viper.Viper, cmd *cobra.Command) error {
	bindings := map[string]string{
		"vector-store-path":    "vector_store.path",
		"vector-store-metric":  "vector_store.metric",
		"llm-provider":         "llm.provider",
		"llm-model":            "llm.model",
		"embedder-provider":    "embedder.provider",
		"history-db-path":      "history_db_path",
	}
	for flag, key := range bindings {
		f := cmd.PersistentFlags().Lookup(flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}

// Load resolves the fully-typed Config from v.
func Load(v *viper.Viper) Config {
	return Config{
		VectorStore: VectorStoreConfig{
			Path:               v.GetString("vector_store.path"),
			CollectionName:     v.GetString("vector_store.collection_name"),
			EmbeddingModelDims: v.GetInt("vector_store.embedding_model_dims"),
			Metric:             v.GetString("vector_store.metric"),
		},
		LLM: LLMConfig{
			Provider:    v.GetString("llm.provider"),
			Model:       v.GetString("llm.model"),
			Temperature: v.GetFloat64("llm.temperature"),
			MaxTokens:   v.GetInt("llm.max_tokens"),
			TopP:        v.GetFloat64("llm.top_p"),
		},
		Embedder: EmbedderConfig{
			Provider: v.GetString("embedder.provider"),
			Model:    v.GetString("embedder.model"),
			Dims:     v.GetInt("embedder.dims"),
		},
		HistoryDBPath: v.GetString("history_db_path"),
		RAG: RAGConfig{
			TopK:         v.GetInt("rag.top_k"),
			LTMThreshold: v.GetFloat64("rag.ltm_threshold"),
		},
		STMMaxItems:      v.GetInt("stm.max_items"),
		ProceduralEveryN: v.GetInt("procedural.every_n_messages"),
		GraphStore: GraphStoreConfig{
			Provider: v.GetString("graph_store.provider"),
			Enabled:  v.GetBool("graph_store.enabled"),
		},
	}
}
