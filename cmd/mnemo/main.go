// Command mnemo runs the memory service's HTTP server and exposes a handful
// of CLI subcommands for one-off operations against the same store. Flag and
// subcommand layout follows liliang-cn-sqvect's cmd/sqvect/main.go (a root
// cobra.Command, persistent flags bound in init(), RunE constructing the
// backing store per invocation) generalized to mnemo's config-driven wiring.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mnemoforge/mnemo/internal/config"
	"github.com/mnemoforge/mnemo/internal/httpapi"
	"github.com/mnemoforge/mnemo/internal/logging"
	"github.com/mnemoforge/mnemo/internal/metrics"
	"github.com/mnemoforge/mnemo/pkg/embedder"
	"github.com/mnemoforge/mnemo/pkg/embedder/httpembed"
	"github.com/mnemoforge/mnemo/pkg/embedder/mockembed"
	"github.com/mnemoforge/mnemo/pkg/generator"
	"github.com/mnemoforge/mnemo/pkg/generator/anthropicgen"
	"github.com/mnemoforge/mnemo/pkg/generator/mockgen"
	"github.com/mnemoforge/mnemo/pkg/historylog"
	"github.com/mnemoforge/mnemo/pkg/memoryengine"
	"github.com/mnemoforge/mnemo/pkg/rag"
	"github.com/mnemoforge/mnemo/pkg/shortterm"
	"github.com/mnemoforge/mnemo/pkg/vectorstore"
)

var (
	vstorePath    string
	vstoreMetric  string
	llmProvider   string
	llmModel      string
	embedProvider string
	historyPath   string
	listenAddr    string
	verbose       bool

	v *viper.Viper
)

var rootCmd = &cobra.Command{
	Use:   "mnemo",
	Short: "Per-user conversational memory service for LLM agents",
	Long:  `mnemo stores, reconciles, and retrieves an agent's short-term and long-term memories across conversations.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load(v)
		logger := newLogger()

		engine, pipeline, err := buildEngine(cmd.Context(), cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to build engine: %w", err)
		}

		srv := httpapi.New(engine, pipeline, metrics.New())
		e := echo.New()
		e.HideBanner = true
		srv.Register(e)

		logger.Info("listening", "addr", listenAddr)
		return e.Start(listenAddr)
	},
}

var addCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Add a memory for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")
		infer, _ := cmd.Flags().GetBool("infer")

		cfg := config.Load(v)
		engine, _, err := buildEngine(cmd.Context(), cfg, newLogger())
		if err != nil {
			return err
		}

		results, err := engine.Add(cmd.Context(), args[0], userID, infer)
		if err != nil {
			return err
		}
		return printJSON(results)
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search a user's memories",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")
		limit, _ := cmd.Flags().GetInt("limit")

		cfg := config.Load(v)
		engine, _, err := buildEngine(cmd.Context(), cfg, newLogger())
		if err != nil {
			return err
		}

		items, err := engine.Search(cmd.Context(), args[0], userID, limit, cfg.RAG.LTMThreshold)
		if err != nil {
			return err
		}
		return printJSON(items)
	},
}

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Ask a question answered from a user's memories",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")

		cfg := config.Load(v)
		_, pipeline, err := buildEngine(cmd.Context(), cfg, newLogger())
		if err != nil {
			return err
		}

		result, err := pipeline.Query(cmd.Context(), args[0], userID)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear all memories (LTM and STM); history is preserved",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load(v)
		engine, _, err := buildEngine(cmd.Context(), cfg, newLogger())
		if err != nil {
			return err
		}
		return engine.Reset(cmd.Context())
	},
}

// buildEngine constructs the full MemoryEngine + RAG pipeline stack from
// resolved configuration, selecting concrete Embedder/Generator backends by
// provider name.
func buildEngine(ctx context.Context, cfg config.Config, logger logging.Logger) (*memoryengine.Engine, *rag.Pipeline, error) {
	store, err := vectorstore.Open(cfg.VectorStore.Path, cfg.VectorStore.CollectionName,
		cfg.VectorStore.EmbeddingModelDims, vectorstore.Metric(cfg.VectorStore.Metric), logger)
	if err != nil {
		return nil, nil, err
	}

	hist, err := historylog.Open(ctx, cfg.HistoryDBPath, logger)
	if err != nil {
		return nil, nil, err
	}

	embed := buildEmbedder(cfg)
	gen := buildGenerator(cfg)
	stm := shortterm.New(cfg.STMMaxItems)

	engine := memoryengine.New(embed, gen, store, hist, stm, logger)
	pipeline := rag.New(engine, gen, rag.Config{TopK: cfg.RAG.TopK, LTMThreshold: cfg.RAG.LTMThreshold})
	return engine, pipeline, nil
}

func buildEmbedder(cfg config.Config) embedder.Embedder {
	switch cfg.Embedder.Provider {
	case "http":
		return httpembed.New(httpembed.Config{Model: cfg.Embedder.Model, Dim: cfg.Embedder.Dims}, nil)
	default:
		return mockembed.New(cfg.Embedder.Dims)
	}
}

func buildGenerator(cfg config.Config) generator.Generator {
	switch cfg.LLM.Provider {
	case "anthropic":
		return anthropicgen.New(anthropicgen.Config{
			APIKey: os.Getenv("ANTHROPIC_API_KEY"),
			Model:  cfg.LLM.Model,
		})
	default:
		return mockgen.New()
	}
}

func newLogger() logging.Logger {
	if verbose {
		return logging.NewStd()
	}
	return logging.Nop()
}

func printJSON(val any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(val)
}

func init() {
	v = config.New()

	rootCmd.PersistentFlags().StringVar(&vstorePath, "vector-store-path", "", "Vector store directory")
	rootCmd.PersistentFlags().StringVar(&vstoreMetric, "vector-store-metric", "", "Vector store metric (IP or L2)")
	rootCmd.PersistentFlags().StringVar(&llmProvider, "llm-provider", "", "Generator backend (anthropic, mock)")
	rootCmd.PersistentFlags().StringVar(&llmModel, "llm-model", "", "Generator model name")
	rootCmd.PersistentFlags().StringVar(&embedProvider, "embedder-provider", "", "Embedder backend (http, mock)")
	rootCmd.PersistentFlags().StringVar(&historyPath, "history-db-path", "", "History log SQLite path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")
	if err := config.BindFlags(v, rootCmd); err != nil {
		log.Fatal(err)
	}

	serveCmd.Flags().StringVar(&listenAddr, "addr", ":8080", "HTTP listen address")

	addCmd.Flags().String("user", "", "User id")
	addCmd.Flags().Bool("infer", true, "Run fact extraction and reconciliation")
	addCmd.MarkFlagRequired("user")

	searchCmd.Flags().String("user", "", "User id")
	searchCmd.Flags().Int("limit", 5, "Maximum results")
	searchCmd.MarkFlagRequired("user")

	queryCmd.Flags().String("user", "", "User id")
	queryCmd.MarkFlagRequired("user")

	rootCmd.AddCommand(serveCmd, addCmd, searchCmd, queryCmd, resetCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
