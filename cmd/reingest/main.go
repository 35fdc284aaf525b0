// Command reingest is the single entry point for loading the legal
// corpus into the store (§4.J, §6): "laws" ingests statutes and
// regulations article-first, "rmf" ingests yearly RMF editions rule-first.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/brunobiangulo/fiscalis/ingest"
	"github.com/brunobiangulo/fiscalis/llm"
	"github.com/brunobiangulo/fiscalis/store"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: reingest <laws|rmf> [flags]")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "laws":
		runLaws(os.Args[2:])
	case "rmf":
		runRMF(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q: expected laws or rmf\n", os.Args[1])
		os.Exit(1)
	}
}

// repeatedFlag collects a flag that may be passed more than once
// (--doc X --doc Y), matching argparse's action="append".
type repeatedFlag []string

func (r *repeatedFlag) String() string { return fmt.Sprint([]string(*r)) }
func (r *repeatedFlag) Set(v string) error {
	*r = append(*r, v)
	return nil
}

func runLaws(args []string) {
	fs := flag.NewFlagSet("laws", flag.ExitOnError)
	basePath := fs.String("base-path", "data/LEYES_FEDERALES", "base directory containing statute/regulation PDFs")
	all := fs.Bool("all", false, "ingest every document in the baseline manifest")
	dryRun := fs.Bool("dry-run", false, "extract and chunk only; do not touch the database")
	var docs repeatedFlag
	fs.Var(&docs, "doc", "ingest only this document_id (may be repeated)")
	fs.Parse(args)

	if !*all && len(docs) == 0 {
		fmt.Fprintln(os.Stderr, "must specify --all or at least one --doc")
		os.Exit(1)
	}

	specs := ingest.LawsBaseline
	if len(docs) > 0 {
		selected, missing := ingest.SelectManifest(ingest.LawsBaseline, docs)
		if len(missing) > 0 {
			slog.Warn("document_id not found in baseline manifest", "missing", missing)
		}
		specs = selected
	}

	st, embedder := mustOpenStoreAndEmbedder()
	defer st.Close()
	pipeline := ingest.New(st, embedder)
	ctx := context.Background()

	var ok, bad int
	for i, spec := range specs {
		slog.Info("ingest: law", "index", i+1, "total", len(specs), "document_id", spec.DocumentID, "title", spec.Title)

		result, err := pipeline.IngestLaw(ctx, spec, *basePath, *dryRun)
		if err != nil {
			bad++
			slog.Error("ingest: law failed", "document_id", spec.DocumentID, "error", err)
			continue
		}

		ok++
		slog.Info("ingest: law done",
			"document_id", spec.DocumentID,
			"chunks_total", result.ChunksTotal,
			"chunks_ok", result.ChunksOK,
			"chunks_failed", result.ChunksFailed,
			"articles_detected", result.NormsDetected,
			"dry_run", result.DryRun,
		)
		if !*dryRun {
			if err := st.LogIngestRun(ctx, spec.DocumentID, spec.Filename, result.ChunksOK, result.ChunksFailed, result.DryRun); err != nil {
				slog.Warn("ingest: logging run failed", "document_id", spec.DocumentID, "error", err)
			}
		}
	}

	slog.Info("ingest: laws summary", "ok", ok, "failed", bad, "total", len(specs))
	if bad > 0 {
		os.Exit(1)
	}
}

func runRMF(args []string) {
	fs := flag.NewFlagSet("rmf", flag.ExitOnError)
	basePath := fs.String("base-path", "data/RMF", "base directory containing RMF edition PDFs")
	dryRun := fs.Bool("dry-run", false, "extract and chunk only; do not touch the database")
	fs.Parse(args)

	st, embedder := mustOpenStoreAndEmbedder()
	defer st.Close()
	pipeline := ingest.New(st, embedder)
	ctx := context.Background()

	results, err := pipeline.IngestRMFDir(ctx, *basePath, *dryRun)
	if err != nil {
		slog.Error("ingest: rmf failed", "error", err)
		os.Exit(1)
	}

	for _, r := range results {
		slog.Info("ingest: rmf document done",
			"document_id", r.DocumentID,
			"chunks_total", r.ChunksTotal,
			"chunks_ok", r.ChunksOK,
			"chunks_failed", r.ChunksFailed,
			"rules_detected", r.NormsDetected,
			"dry_run", r.DryRun,
		)
	}
	slog.Info("ingest: rmf summary", "documents", len(results))
}

// mustOpenStoreAndEmbedder opens the store and builds the embedding
// provider from the same env vars cmd/server uses, exiting the process
// on failure (this is a one-shot CLI command, not a long-lived server).
func mustOpenStoreAndEmbedder() (*store.Store, llm.Provider) {
	dbPath := os.Getenv("FISCALIS_DB_PATH")
	if dbPath == "" {
		dbPath = "fiscalis.db"
	}
	embeddingDim := 1536
	if v := os.Getenv("FISCALIS_EMBEDDING_DIM"); v != "" {
		fmt.Sscanf(v, "%d", &embeddingDim)
	}

	st, err := store.New(dbPath, embeddingDim)
	if err != nil {
		slog.Error("opening store", "error", err)
		os.Exit(1)
	}

	cfg := llm.Config{
		Provider: os.Getenv("FISCALIS_EMBED_PROVIDER"),
		Model:    os.Getenv("MODEL_EMBED"),
		BaseURL:  os.Getenv("FISCALIS_EMBED_BASE_URL"),
		APIKey:   os.Getenv("FISCALIS_EMBED_API_KEY"),
	}
	if cfg.Provider == "" {
		cfg.Provider = "openai"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	embedder, err := llm.NewProvider(cfg)
	if err != nil {
		slog.Error("creating embedding provider", "error", err)
		os.Exit(1)
	}

	return st, embedder
}
