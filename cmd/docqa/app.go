package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"docqa/internal/answer"
	"docqa/internal/chunker"
	"docqa/internal/config"
	"docqa/internal/domain"
	"docqa/internal/embedding/hashing"
	embopenai "docqa/internal/embedding/openai"
	"docqa/internal/extract"
	"docqa/internal/ingest"
	"docqa/internal/llm/gemini"
	llmopenai "docqa/internal/llm/openai"
	"docqa/internal/logging"
	"docqa/internal/ocr"
	"docqa/internal/rerank/cohere"
	"docqa/internal/retrieval"
	"docqa/internal/service"
	statusfs "docqa/internal/status/firestore"
	statusmem "docqa/internal/status/memory"
	"docqa/internal/summarizer"
	"docqa/internal/vectorstore"
	"docqa/internal/vectorstore/memory"
	"docqa/internal/vectorstore/milvus"
	"docqa/internal/vectorstore/qdrant"
)

// app holds the wired components shared by the subcommands.
type app struct {
	cfg      *config.AppConfig
	logger   *slog.Logger
	cache    *vectorstore.Cache
	status   domain.StatusStore
	pipeline *ingest.Pipeline
	query    *service.QueryService
	closers  []func() error
}

// loadConfig reads the config selected by --config and builds the logger.
func loadConfig() (*config.AppConfig, *slog.Logger, error) {
	var (
		cfg  *config.AppConfig
		path = cfgPath
		err  error
	)
	if path == "" {
		cfg, path, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(path)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(cfg.Log, os.Stderr)
	warnings, err := cfg.Validate()
	for _, w := range warnings {
		logger.Warn("config warning", "warning", w)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	logger.Debug("config loaded", "path", path)
	return cfg, logger, nil
}

func newApp(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	if err := a.wire(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	cfg := a.cfg

	emb, err := newEmbedder(cfg.Embedder)
	if err != nil {
		return err
	}
	store, err := a.newVectorStore(ctx, cfg.VectorStore)
	if err != nil {
		return err
	}
	a.cache = vectorstore.NewCache(store, emb)

	if a.status, err = a.newStatusStore(ctx, cfg.StatusStore); err != nil {
		return err
	}
	reranker, err := newReranker(cfg.Reranker)
	if err != nil {
		return err
	}
	gen, err := a.newGenerator(ctx, cfg.Generator)
	if err != nil {
		return err
	}

	var sum domain.Summarizer
	switch cfg.Summarizer.Type {
	case "frequency", "":
		sum = summarizer.NewFrequencySummarizer()
	case "none":
	default:
		return fmt.Errorf("unknown summarizer: %s", cfg.Summarizer.Type)
	}

	var recognizer extract.Recognizer
	oc, err := ocr.New(cfg.Extractor.OCRLanguages)
	switch {
	case errors.Is(err, ocr.ErrOCRNotEnabled):
		a.logger.Warn("OCR fallback disabled; build with -tags ocr to enable it")
	case err != nil:
		a.logger.Warn("OCR fallback unavailable", "error", err)
	default:
		recognizer = oc
		a.closers = append(a.closers, oc.Close)
	}
	extractor := extract.New(extract.NewTabulaOpener(a.logger), recognizer, cfg.Extractor.MinTextForOCR, a.logger)

	in := cfg.Ingest
	a.pipeline = ingest.NewPipeline(
		extractor,
		chunker.NewTableAwareChunker(cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap),
		emb,
		a.cache,
		a.status,
		sum,
		ingest.Options{
			BatchSize:        in.BatchSize,
			EmbedConcurrency: in.EmbedConcurrency,
			EmbedTimeout:     config.Seconds(in.EmbedTimeoutSecs),
			SummarySentences: cfg.Summarizer.MaxSentences,
		},
		a.logger,
	)

	r := cfg.Retrieval
	orch := retrieval.NewOrchestrator(a.cache, reranker, retrieval.NewKeywordClassifier(r.TableKeywords), retrieval.Options{
		InitialK:         r.InitialK,
		TableInitialK:    r.TableInitialK,
		TopK:             r.TopK,
		TableTopK:        r.TableTopK,
		Threshold:        r.Threshold,
		TableThreshold:   r.TableThreshold,
		TableChunkFactor: r.TableChunkFactor,
		SearchTimeout:    config.Seconds(r.SearchTimeoutSecs),
		RerankTimeout:    config.Seconds(r.RerankTimeoutSecs),
	}, a.logger)
	temperature := config.DefaultTemperature
	if cfg.Generator.Temperature != nil {
		temperature = *cfg.Generator.Temperature
	}
	synth := answer.NewSynthesizer(gen, answer.Options{
		Temperature: temperature,
		MaxTokens:   cfg.Generator.MaxTokens,
		Timeout:     config.Seconds(r.GenerateTimeoutSecs),
	}, a.logger)
	a.query = service.NewQueryService(orch, synth, a.status, a.logger)

	a.logger.Info("components ready",
		"embedder", emb.Name(),
		"vector_store", cfg.VectorStore.Type,
		"reranker", cfg.Reranker.Type,
		"generator", gen.Model(),
		"status_store", cfg.StatusStore.Type,
		"ocr", recognizer != nil,
	)
	return nil
}

// Close releases external clients in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}

func newEmbedder(cfg config.EmbedderConfig) (domain.Embedder, error) {
	switch cfg.Type {
	case "hashing", "":
		dim := 0
		if cfg.Hashing != nil {
			dim = cfg.Hashing.Dimension
		}
		return hashing.NewEmbedder(dim), nil
	case "openai", "ollama":
		if cfg.OpenAI == nil {
			return nil, errors.New("embedder.openai config missing")
		}
		client, err := embopenai.NewClient(embopenai.Config{
			BaseURL:    cfg.OpenAI.BaseURL,
			APIKeyEnv:  cfg.OpenAI.APIKeyEnv,
			Model:      cfg.OpenAI.Model,
			Timeout:    config.Seconds(cfg.OpenAI.TimeoutSecs),
			MaxRetries: cfg.OpenAI.MaxRetries,
		})
		if err != nil {
			return nil, fmt.Errorf("embedder init: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
}

func (a *app) newVectorStore(ctx context.Context, cfg config.VectorStoreConfig) (domain.VectorStore, error) {
	switch cfg.Type {
	case "memory", "":
		return memory.NewStorage(), nil
	case "qdrant":
		if cfg.Qdrant == nil {
			return nil, errors.New("vector_store.qdrant config missing")
		}
		return qdrant.NewStorage(qdrant.Config{
			URL:     cfg.Qdrant.URL,
			APIKey:  cfg.Qdrant.APIKey,
			Timeout: config.Seconds(cfg.Qdrant.TimeoutSecs),
		}), nil
	case "milvus":
		if cfg.Milvus == nil {
			return nil, errors.New("vector_store.milvus config missing")
		}
		var key string
		if cfg.Milvus.APIKeyEnv != "" {
			key = os.Getenv(cfg.Milvus.APIKeyEnv)
		}
		st, err := milvus.NewStorage(ctx, milvus.Config{
			Address: cfg.Milvus.Address,
			APIKey:  key,
			Timeout: config.Seconds(cfg.Milvus.TimeoutSecs),
		})
		if err != nil {
			return nil, fmt.Errorf("milvus connect: %w", err)
		}
		a.closers = append(a.closers, func() error { return st.Close(context.Background()) })
		return st, nil
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.Type)
	}
}

func (a *app) newStatusStore(ctx context.Context, cfg config.StatusStoreConfig) (domain.StatusStore, error) {
	switch cfg.Type {
	case "memory", "":
		return statusmem.NewStore(), nil
	case "firestore":
		if cfg.Firestore == nil {
			return nil, errors.New("status_store.firestore config missing")
		}
		st, err := statusfs.NewStore(ctx, statusfs.Config{
			ProjectID:       cfg.Firestore.ProjectID,
			Collection:      cfg.Firestore.Collection,
			CredentialsFile: cfg.Firestore.CredentialsFile,
		})
		if err != nil {
			return nil, fmt.Errorf("firestore init: %w", err)
		}
		a.closers = append(a.closers, st.Close)
		return st, nil
	default:
		return nil, fmt.Errorf("unknown status store: %s", cfg.Type)
	}
}

// newReranker returns nil when reranking is disabled.
func newReranker(cfg config.RerankerConfig) (domain.Reranker, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "cohere":
		if cfg.Cohere == nil {
			return nil, errors.New("reranker.cohere config missing")
		}
		client, err := cohere.NewClient(cohere.Config{
			BaseURL:           cfg.Cohere.BaseURL,
			APIKeyEnv:         cfg.Cohere.APIKeyEnv,
			Model:             cfg.Cohere.Model,
			Timeout:           config.Seconds(cfg.Cohere.TimeoutSecs),
			RequestsPerMinute: cfg.Cohere.RequestsPerMinute,
			Burst:             cfg.Cohere.Burst,
		})
		if err != nil {
			return nil, fmt.Errorf("reranker init: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown reranker: %s", cfg.Type)
	}
}

func (a *app) newGenerator(ctx context.Context, cfg config.GeneratorConfig) (domain.Generator, error) {
	switch cfg.Type {
	case "gemini", "":
		if cfg.Gemini == nil {
			return nil, errors.New("generator.gemini config missing")
		}
		client, err := gemini.NewClient(ctx, gemini.Config{
			ProjectID:         cfg.Gemini.ProjectID,
			Region:            cfg.Gemini.Region,
			Model:             cfg.Gemini.Model,
			CredentialsFile:   cfg.Gemini.CredentialsFile,
			TopP:              cfg.Gemini.TopP,
			TopK:              cfg.Gemini.TopK,
			RequestsPerMinute: cfg.Gemini.RequestsPerMinute,
		})
		if err != nil {
			return nil, fmt.Errorf("gemini init: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		return client, nil
	case "openai":
		if cfg.OpenAI == nil {
			return nil, errors.New("generator.openai config missing")
		}
		client, err := llmopenai.NewClient(llmopenai.Config{
			BaseURL:   cfg.OpenAI.BaseURL,
			APIKeyEnv: cfg.OpenAI.APIKeyEnv,
			Model:     cfg.OpenAI.Model,
			Timeout:   config.Seconds(cfg.OpenAI.TimeoutSecs),
		})
		if err != nil {
			return nil, fmt.Errorf("generator init: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown generator: %s", cfg.Type)
	}
}
