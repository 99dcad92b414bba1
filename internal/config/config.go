package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr                string `yaml:"addr"`
	UploadDir           string `yaml:"upload_dir"`
	MaxUploadMB         int    `yaml:"max_upload_mb"`
	ShutdownTimeoutSecs int    `yaml:"shutdown_timeout_secs"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ChunkerConfig configures how page text is split into chunks.
type ChunkerConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// ExtractorConfig configures page extraction and OCR fallback.
type ExtractorConfig struct {
	MinTextForOCR int    `yaml:"min_text_for_ocr"`
	OCRLanguages  string `yaml:"ocr_languages"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
// It also serves Ollama, whose native embeddings endpoint it understands.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries"`
}

// HashingEmbedderConfig configures the offline feature-hashing embedder.
type HashingEmbedderConfig struct {
	Dimension int `yaml:"dimension"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type    string                 `yaml:"type"`
	OpenAI  *OpenAIEmbedderConfig  `yaml:"openai,omitempty"`
	Hashing *HashingEmbedderConfig `yaml:"hashing,omitempty"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
	Milvus *MilvusConfig `yaml:"milvus,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// MilvusConfig contains connection details for a Milvus vector store.
type MilvusConfig struct {
	Address     string `yaml:"address"`
	APIKeyEnv   string `yaml:"api_key_env"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// CohereConfig configures the Cohere rerank client.
type CohereConfig struct {
	BaseURL           string  `yaml:"base_url"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	Model             string  `yaml:"model"`
	TimeoutSecs       int     `yaml:"timeout_secs"`
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	Burst             int     `yaml:"burst"`
}

// RerankerConfig selects the relevance reranker. Type "none" disables reranking.
type RerankerConfig struct {
	Type   string        `yaml:"type"`
	Cohere *CohereConfig `yaml:"cohere,omitempty"`
}

// GeminiConfig configures Gemini on Vertex AI.
type GeminiConfig struct {
	ProjectID         string  `yaml:"project_id"`
	Region            string  `yaml:"region"`
	Model             string  `yaml:"model"`
	CredentialsFile   string  `yaml:"credentials_file"`
	TopP              float32 `yaml:"top_p"`
	TopK              int32   `yaml:"top_k"`
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
}

// OpenAIChatConfig configures an OpenAI-compatible chat completions endpoint.
type OpenAIChatConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// GeneratorConfig selects and configures answer generation.
type GeneratorConfig struct {
	Type        string            `yaml:"type"`
	Temperature *float32          `yaml:"temperature"`
	MaxTokens   int               `yaml:"max_tokens"`
	Gemini      *GeminiConfig     `yaml:"gemini,omitempty"`
	OpenAI      *OpenAIChatConfig `yaml:"openai,omitempty"`
}

// RetrievalConfig tunes the staged retrieval of the query path.
type RetrievalConfig struct {
	InitialK            int      `yaml:"initial_k"`
	TableInitialK       int      `yaml:"table_initial_k"`
	TopK                int      `yaml:"top_k"`
	TableTopK           int      `yaml:"table_top_k"`
	Threshold           float64  `yaml:"threshold"`
	TableThreshold      float64  `yaml:"table_threshold"`
	TableChunkFactor    float64  `yaml:"table_chunk_factor"`
	TableKeywords       []string `yaml:"table_keywords,omitempty"`
	SearchTimeoutSecs   int      `yaml:"search_timeout_secs"`
	RerankTimeoutSecs   int      `yaml:"rerank_timeout_secs"`
	GenerateTimeoutSecs int      `yaml:"generate_timeout_secs"`
}

// IngestConfig configures background ingestion.
type IngestConfig struct {
	BatchSize        int `yaml:"batch_size"`
	Workers          int `yaml:"workers"`
	QueueSize        int `yaml:"queue_size"`
	EmbedConcurrency int `yaml:"embed_concurrency"`
	EmbedTimeoutSecs int `yaml:"embed_timeout_secs"`
	JobTimeoutSecs   int `yaml:"job_timeout_secs"`
}

// FirestoreConfig configures the Firestore ingestion status store.
type FirestoreConfig struct {
	ProjectID       string `yaml:"project_id"`
	Collection      string `yaml:"collection"`
	CredentialsFile string `yaml:"credentials_file"`
}

// StatusStoreConfig selects where ingestion status is kept.
type StatusStoreConfig struct {
	Type      string           `yaml:"type"`
	Firestore *FirestoreConfig `yaml:"firestore,omitempty"`
}

// SummarizerConfig selects and configures the document summarizer.
type SummarizerConfig struct {
	Type         string `yaml:"type"`
	MaxSentences int    `yaml:"max_sentences"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Extractor   ExtractorConfig   `yaml:"extractor"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Reranker    RerankerConfig    `yaml:"reranker"`
	Generator   GeneratorConfig   `yaml:"generator"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Ingest      IngestConfig      `yaml:"ingest"`
	StatusStore StatusStoreConfig `yaml:"status_store"`
	Summarizer  SummarizerConfig  `yaml:"summarizer"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/docqa/config.yaml.
// If neither exists, it writes defaults to ~/.config/docqa/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate reports misconfigurations as an error and questionable values as warnings.
func (c *AppConfig) Validate() (warnings []string, err error) {
	var errs []error
	if c.Reranker.Type == "cohere" && c.Reranker.Cohere != nil && os.Getenv(c.Reranker.Cohere.APIKeyEnv) == "" {
		errs = append(errs, fmt.Errorf("%s is not set (use reranker.type: none to run without reranking)", c.Reranker.Cohere.APIKeyEnv))
	}
	if c.Generator.Type == "gemini" && (c.Generator.Gemini == nil || c.Generator.Gemini.ProjectID == "") {
		errs = append(errs, errors.New("generator.gemini.project_id is not set"))
	}
	if c.StatusStore.Type == "firestore" && (c.StatusStore.Firestore == nil || c.StatusStore.Firestore.ProjectID == "") {
		errs = append(errs, errors.New("status_store.firestore.project_id is not set"))
	}
	if c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
		errs = append(errs, fmt.Errorf("chunk_overlap (%d) must be smaller than chunk_size (%d)", c.Chunker.ChunkOverlap, c.Chunker.ChunkSize))
	}
	if c.Chunker.ChunkSize < 500 {
		warnings = append(warnings, fmt.Sprintf("chunk_size (%d) is quite small, consider 1000+", c.Chunker.ChunkSize))
	}
	if c.Retrieval.InitialK < 5 {
		warnings = append(warnings, fmt.Sprintf("initial_k (%d) might be too low", c.Retrieval.InitialK))
	}
	if c.Retrieval.TopK > c.Retrieval.InitialK {
		warnings = append(warnings, fmt.Sprintf("top_k (%d) exceeds initial_k (%d)", c.Retrieval.TopK, c.Retrieval.InitialK))
	}
	return warnings, errors.Join(errs...)
}

// DefaultTemperature is the sampling temperature used when none is configured.
const DefaultTemperature float32 = 0.1

// Seconds converts a configured number of seconds into a duration.
func Seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "docqa", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Embedder: EmbedderConfig{
			Type: "ollama",
			OpenAI: &OpenAIEmbedderConfig{
				BaseURL: "http://localhost:11434/api",
				Model:   "nomic-embed-text:latest",
			},
		},
		VectorStore: VectorStoreConfig{
			Type:   "qdrant",
			Qdrant: &QdrantConfig{URL: "http://localhost:6333"},
		},
		Reranker:    RerankerConfig{Type: "cohere"},
		Generator:   GeneratorConfig{Type: "gemini"},
		StatusStore: StatusStoreConfig{Type: "memory"},
		Summarizer:  SummarizerConfig{Type: "frequency"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	s := &cfg.Server
	if s.Addr == "" {
		s.Addr = "127.0.0.1:8000"
	}
	if s.UploadDir == "" {
		s.UploadDir = "uploads"
	}
	if s.MaxUploadMB == 0 {
		s.MaxUploadMB = 64
	}
	if s.ShutdownTimeoutSecs == 0 {
		s.ShutdownTimeoutSecs = 30
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}

	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = 1000
	}
	if cfg.Chunker.ChunkOverlap == 0 {
		cfg.Chunker.ChunkOverlap = 200
	}
	if cfg.Extractor.MinTextForOCR == 0 {
		cfg.Extractor.MinTextForOCR = 50
	}
	if cfg.Extractor.OCRLanguages == "" {
		cfg.Extractor.OCRLanguages = "eng+hin"
	}

	applyEmbedderDefaults(&cfg.Embedder)

	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "memory"
	}
	if cfg.VectorStore.Type == "qdrant" {
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{}
		}
		if cfg.VectorStore.Qdrant.URL == "" {
			cfg.VectorStore.Qdrant.URL = "http://localhost:6333"
		}
		if cfg.VectorStore.Qdrant.TimeoutSecs == 0 {
			cfg.VectorStore.Qdrant.TimeoutSecs = 15
		}
	}
	if cfg.VectorStore.Type == "milvus" {
		if cfg.VectorStore.Milvus == nil {
			cfg.VectorStore.Milvus = &MilvusConfig{}
		}
		if cfg.VectorStore.Milvus.Address == "" {
			cfg.VectorStore.Milvus.Address = "localhost:19530"
		}
		if cfg.VectorStore.Milvus.TimeoutSecs == 0 {
			cfg.VectorStore.Milvus.TimeoutSecs = 15
		}
	}

	// "none" must be set explicitly; it skips the threshold stage.
	if cfg.Reranker.Type == "" {
		cfg.Reranker.Type = "cohere"
	}
	if cfg.Reranker.Type == "cohere" {
		if cfg.Reranker.Cohere == nil {
			cfg.Reranker.Cohere = &CohereConfig{}
		}
		c := cfg.Reranker.Cohere
		if c.BaseURL == "" {
			c.BaseURL = "https://api.cohere.com/v2"
		}
		if c.APIKeyEnv == "" {
			c.APIKeyEnv = "COHERE_API_KEY"
		}
		if c.Model == "" {
			c.Model = "rerank-english-v3.0"
		}
		if c.TimeoutSecs == 0 {
			c.TimeoutSecs = 15
		}
		if c.RequestsPerMinute == 0 {
			c.RequestsPerMinute = 10
		}
		if c.Burst == 0 {
			c.Burst = 1
		}
	}

	applyGeneratorDefaults(&cfg.Generator)

	r := &cfg.Retrieval
	if r.InitialK == 0 {
		r.InitialK = 10
	}
	if r.TableInitialK == 0 {
		r.TableInitialK = 15
	}
	if r.TopK == 0 {
		r.TopK = 3
	}
	if r.TableTopK == 0 {
		r.TableTopK = 4
	}
	if r.Threshold == 0 {
		r.Threshold = 0.30
	}
	if r.TableThreshold == 0 {
		r.TableThreshold = 0.25
	}
	if r.TableChunkFactor == 0 {
		r.TableChunkFactor = 0.8
	}
	if r.SearchTimeoutSecs == 0 {
		r.SearchTimeoutSecs = 15
	}
	if r.RerankTimeoutSecs == 0 {
		r.RerankTimeoutSecs = 15
	}
	if r.GenerateTimeoutSecs == 0 {
		r.GenerateTimeoutSecs = 60
	}

	in := &cfg.Ingest
	if in.BatchSize == 0 {
		in.BatchSize = 50
	}
	if in.Workers == 0 {
		in.Workers = 2
	}
	if in.QueueSize == 0 {
		in.QueueSize = 16
	}
	if in.EmbedConcurrency == 0 {
		in.EmbedConcurrency = 4
	}
	if in.EmbedTimeoutSecs == 0 {
		in.EmbedTimeoutSecs = 30
	}
	if in.JobTimeoutSecs == 0 {
		in.JobTimeoutSecs = 1800
	}

	if cfg.StatusStore.Type == "" {
		cfg.StatusStore.Type = "memory"
	}
	if cfg.StatusStore.Type == "firestore" {
		if cfg.StatusStore.Firestore == nil {
			cfg.StatusStore.Firestore = &FirestoreConfig{}
		}
		if cfg.StatusStore.Firestore.ProjectID == "" {
			cfg.StatusStore.Firestore.ProjectID = os.Getenv("GOOGLE_CLOUD_PROJECT")
		}
		if cfg.StatusStore.Firestore.Collection == "" {
			cfg.StatusStore.Firestore.Collection = "ingestions"
		}
	}

	if cfg.Summarizer.Type == "" {
		cfg.Summarizer.Type = "frequency"
	}
	if cfg.Summarizer.MaxSentences == 0 {
		cfg.Summarizer.MaxSentences = 3
	}
}

func applyEmbedderDefaults(e *EmbedderConfig) {
	switch e.Type {
	case "", "hashing":
		e.Type = "hashing"
		if e.Hashing == nil {
			e.Hashing = &HashingEmbedderConfig{}
		}
		if e.Hashing.Dimension == 0 {
			e.Hashing.Dimension = 512
		}
	case "openai", "ollama":
		if e.OpenAI == nil {
			e.OpenAI = &OpenAIEmbedderConfig{}
		}
		o := e.OpenAI
		if e.Type == "openai" {
			if o.BaseURL == "" {
				o.BaseURL = "https://api.openai.com/v1"
			}
			if o.APIKeyEnv == "" {
				o.APIKeyEnv = "OPENAI_API_KEY"
			}
			if o.Model == "" {
				o.Model = "text-embedding-3-small"
			}
		} else {
			if o.BaseURL == "" {
				o.BaseURL = "http://localhost:11434/api"
			}
			if o.Model == "" {
				o.Model = "nomic-embed-text:latest"
			}
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 30
		}
		if o.MaxRetries == 0 {
			o.MaxRetries = 5
		}
	}
}

func applyGeneratorDefaults(g *GeneratorConfig) {
	if g.Type == "" {
		g.Type = "gemini"
	}
	if g.Temperature == nil {
		t := DefaultTemperature
		g.Temperature = &t
	}
	if g.MaxTokens == 0 {
		g.MaxTokens = 2048
	}
	switch g.Type {
	case "gemini":
		if g.Gemini == nil {
			g.Gemini = &GeminiConfig{}
		}
		gm := g.Gemini
		if gm.ProjectID == "" {
			gm.ProjectID = os.Getenv("GOOGLE_CLOUD_PROJECT")
		}
		if gm.Region == "" {
			gm.Region = "us-central1"
		}
		if gm.Model == "" {
			gm.Model = "gemini-2.0-flash"
		}
		if gm.TopP == 0 {
			gm.TopP = 0.95
		}
		if gm.TopK == 0 {
			gm.TopK = 40
		}
		if gm.RequestsPerMinute == 0 {
			gm.RequestsPerMinute = 15
		}
	case "openai":
		if g.OpenAI == nil {
			g.OpenAI = &OpenAIChatConfig{}
		}
		o := g.OpenAI
		if o.BaseURL == "" {
			o.BaseURL = "http://localhost:11434/v1"
		}
		if o.Model == "" {
			o.Model = "llama3.1:8b-instruct-q4_K_M"
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 120
		}
	}
}
