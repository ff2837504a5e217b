package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds runtime configuration values.
type Config struct {
	Port        string
	DatabaseURL string
	Gemini      GeminiConfig
	Imagen      ImagenConfig
	Catalog     CatalogConfig
	Video       VideoConfig
	Pipeline    PipelineConfig
	Media       MediaConfig
}

// GeminiConfig describes the generative model gateway.
type GeminiConfig struct {
	APIKey          string
	Endpoint        string
	ReasoningModel  string
	GenerationModel string
	UseSDK          bool
	Timeout         time.Duration
}

// ImagenConfig describes the optional Vertex AI image editing backend.
type ImagenConfig struct {
	ProjectID       string
	Location        string
	Model           string
	CredentialsFile string
}

// CatalogConfig describes the plant catalog enrichment service.
type CatalogConfig struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// VideoConfig describes the before/after video service.
type VideoConfig struct {
	BaseURL string
	Timeout time.Duration
}

// PipelineConfig tunes generation retry and deadline behavior.
type PipelineConfig struct {
	EmitManifest   bool
	RetryTransient bool
	EnforceBudget  bool
	MaxAttempts    int
	Backoff        time.Duration
	PhaseTimeout   time.Duration
	OverallTimeout time.Duration
}

// MediaConfig describes S3/media related configuration.
type MediaConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	PublicURL       string
	KeyPrefix       string
	AccessKeyID     string
	SecretAccessKey string
	ForcePathStyle  bool
}

// FromEnv loads configuration from environment variables and applies defaults.
func FromEnv() Config {
	cfg := Config{
		Port:        getenv("APP_PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Gemini: GeminiConfig{
			APIKey:          os.Getenv("GEMINI_API_KEY"),
			Endpoint:        os.Getenv("GEMINI_ENDPOINT"),
			ReasoningModel:  os.Getenv("GEMINI_REASONING_MODEL"),
			GenerationModel: os.Getenv("GEMINI_GENERATION_MODEL"),
			UseSDK:          getenvBool("GEMINI_USE_SDK", false),
			Timeout:         getenvDuration("GEMINI_TIMEOUT", 120*time.Second),
		},
		Imagen: ImagenConfig{
			ProjectID:       os.Getenv("VERTEX_PROJECT_ID"),
			Location:        getenv("VERTEX_LOCATION", "us-central1"),
			Model:           os.Getenv("IMAGEN_MODEL"),
			CredentialsFile: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		},
		Catalog: CatalogConfig{
			BaseURL:  os.Getenv("CATALOG_SERVICE_URL"),
			Timeout:  getenvDuration("CATALOG_TIMEOUT", 30*time.Second),
			CacheTTL: getenvDuration("CATALOG_CACHE_TTL", 10*time.Minute),
		},
		Video: VideoConfig{
			BaseURL: os.Getenv("VIDEO_SERVICE_URL"),
			Timeout: getenvDuration("VIDEO_TIMEOUT", 5*time.Minute),
		},
		Pipeline: PipelineConfig{
			EmitManifest:   getenvBool("PIPELINE_EMIT_MANIFEST", true),
			RetryTransient: getenvBool("PIPELINE_RETRY_TRANSIENT", true),
			EnforceBudget:  getenvBool("PIPELINE_ENFORCE_BUDGET", false),
			MaxAttempts:    getenvInt("PIPELINE_MAX_ATTEMPTS", 3),
			Backoff:        getenvDuration("PIPELINE_RETRY_BACKOFF", 2*time.Second),
			PhaseTimeout:   getenvDuration("PIPELINE_PHASE_TIMEOUT", 3*time.Minute),
			OverallTimeout: getenvDuration("PIPELINE_OVERALL_TIMEOUT", 10*time.Minute),
		},
		Media: MediaConfig{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          os.Getenv("S3_REGION"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			PublicURL:       os.Getenv("S3_PUBLIC_URL"),
			KeyPrefix:       strings.Trim(os.Getenv("S3_KEY_PREFIX"), "/"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
			ForcePathStyle:  getenvBool("S3_FORCE_PATH_STYLE", false),
		},
	}

	if cfg.Port == "" {
		log.Fatal("APP_PORT cannot be empty")
	}

	return cfg
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return fallback
}

func getenvBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}

	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}

	return parsed
}

func getenvInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}

	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}

	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}

	return parsed
}
