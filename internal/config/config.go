package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server  ServerConfig
	Redis   RedisConfig
	Vision  VisionConfig
	TTS     TTSConfig
	Storage StorageConfig
	Jobs    JobsConfig
	Upload  UploadConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	RateLimitRPS float64
	RateBurst    int
	CORSOrigins  []string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type VisionConfig struct {
	Provider         string // gemini, openai, anthropic or ollama
	Model            string // empty means the provider's default
	FallbackProvider string
	MaxRetries       int
	Prompt           string // empty means the built-in Vietnamese prompt
	OpenAIKey        string
	OpenAIBaseURL    string
	GeminiKey        string
	GeminiBaseURL    string
	AnthropicKey     string
	OllamaURL        string
	CacheTTL         time.Duration // 0 disables the analysis cache
}

type TTSConfig struct {
	Backend      string // fpt, openai, edge or local
	DefaultVoice string
	WaitTime     time.Duration
	MaxRetries   int

	FPTKey        string
	FPTURL        string
	FPTSpeed      string
	FPTAudioHosts []string

	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string

	LocalBinPath string
	LocalModel   string
}

type StorageConfig struct {
	Backend     string // local, supabase or nats
	OutputDir   string
	Bucket      string
	MaxAge      time.Duration
	SupabaseURL string
	SupabaseKey string
	NATSURL     string
}

type JobsConfig struct {
	Backend           string // memory or queue
	TTL               time.Duration
	WorkerConcurrency int
}

type UploadConfig struct {
	MaxBytes int64
}

func Load() (*Config, error) {
	port, err := getEnvInt("SERVER_PORT", 8000)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	rps, err := getEnvFloat("RATE_LIMIT_RPS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}

	burst, err := getEnvInt("RATE_LIMIT_BURST", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	visionRetries, err := getEnvInt("VISION_MAX_RETRIES", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid VISION_MAX_RETRIES: %w", err)
	}

	cacheTTL, err := getEnvDuration("ANALYSIS_CACHE_TTL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid ANALYSIS_CACHE_TTL: %w", err)
	}

	waitSeconds, err := getEnvInt("TTS_WAIT_SECONDS", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid TTS_WAIT_SECONDS: %w", err)
	}

	ttsRetries, err := getEnvInt("TTS_MAX_RETRIES", 60)
	if err != nil {
		return nil, fmt.Errorf("invalid TTS_MAX_RETRIES: %w", err)
	}

	maxAge, err := getEnvDuration("AUDIO_MAX_AGE", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid AUDIO_MAX_AGE: %w", err)
	}

	jobTTL, err := getEnvDuration("JOB_TTL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid JOB_TTL: %w", err)
	}

	concurrency, err := getEnvInt("WORKER_CONCURRENCY", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_CONCURRENCY: %w", err)
	}

	maxUpload, err := getEnvInt("UPLOAD_MAX_BYTES", 10<<20)
	if err != nil {
		return nil, fmt.Errorf("invalid UPLOAD_MAX_BYTES: %w", err)
	}

	openAIKey := getEnv("OPENAI_API_KEY", "")

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         port,
			RateLimitRPS: rps,
			RateBurst:    burst,
			CORSOrigins:  splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Vision: VisionConfig{
			Provider:         strings.ToLower(getEnv("VISION_PROVIDER", "gemini")),
			Model:            getEnv("VISION_MODEL", ""),
			FallbackProvider: strings.ToLower(getEnv("VISION_FALLBACK_PROVIDER", "")),
			MaxRetries:       visionRetries,
			Prompt:           getEnv("VISION_PROMPT", ""),
			OpenAIKey:        openAIKey,
			OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", ""),
			GeminiKey:        getEnv("GEMINI_API_KEY", ""),
			GeminiBaseURL:    getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai/"),
			AnthropicKey:     getEnv("ANTHROPIC_API_KEY", ""),
			OllamaURL:        getEnv("OLLAMA_URL", ""),
			CacheTTL:         cacheTTL,
		},
		TTS: TTSConfig{
			Backend:       strings.ToLower(getEnv("TTS_BACKEND", "fpt")),
			DefaultVoice:  getEnv("DEFAULT_VOICE", "banmai"),
			WaitTime:      time.Duration(waitSeconds) * time.Second,
			MaxRetries:    ttsRetries,
			FPTKey:        getEnv("FPT_API_KEY", ""),
			FPTURL:        getEnv("FPT_TTS_URL", "https://api.fpt.ai/hmi/tts/v5"),
			FPTSpeed:      getEnv("FPT_SPEED", ""),
			FPTAudioHosts: splitList(getEnv("FPT_AUDIO_HOSTS", "fpt.ai")),
			OpenAIKey:     getEnv("TTS_OPENAI_API_KEY", openAIKey),
			OpenAIBaseURL: getEnv("TTS_OPENAI_BASE_URL", ""),
			OpenAIModel:   getEnv("TTS_OPENAI_MODEL", ""),
			LocalBinPath:  getEnv("TTS_LOCAL_PIPER_BIN", "piper"),
			LocalModel:    getEnv("TTS_LOCAL_PIPER_MODEL", ""),
		},
		Storage: StorageConfig{
			Backend:     strings.ToLower(getEnv("STORAGE_BACKEND", "local")),
			OutputDir:   getEnv("OUTPUT_DIR", "outputs"),
			Bucket:      getEnv("STORAGE_BUCKET", "audio"),
			MaxAge:      maxAge,
			SupabaseURL: getEnv("SUPABASE_URL", ""),
			SupabaseKey: getEnv("SUPABASE_SERVICE_KEY", ""),
			NATSURL:     getEnv("NATS_URL", ""),
		},
		Jobs: JobsConfig{
			Backend:           strings.ToLower(getEnv("JOBS_BACKEND", "memory")),
			TTL:               jobTTL,
			WorkerConcurrency: concurrency,
		},
		Upload: UploadConfig{
			MaxBytes: int64(maxUpload),
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate reports every missing or unsupported setting at once. The selected
// providers must have credentials before the server accepts uploads.
func (c *Config) Validate() error {
	var problems []string

	for _, p := range []string{c.Vision.Provider, c.Vision.FallbackProvider} {
		if p == "" {
			continue
		}
		switch p {
		case "gemini":
			if c.Vision.GeminiKey == "" {
				problems = append(problems, "GEMINI_API_KEY")
			}
		case "openai":
			if c.Vision.OpenAIKey == "" {
				problems = append(problems, "OPENAI_API_KEY")
			}
		case "anthropic":
			if c.Vision.AnthropicKey == "" {
				problems = append(problems, "ANTHROPIC_API_KEY")
			}
		case "ollama":
			if c.Vision.OllamaURL == "" {
				problems = append(problems, "OLLAMA_URL")
			}
		default:
			problems = append(problems, fmt.Sprintf("VISION_PROVIDER (unsupported %q)", p))
		}
	}

	switch c.TTS.Backend {
	case "fpt":
		if c.TTS.FPTKey == "" {
			problems = append(problems, "FPT_API_KEY")
		}
	case "openai":
		if c.TTS.OpenAIKey == "" {
			problems = append(problems, "TTS_OPENAI_API_KEY")
		}
	case "local":
		if c.TTS.LocalModel == "" {
			problems = append(problems, "TTS_LOCAL_PIPER_MODEL")
		}
	case "edge":
	default:
		problems = append(problems, fmt.Sprintf("TTS_BACKEND (unsupported %q)", c.TTS.Backend))
	}

	switch c.Storage.Backend {
	case "local":
		if c.Storage.OutputDir == "" {
			problems = append(problems, "OUTPUT_DIR")
		}
	case "supabase":
		if c.Storage.SupabaseURL == "" {
			problems = append(problems, "SUPABASE_URL")
		}
		if c.Storage.SupabaseKey == "" {
			problems = append(problems, "SUPABASE_SERVICE_KEY")
		}
	case "nats":
		if c.Storage.NATSURL == "" {
			problems = append(problems, "NATS_URL")
		}
	default:
		problems = append(problems, fmt.Sprintf("STORAGE_BACKEND (unsupported %q)", c.Storage.Backend))
	}

	switch c.Jobs.Backend {
	case "memory":
	case "queue":
		if c.Redis.Addr == "" {
			problems = append(problems, "REDIS_ADDR")
		}
	default:
		problems = append(problems, fmt.Sprintf("JOBS_BACKEND (unsupported %q)", c.Jobs.Backend))
	}

	if c.TTS.DefaultVoice == "" {
		problems = append(problems, "DEFAULT_VOICE")
	}
	if c.Jobs.WorkerConcurrency <= 0 {
		problems = append(problems, "WORKER_CONCURRENCY (must be positive)")
	}
	if c.TTS.MaxRetries <= 0 {
		problems = append(problems, "TTS_MAX_RETRIES (must be positive)")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, ", "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

// getEnvDuration accepts Go duration strings ("90s") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}
