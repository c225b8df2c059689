package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/courseforge-backend/internal/llm/providers"
	"github.com/yungbote/courseforge-backend/internal/platform/envutil"
	"github.com/yungbote/courseforge-backend/internal/platform/objectstore"
)

type Config struct {
	Environment string
	HTTPAddr    string

	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	S3 objectstore.Config

	Providers     providers.Config
	LLMMaxRetries int

	ModelCatalogPath    string
	ArchitectPromptPath string

	CORSAllowOrigins []string

	GeminiVideoModel     string
	WhisperFallback      bool
	FFmpegBin            string
	WhisperBin           string
	WhisperModelPath     string
	WhisperMaxConcurrent int

	WebFetchTimeout time.Duration
}

func LoadConfig() Config {
	cfg := Config{
		Environment: envutil.Str("ENVIRONMENT", "development"),
		HTTPAddr:    envutil.Str("HTTP_ADDR", ":8080"),

		PostgresHost:     envutil.Str("POSTGRES_HOST", "localhost"),
		PostgresPort:     envutil.Int("POSTGRES_PORT", 5432),
		PostgresUser:     envutil.Str("POSTGRES_USER", "postgres"),
		PostgresPassword: envutil.Str("POSTGRES_PASSWORD", ""),
		PostgresDB:       envutil.Str("POSTGRES_DB", "courseforge"),
		PostgresSSLMode:  envutil.Str("POSTGRES_SSLMODE", "disable"),

		S3: objectstore.Config{
			Endpoint:  envutil.Str("S3_ENDPOINT", "localhost:9000"),
			AccessKey: envutil.Str("S3_ACCESS_KEY", ""),
			SecretKey: envutil.Str("S3_SECRET_KEY", ""),
			Bucket:    envutil.Str("S3_BUCKET", "courseforge-materials"),
			Region:    envutil.Str("S3_REGION", "us-east-1"),
			UseSSL:    envutil.Bool("S3_USE_SSL", false),
		},

		Providers: providers.Config{
			OpenAIAPIKey:     envutil.Str("OPENAI_API_KEY", ""),
			OpenAIBaseURL:    envutil.Str("OPENAI_BASE_URL", ""),
			AnthropicAPIKey:  envutil.Str("ANTHROPIC_API_KEY", ""),
			AnthropicBaseURL: envutil.Str("ANTHROPIC_BASE_URL", ""),
			GeminiAPIKey:     envutil.Str("GEMINI_API_KEY", ""),
			DeepSeekAPIKey:   envutil.Str("DEEPSEEK_API_KEY", ""),
			DeepSeekBaseURL:  envutil.Str("DEEPSEEK_BASE_URL", ""),
			Timeout:          envutil.Dur("LLM_TIMEOUT_SECONDS", 120*time.Second),
		},
		LLMMaxRetries: envutil.Int("LLM_MAX_RETRIES", 2),

		ModelCatalogPath:    envutil.Str("MODEL_CATALOG_PATH", "config/models.yaml"),
		ArchitectPromptPath: envutil.Str("ARCHITECT_PROMPT_PATH", "prompts/architect/v1.yaml"),

		GeminiVideoModel:     envutil.Str("GEMINI_VIDEO_MODEL", "gemini-2.0-flash"),
		WhisperFallback:      envutil.Bool("WHISPER_FALLBACK_ENABLED", false),
		FFmpegBin:            envutil.Str("FFMPEG_BIN", "ffmpeg"),
		WhisperBin:           envutil.Str("WHISPER_BIN", "whisper-cli"),
		WhisperModelPath:     envutil.Str("WHISPER_MODEL_PATH", ""),
		WhisperMaxConcurrent: envutil.Int("WHISPER_MAX_CONCURRENT", 2),

		WebFetchTimeout: envutil.Dur("WEB_FETCH_TIMEOUT", 30*time.Second),
	}

	if origins := envutil.Str("CORS_ALLOW_ORIGINS", ""); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSAllowOrigins = append(cfg.CORSAllowOrigins, o)
			}
		}
	}
	return cfg
}

// PostgresDSN renders the pgx connection string.
func (c Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode)
}
