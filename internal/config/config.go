// Package config provides the configuration structure for the podcast-service.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/book-expert/podcast-service/internal/audio"
	"github.com/book-expert/podcast-service/internal/llm"
	"github.com/book-expert/podcast-service/internal/protocol"
	"github.com/book-expert/podcast-service/internal/publish"
	"github.com/book-expert/podcast-service/internal/voices"
	"github.com/caarlos0/env/v11"
)

// Speech backends.
const (
	TTSBackendHTTP = "http"
	TTSBackendExec = "exec"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultHost                   = "0.0.0.0"
	DefaultPort                   = 8000
	DefaultMaxUploadMB            = 50
	DefaultShutdownTimeoutSeconds = 30
	DefaultDocumentBucket         = "PODCAST_DOCUMENTS"
	DefaultAudioBucket            = "PODCAST_AUDIO"
	DefaultNATSStoreDir           = "./data/nats"
	DefaultLLMTimeoutSeconds      = 120
	DefaultTTSURL                 = "http://localhost:8880"
	DefaultTTSModel               = "tts-1"
	DefaultTTSTimeoutSeconds      = 120
	DefaultStageTimeoutSeconds    = 300
	DefaultLinkExpirySeconds      = 3600
	DefaultLogsDir                = "./logs"
	DefaultUploadDir              = "./uploads"
	DefaultEnvironment            = "development"
)

const maxPort = 65535

// DefaultCORSOrigins are the local frontend dev-server origins.
func DefaultCORSOrigins() []string {
	return []string{"http://localhost:5173", "http://127.0.0.1:5173"}
}

var (
	// ErrInvalidPort indicates a port outside 1-65535.
	ErrInvalidPort = errors.New("invalid server port")
	// ErrInvalidLLMProvider indicates an unsupported [llm] provider.
	ErrInvalidLLMProvider = errors.New("invalid llm provider")
	// ErrInvalidTTSBackend indicates an unsupported [tts_service] backend.
	ErrInvalidTTSBackend = errors.New("invalid tts backend")
	// ErrTTSURLMissing indicates the http backend has no service URL.
	ErrTTSURLMissing = errors.New("tts_service.url is required for the http backend")
	// ErrTTSCommandMissing indicates the exec backend has no command.
	ErrTTSCommandMissing = errors.New("tts_service.command is required for the exec backend")
	// ErrInvalidPublishBackend indicates an unsupported [publish] backend.
	ErrInvalidPublishBackend = errors.New("invalid publish backend")
	// ErrS3BucketMissing indicates the s3 backend has no bucket.
	ErrS3BucketMissing = errors.New("publish.s3_bucket (S3_BUCKET_NAME) is required for the s3 backend")
	// ErrInvalidTimeout indicates a negative timeout or expiry.
	ErrInvalidTimeout = errors.New("timeouts must not be negative")
)

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Host                   string   `toml:"host"`
	Port                   int      `toml:"port"                     env:"PORT"`
	PublicBaseURL          string   `toml:"public_base_url"          env:"PUBLIC_BASE_URL"`
	CORSOrigins            []string `toml:"cors_origins"`
	MaxUploadMB            int      `toml:"max_upload_mb"`
	ShutdownTimeoutSeconds int      `toml:"shutdown_timeout_seconds"`
}

// NATSConfig holds the configuration for NATS. An empty URL starts an
// embedded server.
type NATSConfig struct {
	URL            string `toml:"url"             env:"NATS_URL"`
	EmbeddedPort   int    `toml:"embedded_port"`
	StoreDir       string `toml:"store_dir"`
	SubmitSubject  string `toml:"submit_subject"`
	StatusSubject  string `toml:"status_subject"`
	DocumentBucket string `toml:"document_bucket"`
	AudioBucket    string `toml:"audio_bucket"`
}

// LLMConfig holds the script generator settings.
type LLMConfig struct {
	Provider       string  `toml:"provider"`
	Model          string  `toml:"model"`
	Temperature    float64 `toml:"temperature"`
	BaseURL        string  `toml:"base_url"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	GeminiAPIKey   string  `toml:"gemini_api_key"  env:"GEMINI_API_KEY"`
	OpenAIAPIKey   string  `toml:"openai_api_key"  env:"OPENAI_API_KEY"`
}

// TTSServiceConfig holds the speech synthesis settings.
type TTSServiceConfig struct {
	Backend        string  `toml:"backend"`
	URL            string  `toml:"url"             env:"TTS_URL"`
	APIKey         string  `toml:"api_key"         env:"TTS_API_KEY"`
	Model          string  `toml:"model"`
	Speed          float64 `toml:"speed"`
	Command        string  `toml:"command"`
	AudioFormat    string  `toml:"audio_format"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// VoiceConfig overrides the hosts of one language. Empty fields keep the
// built-in value.
type VoiceConfig struct {
	FirstHost   string `toml:"first_host"`
	FirstVoice  string `toml:"first_voice"`
	SecondHost  string `toml:"second_host"`
	SecondVoice string `toml:"second_voice"`
}

// PublishConfig selects where finished podcasts go.
type PublishConfig struct {
	Backend           string `toml:"backend"`
	LinkExpirySeconds int    `toml:"link_expiry_seconds"`
	LinkSigningKey    string `toml:"link_signing_key"    env:"LINK_SIGNING_KEY"`
	S3Bucket          string `toml:"s3_bucket"           env:"S3_BUCKET_NAME"`
	S3Region          string `toml:"s3_region"           env:"AWS_REGION"`
	S3Endpoint        string `toml:"s3_endpoint"         env:"S3_ENDPOINT"`
	S3UsePathStyle    bool   `toml:"s3_use_path_style"`
	AccessKeyID       string `toml:"access_key_id"       env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey   string `toml:"secret_access_key"   env:"AWS_SECRET_ACCESS_KEY"`
}

// PipelineConfig tunes job execution.
type PipelineConfig struct {
	StageTimeoutSeconds int    `toml:"stage_timeout_seconds"`
	DefaultLanguage     string `toml:"default_language"`
	WorkDir             string `toml:"work_dir"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
	UploadDir   string `toml:"upload_dir"`
}

// TelemetryConfig holds the metrics settings.
type TelemetryConfig struct {
	ServiceName string `toml:"service_name"`
	Environment string `toml:"environment" env:"ENVIRONMENT"`
}

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig           `toml:"server"`
	NATS      NATSConfig             `toml:"nats"`
	LLM       LLMConfig              `toml:"llm"`
	TTS       TTSServiceConfig       `toml:"tts_service"`
	Voices    map[string]VoiceConfig `toml:"voices"`
	Publish   PublishConfig          `toml:"publish"`
	Pipeline  PipelineConfig         `toml:"pipeline"`
	Paths     PathsConfig            `toml:"paths"`
	Telemetry TelemetryConfig        `toml:"telemetry"`
}

// Load loads the configuration for the podcast-service, overlays secrets
// from the environment, fills defaults and validates the result.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	err = cfg.Finalize()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Finalize applies environment overrides and defaults, then validates.
func (c *Config) Finalize() error {
	err := c.ApplyEnv()
	if err != nil {
		return err
	}

	c.ApplyDefaults()

	return c.Validate()
}

// ApplyEnv overrides fields tagged with env from set environment variables.
// Unset variables leave the file value alone.
func (c *Config) ApplyEnv() error {
	err := env.Parse(c)
	if err != nil {
		return fmt.Errorf("failed to read configuration from environment: %w", err)
	}

	return nil
}

// ApplyDefaults fills every unset field.
func (c *Config) ApplyDefaults() {
	c.Server.applyDefaults()
	c.NATS.applyDefaults()
	c.LLM.applyDefaults()
	c.TTS.applyDefaults()
	c.Publish.applyDefaults()
	c.Pipeline.applyDefaults()
	c.Paths.applyDefaults()
	c.Telemetry.applyDefaults()
}

func (s *ServerConfig) applyDefaults() {
	s.Host = orDefault(s.Host, DefaultHost)
	s.Port = orDefaultInt(s.Port, DefaultPort)
	s.MaxUploadMB = orDefaultInt(s.MaxUploadMB, DefaultMaxUploadMB)
	s.ShutdownTimeoutSeconds = orDefaultInt(s.ShutdownTimeoutSeconds, DefaultShutdownTimeoutSeconds)

	if s.CORSOrigins == nil {
		s.CORSOrigins = DefaultCORSOrigins()
	}

	if s.PublicBaseURL == "" {
		s.PublicBaseURL = "http://localhost:" + strconv.Itoa(s.Port)
	}

	s.PublicBaseURL = strings.TrimRight(s.PublicBaseURL, "/")
}

func (n *NATSConfig) applyDefaults() {
	n.StoreDir = orDefault(n.StoreDir, DefaultNATSStoreDir)
	n.SubmitSubject = orDefault(n.SubmitSubject, protocol.SubjectSubmit)
	n.StatusSubject = orDefault(n.StatusSubject, protocol.SubjectStatusPrefix)
	n.DocumentBucket = orDefault(n.DocumentBucket, DefaultDocumentBucket)
	n.AudioBucket = orDefault(n.AudioBucket, DefaultAudioBucket)

	if n.EmbeddedPort == 0 {
		n.EmbeddedPort = -1
	}
}

func (l *LLMConfig) applyDefaults() {
	l.Provider = strings.ToLower(orDefault(l.Provider, llm.ProviderGemini))
	l.TimeoutSeconds = orDefaultInt(l.TimeoutSeconds, DefaultLLMTimeoutSeconds)

	if l.Temperature == 0 {
		l.Temperature = llm.DefaultTemperature
	}

	if l.Model == "" {
		l.Model = llm.DefaultGeminiModel
		if l.Provider == llm.ProviderOpenAI {
			l.Model = llm.DefaultOpenAIModel
		}
	}
}

func (t *TTSServiceConfig) applyDefaults() {
	t.Backend = strings.ToLower(orDefault(t.Backend, TTSBackendHTTP))
	t.URL = orDefault(t.URL, DefaultTTSURL)
	t.Model = orDefault(t.Model, DefaultTTSModel)
	t.AudioFormat = orDefault(t.AudioFormat, string(audio.FORMAT_MP3))
	t.TimeoutSeconds = orDefaultInt(t.TimeoutSeconds, DefaultTTSTimeoutSeconds)
}

func (p *PublishConfig) applyDefaults() {
	p.LinkExpirySeconds = orDefaultInt(p.LinkExpirySeconds, DefaultLinkExpirySeconds)

	if p.Backend == "" {
		p.Backend = publish.BackendNATS
		if p.S3Bucket != "" {
			p.Backend = publish.BackendS3
		}
	}

	p.Backend = strings.ToLower(p.Backend)
}

func (p *PipelineConfig) applyDefaults() {
	p.StageTimeoutSeconds = orDefaultInt(p.StageTimeoutSeconds, DefaultStageTimeoutSeconds)
	p.DefaultLanguage = strings.ToLower(orDefault(p.DefaultLanguage, voices.DefaultLanguage))
}

func (p *PathsConfig) applyDefaults() {
	p.BaseLogsDir = orDefault(p.BaseLogsDir, DefaultLogsDir)
	p.UploadDir = orDefault(p.UploadDir, DefaultUploadDir)
}

func (t *TelemetryConfig) applyDefaults() {
	t.ServiceName = orDefault(t.ServiceName, "podcast-service")
	t.Environment = orDefault(t.Environment, DefaultEnvironment)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Server.Port)
	}

	switch c.LLM.Provider {
	case llm.ProviderGemini, llm.ProviderOpenAI:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLLMProvider, c.LLM.Provider)
	}

	err := c.TTS.validate()
	if err != nil {
		return err
	}

	switch c.Publish.Backend {
	case publish.BackendNATS:
	case publish.BackendS3:
		if c.Publish.S3Bucket == "" {
			return ErrS3BucketMissing
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidPublishBackend, c.Publish.Backend)
	}

	for _, value := range []int{
		c.Server.ShutdownTimeoutSeconds, c.LLM.TimeoutSeconds, c.TTS.TimeoutSeconds,
		c.Pipeline.StageTimeoutSeconds, c.Publish.LinkExpirySeconds,
	} {
		if value < 0 {
			return ErrInvalidTimeout
		}
	}

	return nil
}

func (t *TTSServiceConfig) validate() error {
	format, err := audio.ParseFormat(t.AudioFormat)
	if err != nil {
		return fmt.Errorf("invalid tts_service.audio_format: %w", err)
	}

	err = format.Concatenable()
	if err != nil {
		return fmt.Errorf("invalid tts_service.audio_format: %w", err)
	}

	switch t.Backend {
	case TTSBackendHTTP:
		if t.URL == "" {
			return ErrTTSURLMissing
		}
	case TTSBackendExec:
		if strings.TrimSpace(t.Command) == "" {
			return ErrTTSCommandMissing
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidTTSBackend, t.Backend)
	}

	return nil
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// AudioFormat is the validated artifact format.
func (c *Config) AudioFormat() audio.Format {
	format, err := audio.ParseFormat(c.TTS.AudioFormat)
	if err != nil {
		return audio.FORMAT_MP3
	}

	return format
}

// LLMOptions maps [llm] onto generator options.
func (c *Config) LLMOptions() llm.Options {
	key := c.LLM.GeminiAPIKey
	if c.LLM.Provider == llm.ProviderOpenAI {
		key = c.LLM.OpenAIAPIKey
	}

	return llm.Options{
		Provider:    c.LLM.Provider,
		Model:       c.LLM.Model,
		Temperature: c.LLM.Temperature,
		APIKey:      key,
		BaseURL:     c.LLM.BaseURL,
		Timeout:     seconds(c.LLM.TimeoutSeconds),
	}
}

// VoiceOverrides converts [voices.<language>] tables for voices.NewRegistry.
func (c *Config) VoiceOverrides() map[string]voices.Pair {
	overrides := make(map[string]voices.Pair, len(c.Voices))

	for language, voice := range c.Voices {
		overrides[language] = voices.Pair{
			First:  voices.Persona{DisplayName: voice.FirstHost, VoiceID: voice.FirstVoice},
			Second: voices.Persona{DisplayName: voice.SecondHost, VoiceID: voice.SecondVoice},
		}
	}

	return overrides
}

// S3Options maps [publish] onto the S3 publisher options.
func (c *Config) S3Options() publish.S3Options {
	return publish.S3Options{
		Bucket:          c.Publish.S3Bucket,
		Region:          c.Publish.S3Region,
		AccessKeyID:     c.Publish.AccessKeyID,
		SecretAccessKey: c.Publish.SecretAccessKey,
		Endpoint:        c.Publish.S3Endpoint,
		UsePathStyle:    c.Publish.S3UsePathStyle,
	}
}

// StageTimeout is the per-stage wall-clock limit.
func (c *Config) StageTimeout() time.Duration {
	return seconds(c.Pipeline.StageTimeoutSeconds)
}

// LinkExpiry is how long published links stay valid.
func (c *Config) LinkExpiry() time.Duration {
	return seconds(c.Publish.LinkExpirySeconds)
}

// ShutdownTimeout bounds graceful shutdown.
func (c *Config) ShutdownTimeout() time.Duration {
	return seconds(c.Server.ShutdownTimeoutSeconds)
}

// TTSTimeout bounds a single synthesis request.
func (c *Config) TTSTimeout() time.Duration {
	return seconds(c.TTS.TimeoutSeconds)
}

// MaxUploadBytes caps an uploaded document.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMB) << 20
}

func seconds(value int) time.Duration {
	return time.Duration(value) * time.Second
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func orDefaultInt(value, fallback int) int {
	if value == 0 {
		return fallback
	}

	return value
}
