package openai

import (
	"log/slog"
	"net/http"
	"os"
	"time"
)

// Config for the chat/completions client. The endpoint shape is shared by
// OpenAI and DeepSeek, so pointing BaseURL at either works.
type Config struct {
	APIKey      string        // if empty, falls back to env LLM_API_KEY
	BaseURL     string        // default https://api.deepseek.com
	Model       string        // e.g. "deepseek-chat"
	Temperature float32       // 0..2
	Timeout     time.Duration // http client timeout
}

type Client struct {
	cfg  Config
	http *http.Client
	log  *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("LLM_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.deepseek.com"
	}
	if cfg.Model == "" {
		cfg.Model = "deepseek-chat"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  logger,
	}
}
