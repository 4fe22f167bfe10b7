package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v6"
)

type SearchBackend string

const (
	SearchTavily SearchBackend = "tavily"
	SearchMCP    SearchBackend = "mcp"
)

type Config struct {
	// Assistant
	OpenAIAPIKey      string `env:"OPENAI_API_KEY,notEmpty"`
	OpenAIBaseURL     string `env:"OPENAI_BASE_URL"`
	OpenAIAssistantID string `env:"OPENAI_ASSISTANT_ID,notEmpty"`

	// Search
	SearchBackend       SearchBackend `env:"SEARCH_BACKEND" envDefault:"tavily"`
	SearchToolName      string        `env:"SEARCH_TOOL_NAME" envDefault:"tavily_search"`
	TavilyAPIKey        string        `env:"TAVILY_API_KEY"`
	TavilyBaseURL       string        `env:"TAVILY_BASE_URL"`
	SearchMCPServerPath string        `env:"SEARCH_MCP_SERVER_PATH" envDefault:"./search-mcp-server"`

	// Run driver
	PollInterval      time.Duration `env:"POLL_INTERVAL" envDefault:"3s"`
	RunTimeout        time.Duration `env:"RUN_TIMEOUT" envDefault:"120s"`
	UnknownToolPolicy string        `env:"UNKNOWN_TOOL_POLICY" envDefault:"drop"`

	// Tasks housekeeping
	TaskTTL     time.Duration `env:"TASK_TTL" envDefault:"1h"`
	JanitorSpec string        `env:"JANITOR_SPEC" envDefault:"@every 10m"`
	ReportSpec  string        `env:"REPORT_SPEC" envDefault:"0 21 * * *"`

	// Telegram
	TelegramBotToken  string  `env:"TELEGRAM_BOT_TOKEN"`
	AllowedUsers      []int64 `env:"ALLOWED_USERS" envSeparator:":"`
	AdminUserID       int64   `env:"ADMIN_USER"`
	AllowlistFilePath string  `env:"ALLOWLIST_FILE_PATH" envDefault:"data/allowlist.json"`
	PendingFilePath   string  `env:"PENDING_FILE_PATH" envDefault:"data/pending.json"`

	// HTTP
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	// Storage
	LogFilePath string `env:"LOG_FILE_PATH" envDefault:"logs/interactions.jsonl"`

	// Export
	ConvertAPISecret     string `env:"CONVERT_API_SECRET"`
	ConvertAPIBaseURL    string `env:"CONVERT_API_BASE_URL"`
	DriveCredentialsFile string `env:"DRIVE_CREDENTIALS_FILE"`
	DriveTokenFile       string `env:"DRIVE_TOKEN_FILE" envDefault:"data/drive-token.json"`
	DriveFolderID        string `env:"DRIVE_FOLDER_ID"`
}

// Load parses the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func New() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("%v", err)
	}
	return cfg
}

func (c *Config) Validate() error {
	switch c.SearchBackend {
	case SearchTavily:
		if c.TavilyAPIKey == "" {
			return fmt.Errorf("TAVILY_API_KEY is required for search backend %q", c.SearchBackend)
		}
	case SearchMCP:
	default:
		return fmt.Errorf("unknown SEARCH_BACKEND %q", c.SearchBackend)
	}
	if c.PollInterval <= 0 || c.RunTimeout <= 0 {
		return fmt.Errorf("POLL_INTERVAL and RUN_TIMEOUT must be positive")
	}
	if c.SearchToolName == "" {
		return fmt.Errorf("SEARCH_TOOL_NAME must not be empty")
	}
	return nil
}

// ExportEnabled reports whether DOCX export is configured.
func (c *Config) ExportEnabled() bool {
	return c.ConvertAPISecret != ""
}

// DriveEnabled reports whether exported documents go to Google Drive.
func (c *Config) DriveEnabled() bool {
	return c.DriveCredentialsFile != ""
}
