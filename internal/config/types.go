package config

type Config struct {
	Server   ServerConfig   `json:"server"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`
	Dispatch DispatchConfig `json:"dispatch,omitempty"`
	Notifier NotifierConfig `json:"notifier,omitempty"`
}

// ServerConfig controls the HTTP API.
//
// BaseURL is the externally reachable root of this service; the dispatch
// queue posts reminder callbacks to <base_url>/api/tasks/notify. Secret
// authenticates those callbacks (shared-secret header) and must be set.
type ServerConfig struct {
	Addr    string `json:"addr,omitempty"` // default: "127.0.0.1:8080"
	BaseURL string `json:"base_url"`
	Secret  string `json:"secret"` // do not log

	// Server timeouts (Go duration strings).
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./guri.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

// DispatchConfig controls the built-in delayed-dispatch queue.
//
// All durations are Go duration strings (e.g. "30s", "1m").
//
// Defaults (when fields are omitted/zero):
//   - sweep_every: "1m"
//   - retry_max: 5
//   - retry_base: "30s"
//   - deliver_timeout: "10s"
type DispatchConfig struct {
	SweepEvery     string `json:"sweep_every,omitempty"`
	RetryMax       int    `json:"retry_max,omitempty"`
	RetryBase      string `json:"retry_base,omitempty"`
	DeliverTimeout string `json:"deliver_timeout,omitempty"`
}

// NotifierConfig controls reminder delivery channels. Email is the primary
// channel; the Telegram mirror is optional.
type NotifierConfig struct {
	Email    EmailConfig    `json:"email"`
	Telegram TelegramConfig `json:"telegram,omitempty"`
}

type EmailConfig struct {
	Enabled    bool   `json:"enabled"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Username   string `json:"username,omitempty"`
	Password   string `json:"password,omitempty"` // do not log
	From       string `json:"from"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token,omitempty"`
	ChatID  int64  `json:"chat_id,omitempty"`
}
