package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/Zuzuna54/fintech-app-demo/pkg/log"
)

// Duration is a time.Duration that marshals as a string like "30m".
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: bad duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Config is the top-level configuration loaded from file and env.
type Config struct {
	// DatabaseURL is the Postgres connection string for the ledger.
	DatabaseURL string `json:"databaseUrl"`
	// DataDir holds the queue's Pebble database.
	DataDir string `json:"dataDir"`
	// HTTPAddr is the listen address of the payments API.
	HTTPAddr string `json:"httpAddr"`
	// QueueName scopes the queue keyspace inside DataDir.
	QueueName string `json:"queueName"`

	// Workers is the number of concurrent settlement workers.
	Workers int `json:"workers"`
	// MaxRetries is the per-payment retry budget before dead-lettering.
	MaxRetries int `json:"maxRetries"`
	// VisibilityTimeout is how long a leased item stays invisible before the
	// reaper may return it to pending.
	VisibilityTimeout Duration `json:"visibilityTimeout"`
	// ReapInterval is the period of the stale-work reaper.
	ReapInterval Duration `json:"reapInterval"`
	// MonitorInterval is the period of the queue depth monitor.
	MonitorInterval Duration `json:"monitorInterval"`

	// Fsync selects the queue WAL policy: "always", "interval", or "never".
	Fsync string `json:"fsync"`

	Log log.Config `json:"log"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		DatabaseURL:       "postgres://localhost:5432/fintech?sslmode=disable",
		DataDir:           DefaultDataDir(),
		HTTPAddr:          ":8080",
		QueueName:         "payments",
		Workers:           4,
		MaxRetries:        3,
		VisibilityTimeout: Duration(30 * time.Minute),
		ReapInterval:      Duration(5 * time.Minute),
		MonitorInterval:   Duration(time.Minute),
		Fsync:             "always",
		Log:               log.Config{Level: "info", Format: "text"},
	}
}

// Load reads configuration from a JSON file over the defaults. An empty path
// returns the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
