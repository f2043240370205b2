package environment

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/programme-lv/forkbench/internal/payload"
	"github.com/programme-lv/forkbench/internal/xdg"
)

const AppName = "forkbench"

const (
	SinkTerm = "term"
	SinkNats = "nats"
	SinkSqs  = "sqs"
)

var knownSinks = mapset.NewSet(SinkTerm, SinkNats, SinkSqs)

type Config struct {
	BlobPath     string   `toml:"blob_path"`
	BlobSha256   string   `toml:"blob_sha256"`
	TaskInput    []int64  `toml:"task_input"`
	TimeoutMs    int64    `toml:"timeout_ms"`
	ChildCommand []string `toml:"child_command"`
	Compress     bool     `toml:"compress"`
	Sinks        []string `toml:"sinks"`

	Log  LogConfig  `toml:"log"`
	Nats NatsConfig `toml:"nats"`
	Sqs  SqsConfig  `toml:"sqs"`
}

type LogConfig struct {
	Level   string `toml:"level"`
	NoColor bool   `toml:"no_color"`
}

type NatsConfig struct {
	URL     string `toml:"url"`
	Subject string `toml:"subject"`
}

type SqsConfig struct {
	QueueURL string `toml:"queue_url"`
	Region   string `toml:"region"`
	Profile  string `toml:"profile"`
}

func Default() *Config {
	return &Config{
		BlobPath:  "1.mp4",
		TaskInput: []int64{24, 19, 48, 30},
		TimeoutMs: 30_000,
		Sinks:     []string{SinkTerm},
		Log:       LogConfig{Level: "info"},
		Nats:      NatsConfig{Subject: "forkbench.reports"},
	}
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// DefaultConfigPath returns $XDG_CONFIG_HOME/forkbench/config.toml.
func DefaultConfigPath() string {
	return xdg.NewXDGDirs().AppConfigFile(AppName, "config.toml")
}

// Load layers the TOML file at path, an optional .env file and the process
// environment over the defaults. A missing file is only an error when
// required is set.
func Load(path string, required bool) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse TOML config %s: %w", path, err)
			}
		case required || !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setString("FORKBENCH_BLOB", &c.BlobPath)
	setString("FORKBENCH_BLOB_SHA256", &c.BlobSha256)
	setString("FORKBENCH_LOG_LEVEL", &c.Log.Level)
	setString("NATS_URL", &c.Nats.URL)
	setString("NATS_SUBJECT", &c.Nats.Subject)
	setString("SQS_QUEUE_URL", &c.Sqs.QueueURL)
	setString("SQS_REGION", &c.Sqs.Region)
	setString("SQS_PROFILE", &c.Sqs.Profile)

	if v, ok := os.LookupEnv("FORKBENCH_TASK_INPUT"); ok {
		input, err := payload.ParseTaskInput(v)
		if err != nil {
			return fmt.Errorf("FORKBENCH_TASK_INPUT: %w", err)
		}
		c.TaskInput = input
	}
	if v, ok := os.LookupEnv("FORKBENCH_TIMEOUT_MS"); ok {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("FORKBENCH_TIMEOUT_MS: %w", err)
		}
		c.TimeoutMs = ms
	}
	if v, ok := os.LookupEnv("FORKBENCH_COMPRESS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("FORKBENCH_COMPRESS: %w", err)
		}
		c.Compress = b
	}
	if v, ok := os.LookupEnv("FORKBENCH_SINKS"); ok {
		c.Sinks = SplitList(v)
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		c.Log.NoColor = true
	}
	return nil
}

func (c *Config) Validate() error {
	if c.BlobPath == "" {
		return errors.New("blob_path is required")
	}
	if c.TimeoutMs < 0 {
		return fmt.Errorf("timeout_ms must not be negative, got %d", c.TimeoutMs)
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}

	sinks := mapset.NewSet(c.Sinks...)
	if unknown := sinks.Difference(knownSinks); unknown.Cardinality() > 0 {
		return fmt.Errorf("unknown sinks: %v", unknown.ToSlice())
	}
	if sinks.Contains(SinkNats) && c.Nats.URL == "" {
		return errors.New("nats sink requires nats.url")
	}
	if sinks.Contains(SinkNats) && c.Nats.Subject == "" {
		return errors.New("nats sink requires nats.subject")
	}
	if sinks.Contains(SinkSqs) && c.Sqs.QueueURL == "" {
		return errors.New("sqs sink requires sqs.queue_url")
	}
	return nil
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(s string) []string {
	res := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			res = append(res, part)
		}
	}
	return res
}
