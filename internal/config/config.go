package config

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DeviceConfig is one NVR entry from the inventory file.
type DeviceConfig struct {
	IP       string `yaml:"ip"`
	Username string `yaml:"user"`
}

// MailConfig selects and configures the notification channel.
type MailConfig struct {
	Channel    string   `yaml:"channel"` // smtp, resend, webhook or empty to disable
	Recipients []string `yaml:"recipients"`
	From       string   `yaml:"from"`

	SMTPHost string `yaml:"smtp_host"`
	SMTPPort int    `yaml:"smtp_port"`
	SMTPUser string `yaml:"smtp_user"`
	SMTPPass string `yaml:"-"`

	ResendAPIKey string `yaml:"-"`
	WebhookURL   string `yaml:"webhook_url"`
}

// Config is the static process configuration. The three alert settings in
// Defaults seed the runtime settings store and are mutable afterwards; the
// rest requires a restart.
type Config struct {
	DatabaseURL     string
	HTTPAddr        string
	Devices         []DeviceConfig `yaml:"devices"`
	NVRPassword     string
	CameraNamesFile string `yaml:"camera_names_file"`

	PollInterval  time.Duration `yaml:"-"`
	ConfirmChecks int           `yaml:"confirm_checks"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryBackoff  time.Duration `yaml:"-"`
	QueryTimeout  time.Duration `yaml:"-"`

	Mail     MailConfig `yaml:"mail"`
	Defaults Settings   `yaml:"alerts"`
}

// Load reads configuration from the yaml file named by CAMWATCH_CONFIG (if
// set) and then applies environment overrides.
func Load() (Config, error) {
	cfg := Config{
		DatabaseURL:     getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:        getenvDefault("HTTP_ADDR", ":8080"),
		NVRPassword:     os.Getenv("NVR_SHARED_PASSWORD"),
		CameraNamesFile: getenvDefault("CAMERA_NAME_FILE", "camera_names.csv"),
		PollInterval:    getenvDuration("POLL_INTERVAL", time.Minute),
		ConfirmChecks:   getenvIntDefault("CONFIRM_CHECKS", 2),
		RetryAttempts:   getenvIntDefault("DEVICE_RETRY_ATTEMPTS", 3),
		RetryBackoff:    getenvDuration("DEVICE_RETRY_BACKOFF", 2*time.Second),
		QueryTimeout:    getenvDuration("DEVICE_QUERY_TIMEOUT", 10*time.Second),
		Defaults:        DefaultSettings(),
	}

	if path := os.Getenv("CAMWATCH_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if raw := os.Getenv("NVR_LIST"); raw != "" {
		cfg.Devices = cfg.Devices[:0]
		for _, item := range splitCSV(raw) {
			ip, user := item, "admin"
			if at := strings.IndexByte(item, '@'); at >= 0 {
				user, ip = item[:at], item[at+1:]
			}
			cfg.Devices = append(cfg.Devices, DeviceConfig{IP: ip, Username: user})
		}
	}

	cfg.Mail.Channel = getenvDefault("MAIL_CHANNEL", cfg.Mail.Channel)
	if raw := os.Getenv("MAIL_RECIPIENTS"); raw != "" {
		cfg.Mail.Recipients = splitCSV(raw)
	}
	cfg.Mail.From = getenvDefault("MAIL_FROM", cfg.Mail.From)
	cfg.Mail.SMTPHost = getenvDefault("MAIL_SERVER", cfg.Mail.SMTPHost)
	if port := getenvIntDefault("MAIL_PORT", 0); port != 0 {
		cfg.Mail.SMTPPort = port
	}
	cfg.Mail.SMTPUser = getenvDefault("MAIL_USER", cfg.Mail.SMTPUser)
	cfg.Mail.SMTPPass = os.Getenv("MAIL_PASS")
	cfg.Mail.ResendAPIKey = os.Getenv("RESEND_API_KEY")
	cfg.Mail.WebhookURL = getenvDefault("ALERT_WEBHOOK_URL", cfg.Mail.WebhookURL)

	if v := os.Getenv("FIRST_ALERT_DELAY_MINUTES"); v != "" {
		cfg.Defaults.FirstAlertDelayMinutes = atoiDefault(v, cfg.Defaults.FirstAlertDelayMinutes)
	}
	if v := os.Getenv("ALERT_FREQUENCY_MINUTES"); v != "" {
		cfg.Defaults.AlertFrequencyMinutes = atoiDefault(v, cfg.Defaults.AlertFrequencyMinutes)
	}
	if v := os.Getenv("MUTE_AFTER_N_ALERTS"); v != "" {
		cfg.Defaults.MuteAfterNAlerts = atoiDefault(v, cfg.Defaults.MuteAfterNAlerts)
	}

	return cfg, cfg.Validate()
}

// Validate checks static config invariants.
func (c Config) Validate() error {
	if len(c.Devices) == 0 {
		return errors.New("config: no devices configured")
	}
	for i, device := range c.Devices {
		if device.IP == "" {
			return fmt.Errorf("config: device %d: empty ip", i)
		}
		if device.Username == "" {
			return fmt.Errorf("config: device %d: empty user", i)
		}
	}
	if c.NVRPassword == "" {
		return errors.New("config: NVR_SHARED_PASSWORD is required")
	}
	if c.PollInterval <= 0 {
		return errors.New("config: poll interval must be positive")
	}
	if c.ConfirmChecks < 1 {
		return errors.New("config: confirm checks must be at least 1")
	}
	if c.RetryAttempts < 1 {
		return errors.New("config: retry attempts must be at least 1")
	}
	return c.Defaults.Validate()
}

// LoadCameraNames reads the ip,name CSV mapping. A missing file is not an
// error: cameras then fall back to channel-based names.
func LoadCameraNames(path string) (map[string]string, error) {
	names := make(map[string]string)
	if path == "" {
		return names, nil
	}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return names, nil
		}
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	for i, record := range records {
		if i == 0 || len(record) < 2 {
			continue // header
		}
		ip := strings.TrimSpace(record[0])
		name := strings.TrimSpace(record[1])
		if ip != "" && name != "" {
			names[ip] = name
		}
	}
	return names, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return atoiDefault(value, fallback)
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func atoiDefault(value string, fallback int) int {
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
