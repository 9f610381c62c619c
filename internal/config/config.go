package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid config")

// Pins names the GPIO lines as registered with periph's gpioreg.
type Pins struct {
	CardDetect string `yaml:"card_detect"`
	Stop       string `yaml:"stop"`
	HardStop   string `yaml:"hard_stop"`
	Red        string `yaml:"red"`
	Yellow     string `yaml:"yellow"`
	Green      string `yaml:"green"`
	Relay      string `yaml:"relay"`
	RFIDReset  string `yaml:"rfid_reset"`
	RFIDIRQ    string `yaml:"rfid_irq"`
}

type Config struct {
	// Oracle
	ServerURL   string        `yaml:"server_url"`
	Token       string        `yaml:"token"`
	Group       string        `yaml:"group"`
	MachineID   string        `yaml:"machine_id"`
	AuthTimeout time.Duration `yaml:"auth_timeout"`

	// Behaviour
	RequireCard        bool          `yaml:"require_card"`
	TickInterval       time.Duration `yaml:"tick_interval"`
	StopFilter         time.Duration `yaml:"stop_filter"`
	RemovalFilter      time.Duration `yaml:"removal_filter"`
	SessionExtendTicks int           `yaml:"session_extend_ticks"` // 0 = never

	// Hardware
	Pins            Pins          `yaml:"pins"`
	SPIPort         string        `yaml:"spi_port"` // "" = first available
	RFIDReadTimeout time.Duration `yaml:"rfid_read_timeout"`
	HardwareRetries int           `yaml:"hardware_retries"`

	// Journal
	DBPath             string `yaml:"db_path"`
	RetentionDays      int    `yaml:"retention_days"` // 0 = keep forever
	PruneIntervalHours int    `yaml:"prune_interval_hours"`

	// Status surfaces ("" disables)
	HTTPAddr   string `yaml:"http_addr"`
	HealthAddr string `yaml:"health_addr"`
}

func Defaults() Config {
	return Config{
		AuthTimeout: 3 * time.Second,

		RequireCard:   true,
		TickInterval:  100 * time.Millisecond,
		StopFilter:    100 * time.Millisecond,
		RemovalFilter: 3 * time.Second,

		Pins: Pins{
			CardDetect: "GPIO17",
			Stop:       "GPIO27",
			HardStop:   "GPIO22",
			Red:        "GPIO5",
			Yellow:     "GPIO6",
			Green:      "GPIO13",
			Relay:      "GPIO26",
			RFIDReset:  "GPIO25",
			RFIDIRQ:    "GPIO24",
		},
		RFIDReadTimeout: 50 * time.Millisecond,
		HardwareRetries: 5,

		DBPath:             "./data/station.db",
		RetentionDays:      90,
		PruneIntervalHours: 6,

		HTTPAddr: ":8080",
	}
}

// Load reads a YAML file over the defaults.  Keys absent from the file keep
// their default values.
func Load(path string) (Config, error) {
	cfg := Defaults()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// FromEnv builds the station config.  When PORTUNUS_CONFIG names a YAML file
// it is loaded first; PORTUNUS_* variables override it.
func FromEnv() (Config, error) {
	cfg := Defaults()
	if path := strings.TrimSpace(os.Getenv("PORTUNUS_CONFIG")); path != "" {
		var err error
		if cfg, err = Load(path); err != nil {
			return cfg, err
		}
	}

	cfg.ServerURL = getenvDefault("PORTUNUS_SERVER_URL", cfg.ServerURL)
	cfg.Token = getenvDefault("PORTUNUS_TOKEN", cfg.Token)
	cfg.Group = getenvDefault("PORTUNUS_GROUP", cfg.Group)
	cfg.MachineID = getenvDefault("PORTUNUS_MACHINE_ID", cfg.MachineID)
	cfg.AuthTimeout = getenvDuration("PORTUNUS_AUTH_TIMEOUT", cfg.AuthTimeout)

	cfg.RequireCard = getenvBool("PORTUNUS_REQUIRE_CARD", cfg.RequireCard)
	cfg.TickInterval = getenvDuration("PORTUNUS_TICK_INTERVAL", cfg.TickInterval)
	cfg.StopFilter = getenvDuration("PORTUNUS_STOP_FILTER", cfg.StopFilter)
	cfg.RemovalFilter = getenvDuration("PORTUNUS_REMOVAL_FILTER", cfg.RemovalFilter)
	cfg.SessionExtendTicks = getenvInt("PORTUNUS_SESSION_EXTEND_TICKS", cfg.SessionExtendTicks)

	p := &cfg.Pins
	p.CardDetect = getenvDefault("PORTUNUS_PIN_CARD_DETECT", p.CardDetect)
	p.Stop = getenvDefault("PORTUNUS_PIN_STOP", p.Stop)
	p.HardStop = getenvDefault("PORTUNUS_PIN_HARD_STOP", p.HardStop)
	p.Red = getenvDefault("PORTUNUS_PIN_RED", p.Red)
	p.Yellow = getenvDefault("PORTUNUS_PIN_YELLOW", p.Yellow)
	p.Green = getenvDefault("PORTUNUS_PIN_GREEN", p.Green)
	p.Relay = getenvDefault("PORTUNUS_PIN_RELAY", p.Relay)
	p.RFIDReset = getenvDefault("PORTUNUS_PIN_RFID_RESET", p.RFIDReset)
	p.RFIDIRQ = getenvDefault("PORTUNUS_PIN_RFID_IRQ", p.RFIDIRQ)
	cfg.SPIPort = getenvDefault("PORTUNUS_SPI_PORT", cfg.SPIPort)
	cfg.RFIDReadTimeout = getenvDuration("PORTUNUS_RFID_READ_TIMEOUT", cfg.RFIDReadTimeout)
	cfg.HardwareRetries = getenvInt("PORTUNUS_HARDWARE_RETRIES", cfg.HardwareRetries)

	cfg.DBPath = getenvDefault("PORTUNUS_DB_PATH", cfg.DBPath)
	cfg.RetentionDays = getenvInt("PORTUNUS_RETENTION_DAYS", cfg.RetentionDays)
	cfg.PruneIntervalHours = getenvInt("PORTUNUS_PRUNE_INTERVAL_HOURS", cfg.PruneIntervalHours)

	cfg.HTTPAddr = getenvDefault("PORTUNUS_HTTP_ADDR", cfg.HTTPAddr)
	cfg.HealthAddr = getenvDefault("PORTUNUS_HEALTH_ADDR", cfg.HealthAddr)

	return cfg, nil
}

// Validate reports the first problem found.  It does not modify cfg.
func (c Config) Validate() error {
	required := []struct{ name, v string }{
		{"server_url", c.ServerURL},
		{"token", c.Token},
		{"group", c.Group},
		{"machine_id", c.MachineID},
	}
	for _, r := range required {
		if strings.TrimSpace(r.v) == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalid, r.name)
		}
	}

	durations := []struct {
		name string
		d    time.Duration
	}{
		{"auth_timeout", c.AuthTimeout},
		{"tick_interval", c.TickInterval},
		{"stop_filter", c.StopFilter},
		{"removal_filter", c.RemovalFilter},
		{"rfid_read_timeout", c.RFIDReadTimeout},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalid, d.name)
		}
	}
	if c.SessionExtendTicks < 0 {
		return fmt.Errorf("%w: session_extend_ticks must not be negative", ErrInvalid)
	}
	if c.HardwareRetries < 1 {
		return fmt.Errorf("%w: hardware_retries must be at least 1", ErrInvalid)
	}

	owner := make(map[string]string)
	for _, p := range c.Pins.named() {
		if strings.TrimSpace(p.pin) == "" {
			return fmt.Errorf("%w: pins.%s is required", ErrInvalid, p.role)
		}
		if prev, ok := owner[p.pin]; ok {
			return fmt.Errorf("%w: pin %s assigned to both %s and %s", ErrInvalid, p.pin, prev, p.role)
		}
		owner[p.pin] = p.role
	}
	return nil
}

type namedPin struct{ role, pin string }

func (p Pins) named() []namedPin {
	return []namedPin{
		{"card_detect", p.CardDetect},
		{"stop", p.Stop},
		{"hard_stop", p.HardStop},
		{"red", p.Red},
		{"yellow", p.Yellow},
		{"green", p.Green},
		{"relay", p.Relay},
		{"rfid_reset", p.RFIDReset},
		{"rfid_irq", p.RFIDIRQ},
	}
}

// Oracle configures the development oracle binary.
type Oracle struct {
	HTTPAddr       string
	Token          string
	KnownMachines  []string
	AllowAll       bool
	AllowedCardIDs []string
}

func OracleFromEnv() Oracle {
	return Oracle{
		HTTPAddr:       getenvDefault("PORTUNUS_ORACLE_ADDR", ":8090"),
		Token:          strings.TrimSpace(os.Getenv("PORTUNUS_ORACLE_TOKEN")),
		KnownMachines:  splitCSV(os.Getenv("PORTUNUS_KNOWN_MACHINES")),
		AllowAll:       getenvBool("PORTUNUS_ALLOW_ALL", false),
		AllowedCardIDs: splitCSV(os.Getenv("PORTUNUS_ALLOWED_CARD_IDS")),
	}
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func getenvBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return def
	}
	return d
}

func splitCSV(v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
