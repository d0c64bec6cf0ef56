package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/YumeNoTenshi/utilwatch/internal/models"
)

// Default configuration values.
const (
	DefaultProvider         = "aws"
	DefaultRegion           = "us-east-1"
	DefaultWindowMinutes    = 10
	DefaultPeriodSeconds    = 60
	DefaultMaxInstances     = 200
	DefaultMaxDimensionScan = 25
	DefaultRowsPerCard      = 20
	DefaultSMTPPort         = 587
	DefaultListenAddr       = ":8080"
	DefaultCheckInterval    = 5 * time.Minute
)

var DefaultThresholds = models.ThresholdSet{
	CPUWarn:   70,
	CPUAlert:  90,
	MemWarn:   70,
	MemAlert:  90,
	DiskWarn:  80,
	DiskAlert: 90,
}

type Config struct {
	Provider   string
	Region     string
	GCPProject string
	GCPZone    string

	Window           time.Duration
	Period           time.Duration
	Thresholds       models.ThresholdSet
	TagKey           string
	TagValue         string
	MaxInstances     int
	MaxDimensionScan int
	RowsPerCard      int

	EnableCompute     bool
	EnableUtilization bool
	LogSeries         bool
	LogLevel          string

	TeamsWebhook string
	Mail         MailConfig

	ListenAddr     string
	CheckInterval  time.Duration
	APIKey         string
	PushgatewayURL string
}

type MailConfig struct {
	Enabled      bool
	Transport    string
	From         string
	To           string
	CC           string
	BCC          string
	Subject      string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
}

// New returns a viper instance reading the process environment and, when path
// or CONFIG_FILE is set, a YAML file with the same keys. Environment values
// win over the file. A variable set to the empty string counts as set.
func New(path string) (*viper.Viper, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.AllowEmptyEnv(true)
	setDefaults(v)

	if path == "" {
		path = v.GetString("CONFIG_FILE")
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}
	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("CLOUD_PROVIDER", DefaultProvider)
	v.SetDefault("AWS_REGION", DefaultRegion)
	v.SetDefault("WINDOW_MIN", DefaultWindowMinutes)
	v.SetDefault("PERIOD", DefaultPeriodSeconds)
	v.SetDefault("CPU_WARN", DefaultThresholds.CPUWarn)
	v.SetDefault("CPU_ALERT", DefaultThresholds.CPUAlert)
	v.SetDefault("MEM_WARN", DefaultThresholds.MemWarn)
	v.SetDefault("MEM_ALERT", DefaultThresholds.MemAlert)
	v.SetDefault("DISK_WARN", DefaultThresholds.DiskWarn)
	v.SetDefault("DISK_ALERT", DefaultThresholds.DiskAlert)
	v.SetDefault("MAX_INSTANCES", DefaultMaxInstances)
	v.SetDefault("MAX_DIMENSION_SCAN", DefaultMaxDimensionScan)
	v.SetDefault("ROWS_PER_CARD", DefaultRowsPerCard)
	v.SetDefault("ENABLE_COMPUTE", "true")
	v.SetDefault("ENABLE_EC2_UTILIZATION", "true")
	v.SetDefault("LOG_1MIN_SERIES", "true")
	v.SetDefault("ENABLE_MAIL_REPORT", "true")
	v.SetDefault("MAIL_TRANSPORT", "ses")
	v.SetDefault("SMTP_PORT", DefaultSMTPPort)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LISTEN_ADDR", DefaultListenAddr)
	v.SetDefault("CHECK_INTERVAL", DefaultCheckInterval.String())
}

// Load builds the Config once; components receive it by value and never read
// the environment themselves.
func Load(v *viper.Viper) Config {
	return Config{
		Provider:   strings.ToLower(strOr(v, "CLOUD_PROVIDER", DefaultProvider)),
		Region:     strOr(v, "AWS_REGION", DefaultRegion),
		GCPProject: str(v, "GCP_PROJECT"),
		GCPZone:    str(v, "GCP_ZONE"),

		Window: time.Duration(number(v, "WINDOW_MIN", DefaultWindowMinutes)) * time.Minute,
		Period: time.Duration(number(v, "PERIOD", DefaultPeriodSeconds)) * time.Second,
		Thresholds: models.ThresholdSet{
			CPUWarn:   float(v, "CPU_WARN", DefaultThresholds.CPUWarn),
			CPUAlert:  float(v, "CPU_ALERT", DefaultThresholds.CPUAlert),
			MemWarn:   float(v, "MEM_WARN", DefaultThresholds.MemWarn),
			MemAlert:  float(v, "MEM_ALERT", DefaultThresholds.MemAlert),
			DiskWarn:  float(v, "DISK_WARN", DefaultThresholds.DiskWarn),
			DiskAlert: float(v, "DISK_ALERT", DefaultThresholds.DiskAlert),
		},
		TagKey:           str(v, "INSTANCE_TAG_KEY"),
		TagValue:         str(v, "INSTANCE_TAG_VALUE"),
		MaxInstances:     number(v, "MAX_INSTANCES", DefaultMaxInstances),
		MaxDimensionScan: number(v, "MAX_DIMENSION_SCAN", DefaultMaxDimensionScan),
		RowsPerCard:      number(v, "ROWS_PER_CARD", DefaultRowsPerCard),

		EnableCompute:     Truthy(v.GetString("ENABLE_COMPUTE")),
		EnableUtilization: Truthy(v.GetString("ENABLE_EC2_UTILIZATION")),
		LogSeries:         Truthy(v.GetString("LOG_1MIN_SERIES")),
		LogLevel:          strOr(v, "LOG_LEVEL", "info"),

		TeamsWebhook: str(v, "TEAMS_WEBHOOK"),
		Mail: MailConfig{
			Enabled:      Truthy(v.GetString("ENABLE_MAIL_REPORT")),
			Transport:    strings.ToLower(strOr(v, "MAIL_TRANSPORT", "ses")),
			From:         str(v, "MAIL_FROM"),
			To:           v.GetString("MAIL_TO"),
			CC:           v.GetString("MAIL_CC"),
			BCC:          v.GetString("MAIL_BCC"),
			Subject:      str(v, "MAIL_SUBJECT"),
			SMTPHost:     str(v, "SMTP_HOST"),
			SMTPPort:     number(v, "SMTP_PORT", DefaultSMTPPort),
			SMTPUsername: str(v, "SMTP_USERNAME"),
			SMTPPassword: v.GetString("SMTP_PASSWORD"),
		},

		ListenAddr:     strOr(v, "LISTEN_ADDR", DefaultListenAddr),
		CheckInterval:  duration(v, "CHECK_INTERVAL", DefaultCheckInterval),
		APIKey:         v.GetString("API_KEY"),
		PushgatewayURL: str(v, "PUSHGATEWAY_URL"),
	}
}

var truthy = map[string]bool{"1": true, "true": true, "t": true, "yes": true, "y": true}

// Truthy accepts 1, true, t, yes and y in any case. Everything else is false.
func Truthy(s string) bool {
	return truthy[strings.ToLower(strings.TrimSpace(s))]
}

func str(v *viper.Viper, key string) string {
	return strings.TrimSpace(v.GetString(key))
}

// strOr is str with a fallback for blank values.
func strOr(v *viper.Viper, key, def string) string {
	if s := str(v, key); s != "" {
		return s
	}
	return def
}

// decimal parses s as a base 10 number. Hex literals are rejected.
func decimal(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if strings.ContainsAny(s, "xX") {
		return 0, false
	}
	f, err := cast.ToFloat64E(s)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func number(v *viper.Viper, key string, def int) int {
	f, ok := decimal(v.GetString(key))
	if !ok || f != math.Trunc(f) {
		return def
	}
	return int(f)
}

func float(v *viper.Viper, key string, def float64) float64 {
	f, ok := decimal(v.GetString(key))
	if !ok {
		return def
	}
	return f
}

func duration(v *viper.Viper, key string, def time.Duration) time.Duration {
	d, err := cast.ToDurationE(strings.TrimSpace(v.GetString(key)))
	if err != nil || d <= 0 {
		return def
	}
	return d
}
