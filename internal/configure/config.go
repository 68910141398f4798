package configure

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func checkErr(err error) {
	if err != nil {
		zap.S().Fatalw("config",
			"error", err,
		)
	}
}

func New() *Config {
	initLogging("info")

	config := viper.New()

	// Default config
	b, _ := json.Marshal(Defaults())
	tmp := viper.New()
	defaultConfig := bytes.NewReader(b)
	tmp.SetConfigType("json")
	checkErr(tmp.ReadConfig(defaultConfig))
	checkErr(config.MergeConfigMap(tmp.AllSettings()))

	pflag.String("config", "config.yaml", "Config file location")
	pflag.Bool("noheader", false, "Disable the startup header")

	pflag.Parse()
	checkErr(config.BindPFlags(pflag.CommandLine))

	// File
	config.SetConfigFile(config.GetString("config"))
	config.AddConfigPath(".")
	if err := config.ReadInConfig(); err == nil {
		checkErr(config.MergeInConfig())
	}

	// Environment
	config.SetEnvPrefix("IR")
	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AllowEmptyEnv(true)
	config.AutomaticEnv()

	bindEnvs(config, Config{})

	// Print final config
	c := &Config{}
	checkErr(config.Unmarshal(&c))

	initLogging(c.Level)

	return c
}

func bindEnvs(config *viper.Viper, iface interface{}, parts ...string) {
	ifv := reflect.ValueOf(iface)
	ift := reflect.TypeOf(iface)
	for i := 0; i < ift.NumField(); i++ {
		v := ifv.Field(i)
		t := ift.Field(i)
		tv, ok := t.Tag.Lookup("mapstructure")
		if !ok {
			continue
		}
		switch v.Kind() {
		case reflect.Struct:
			bindEnvs(config, v.Interface(), append(parts, tv)...)
		default:
			_ = config.BindEnv(strings.Join(append(parts, tv), "."))
		}
	}
}

type Config struct {
	Level      string `mapstructure:"level" json:"level"`
	ConfigFile string `mapstructure:"config" json:"config"`
	NoHeader   bool   `mapstructure:"noheader" json:"noheader"`

	Resize struct {
		DebounceMS     int     `mapstructure:"debounce_ms" json:"debounce_ms"`
		MaxPixels      int64   `mapstructure:"max_pixels" json:"max_pixels"`
		DefaultFormat  string  `mapstructure:"default_format" json:"default_format"`
		DefaultQuality float64 `mapstructure:"default_quality" json:"default_quality"`
		CO2GramsPerMB  float64 `mapstructure:"co2_grams_per_mb" json:"co2_grams_per_mb"`
	} `mapstructure:"resize" json:"resize"`

	API struct {
		Bind        string `mapstructure:"bind" json:"bind"`
		Enabled     bool   `mapstructure:"enabled" json:"enabled"`
		MaxBodySize int    `mapstructure:"max_body_size" json:"max_body_size"`
	} `mapstructure:"api" json:"api"`

	Health struct {
		Bind    string `mapstructure:"bind" json:"bind"`
		Enabled bool   `mapstructure:"enabled" json:"enabled"`
	} `mapstructure:"health" json:"health"`

	S3 struct {
		Enabled      bool   `mapstructure:"enabled" json:"enabled"`
		Region       string `mapstructure:"region" json:"region"`
		Endpoint     string `mapstructure:"endpoint" json:"endpoint"`
		AccessToken  string `mapstructure:"access_token" json:"access_token"`
		SecretKey    string `mapstructure:"secret_key" json:"secret_key"`
		Bucket       string `mapstructure:"bucket" json:"bucket"`
		Prefix       string `mapstructure:"prefix" json:"prefix"`
		ACL          string `mapstructure:"acl" json:"acl"`
		CacheControl string `mapstructure:"cache_control" json:"cache_control"`
	} `mapstructure:"s3" json:"s3"`

	Analysis struct {
		Enabled        bool   `mapstructure:"enabled" json:"enabled"`
		APIKey         string `mapstructure:"api_key" json:"api_key"`
		BaseURL        string `mapstructure:"base_url" json:"base_url"`
		Model          string `mapstructure:"model" json:"model"`
		TimeoutSeconds int    `mapstructure:"timeout_seconds" json:"timeout_seconds"`
	} `mapstructure:"analysis" json:"analysis"`

	Redis struct {
		Enabled    bool   `mapstructure:"enabled" json:"enabled"`
		Addr       string `mapstructure:"addr" json:"addr"`
		Username   string `mapstructure:"username" json:"username"`
		Password   string `mapstructure:"password" json:"password"`
		DB         int    `mapstructure:"db" json:"db"`
		Prefix     string `mapstructure:"prefix" json:"prefix"`
		TTLSeconds int    `mapstructure:"ttl_seconds" json:"ttl_seconds"`
	} `mapstructure:"redis" json:"redis"`

	Monitoring struct {
		Bind    string `mapstructure:"bind" json:"bind"`
		Enabled bool   `mapstructure:"enabled" json:"enabled"`
		Labels  Labels `mapstructure:"labels" json:"labels"`
	} `mapstructure:"monitoring" json:"monitoring"`
}

// Defaults is the configuration used before the file, flags and environment
// are applied.
func Defaults() Config {
	c := Config{
		Level:      "info",
		ConfigFile: "config.yaml",
	}

	c.Resize.DebounceMS = 400
	c.Resize.MaxPixels = 100_000_000
	c.Resize.DefaultFormat = "jpeg"
	c.Resize.DefaultQuality = 0.8
	c.Resize.CO2GramsPerMB = 0.81 * 442 / 1024

	c.API.Enabled = true
	c.API.Bind = "0.0.0.0:3000"
	c.API.MaxBodySize = 64 << 20

	c.Health.Bind = "0.0.0.0:3001"
	c.Monitoring.Bind = "0.0.0.0:9100"

	c.Analysis.Model = "gpt-4o-mini"
	c.Analysis.TimeoutSeconds = 30

	c.Redis.Prefix = "image-resizer:analysis:"
	c.Redis.TTLSeconds = 86400

	return c
}

type Labels []struct {
	Key   string `mapstructure:"key" json:"key"`
	Value string `mapstructure:"value" json:"value"`
}

func (l Labels) ToPrometheus() prometheus.Labels {
	mp := prometheus.Labels{}

	for _, v := range l {
		mp[v.Key] = v.Value
	}

	return mp
}
