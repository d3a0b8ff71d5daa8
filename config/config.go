package config

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/NvTimLiu/spark-rapids-tools/internal/errors"
)

const EntityConfig = "config"

// EmptyPath means no config file was supplied; defaults and flags apply.
const EmptyPath = ""

const (
	OrderAscending  = "asc"
	OrderDescending = "desc"
)

// Config is the full run configuration. Flag values override file values;
// both override the defaults set here.
type Config struct {
	OutputDirectory   string `mapstructure:"output_directory"`
	Platform          string `mapstructure:"platform"`
	Order             string `mapstructure:"order"`
	Limit             int    `mapstructure:"limit"`
	PerSQL            bool   `mapstructure:"per_sql"`
	ReportReadSchema  bool   `mapstructure:"report_read_schema"`
	MlFunctions       bool   `mapstructure:"ml_functions"`
	ApplicationName   string `mapstructure:"application_name"`
	SpeedupFactorFile string `mapstructure:"speedup_factor_file"`
	TypeSupportFile   string `mapstructure:"type_support_file"`
	MaxWorkers        int    `mapstructure:"max_workers"`

	Incremental IncrementalConfig `mapstructure:"incremental"`
}

// IncrementalConfig holds the live-session output rolling knobs.
type IncrementalConfig struct {
	MaxSQLPerFile  int `mapstructure:"max_sql_per_file"`
	MaxRolledFiles int `mapstructure:"max_rolled_files"`
}

// Load reads the optional YAML config file and applies defaults.
func Load(filePath string) (*Config, error) {
	v := viper.New()
	v.SetDefault("output_directory", ".")
	v.SetDefault("platform", "onprem")
	v.SetDefault("order", OrderDescending)
	v.SetDefault("limit", -1)
	v.SetDefault("max_workers", 4)
	v.SetDefault("incremental.max_sql_per_file", 100)
	v.SetDefault("incremental.max_rolled_files", 10)

	if filePath != EmptyPath {
		v.SetConfigFile(filePath)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.InvalidArgument(EntityConfig, "unable to read "+filePath+": "+err.Error())
		}
	}

	cfg := &Config{}
	decode := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(cfg, decode); err != nil {
		return nil, errors.InvalidArgument(EntityConfig, "unable to decode config: "+err.Error())
	}
	return cfg, nil
}

// Validate rejects malformed configuration before any log is processed.
func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.OutputDirectory, validation.Required),
		validation.Field(&c.Platform, validation.Required),
		validation.Field(&c.Order, validation.Required, validation.In(OrderAscending, OrderDescending)),
		validation.Field(&c.MaxWorkers, validation.Required, validation.Min(1)),
	)
	if err != nil {
		return errors.InvalidArgument(EntityConfig, err.Error())
	}
	return nil
}
