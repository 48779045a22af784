package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Run       RunConfig       `yaml:"run" mapstructure:"run"`
	Detectors DetectorsConfig `yaml:"detectors" mapstructure:"detectors"`
	Scorer    ScorerConfig    `yaml:"scorer" mapstructure:"scorer"`
	Reference ReferenceConfig `yaml:"reference" mapstructure:"reference"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
}

// StoreConfig configures the run-ledger backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	// Pool tuning applies to the postgres driver only.
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// RunConfig configures run working directories and the run-level deadline.
type RunConfig struct {
	WorkDir           string `yaml:"working_directory" mapstructure:"working_directory"`
	TimeoutSecs       int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	KeepIntermediates bool   `yaml:"keep_intermediates" mapstructure:"keep_intermediates"`
}

// DetectorsConfig configures which detectors run and how.
type DetectorsConfig struct {
	Enabled       []string `yaml:"enabled" mapstructure:"enabled"`
	ConfigDir     string   `yaml:"config_dir" mapstructure:"config_dir"`
	MaxConcurrent int      `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	TimeoutSecs   int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts   int      `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// ScorerConfig configures the ensemble classifier.
type ScorerConfig struct {
	ModelPath           string  `yaml:"model_path" mapstructure:"model_path"`
	Threshold           float64 `yaml:"threshold" mapstructure:"threshold"`
	OrtLibraryPath      string  `yaml:"ort_library_path" mapstructure:"ort_library_path"`
	InputName           string  `yaml:"input_name" mapstructure:"input_name"`
	OutputName          string  `yaml:"output_name" mapstructure:"output_name"`
	LowConfidenceOutput string  `yaml:"low_confidence_output" mapstructure:"low_confidence_output"`
}

// ReferenceConfig holds paths passed through unopened to the detectors.
type ReferenceConfig struct {
	FASTA      string `yaml:"fasta" mapstructure:"fasta"`
	Annotation string `yaml:"annotation" mapstructure:"annotation"`
}

// ServerConfig configures the status server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("EVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "eve.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("run.working_directory", "eve_out")
	v.SetDefault("run.timeout_secs", 0)
	v.SetDefault("run.keep_intermediates", false)
	v.SetDefault("detectors.enabled", []string{"mpileup", "freebayes", "varscan", "haplotypecaller"})
	v.SetDefault("detectors.config_dir", "config/detectors")
	v.SetDefault("detectors.max_concurrent", 0)
	v.SetDefault("detectors.timeout_secs", 3600)
	v.SetDefault("detectors.max_attempts", 1)
	v.SetDefault("scorer.threshold", 0.5)
	v.SetDefault("scorer.input_name", "input")
	v.SetDefault("scorer.output_name", "probabilities")
	v.SetDefault("server.port", 8080)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger. When logFile is non-empty,
// log output goes to both stderr and the file, mirroring the run directory's
// persistent log.
func InitLogger(cfg LogConfig, logFile string) error {
	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	zapCfg.OutputPaths = []string{"stderr"}
	if logFile != "" {
		zapCfg.OutputPaths = append(zapCfg.OutputPaths, logFile)
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
