package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the ingestion server.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	S3       S3Config       `mapstructure:"s3"`
	GCS      GCSConfig      `mapstructure:"gcs"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
}

type ServerConfig struct {
	Address     string   `mapstructure:"address"`
	MaxUploadMB int64    `mapstructure:"max_upload_mb"`
	LogMode     string   `mapstructure:"log_mode"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

// StorageConfig selects the blob backend and how stored media is addressed.
type StorageConfig struct {
	Backend         string        `mapstructure:"backend"` // "s3" or "gcs"
	Folder          string        `mapstructure:"folder"`
	SignedURLExpiry time.Duration `mapstructure:"signed_url_expiry"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

type GCSConfig struct {
	BucketName   string `mapstructure:"bucket_name"`
	EmulatorHost string `mapstructure:"emulator_host"`
}

// JWTConfig holds the shared secret used to verify bearer tokens. Tokens are
// issued by the auth service, not here.
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

// AnalysisConfig points at the external analysis engine.
type AnalysisConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	AnalyzePath     string        `mapstructure:"analyze_path"`
	FinalResultPath string        `mapstructure:"final_result_path"`
	HealthPath      string        `mapstructure:"health_path"`
}

// RecorderConfig configures the capture client.
type RecorderConfig struct {
	ServerURL   string        `mapstructure:"server_url"`
	Token       string        `mapstructure:"token"`
	UserID      string        `mapstructure:"user_id"`
	VideoDevice string        `mapstructure:"video_device"`
	AudioDevice string        `mapstructure:"audio_device"`
	OutputDir   string        `mapstructure:"output_dir"`
	Countdown   int           `mapstructure:"countdown"`
	Duration    int           `mapstructure:"duration"` // seconds
	Tick        time.Duration `mapstructure:"tick"`
	FFmpegPath  string        `mapstructure:"ffmpeg_path"`
	SpeechPath  string        `mapstructure:"speech_path"`
	LogMode     string        `mapstructure:"log_mode"`
	Redis       RedisConfig   `mapstructure:"redis"`
}

// RedisConfig for battery progress persistence. An empty Address keeps
// progress in memory only.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LoadConfig reads the server configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// server.address -> SERVER_ADDRESS, analysis.timeout -> ANALYSIS_TIMEOUT
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("server.max_upload_mb", 100)
	viper.SetDefault("server.log_mode", "dev")
	viper.SetDefault("server.cors_origins", []string{"http://localhost:3000", "http://localhost:5173"})
	viper.SetDefault("database.uri", "mongodb://localhost:27017")
	viper.SetDefault("database.name", "fitness_assessment")
	viper.SetDefault("storage.backend", "s3")
	viper.SetDefault("storage.folder", "assessments")
	viper.SetDefault("storage.signed_url_expiry", "60s")
	viper.SetDefault("s3.use_ssl", true)
	viper.SetDefault("analysis.base_url", "http://127.0.0.1:5000")
	viper.SetDefault("analysis.timeout", "120s")
	viper.SetDefault("analysis.analyze_path", "/analyze_mobile")
	viper.SetDefault("analysis.final_result_path", "/comprehensiveAnalysis")
	viper.SetDefault("analysis.health_path", "/mobile_health")
	// Nested keys only reach Unmarshal through AutomaticEnv when viper knows them.
	for _, key := range []string{
		"s3.endpoint", "s3.region", "s3.access_key_id", "s3.secret_access_key", "s3.bucket_name",
		"gcs.bucket_name", "gcs.emulator_host", "jwt.secret",
	} {
		viper.SetDefault(key, "")
	}

	err = viper.ReadInConfig()
	// A missing config file is fine, env vars and defaults still apply.
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		err = nil
	} else if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}

// LoadRecorderConfig reads the capture client configuration ("recorder.yaml").
// It uses its own viper instance so it never mixes with server settings.
func LoadRecorderConfig(path string) (RecorderConfig, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("recorder")
	v.SetConfigType("yaml")
	v.SetEnvPrefix("recorder")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	v.SetDefault("server_url", "http://localhost:8080")
	v.SetDefault("token", "")
	v.SetDefault("user_id", "")
	v.SetDefault("video_device", "/dev/video0")
	v.SetDefault("audio_device", "default")
	v.SetDefault("output_dir", "recordings")
	v.SetDefault("countdown", 3)
	v.SetDefault("duration", 60)
	v.SetDefault("tick", "1s")
	v.SetDefault("ffmpeg_path", "ffmpeg")
	v.SetDefault("speech_path", "espeak")
	v.SetDefault("log_mode", "dev")
	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	var cfg RecorderConfig
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cfg, err
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
