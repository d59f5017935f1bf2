package internal

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string   `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowedOrigins"`

	MaxFileSizeMB   int64 `mapstructure:"maxFileSizeMB"`
	FileExpireHours int   `mapstructure:"fileExpireHours"`

	MaxConvertsPerDay  int `mapstructure:"maxConvertsPerDay"`
	MaxConvertsPerHour int `mapstructure:"maxConvertsPerHour"`

	// "local" or "r2". The backend is chosen once at startup from this
	// value, never inferred from deployment environment markers.
	StorageBackend string             `mapstructure:"storageBackend"`
	LocalStorage   LocalStorageConfig `mapstructure:"localStorage"`
	R2             R2Config

	RedisAddr string `mapstructure:"redisAddr"`

	CloudConvertAPIKey string
	ILovePDFPublicKey  string
	ILovePDFSecretKey  string

	FFmpegPath string `mapstructure:"ffmpegPath"`
}

type LocalStorageConfig struct {
	BasePath    string `mapstructure:"basePath"`
	ExternalURL string `mapstructure:"externalURL"`
}

type R2Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
}

// MaxFileSizeBytes returns the upload size cap in bytes.
func (c *Config) MaxFileSizeBytes() int64 {
	return c.MaxFileSizeMB * 1024 * 1024
}

func LoadConfig() (*Config, error) {
	viper.SetDefault("port", "8080")
	viper.SetDefault("maxFileSizeMB", 100)
	viper.SetDefault("fileExpireHours", 24)
	viper.SetDefault("maxConvertsPerDay", 25)
	viper.SetDefault("maxConvertsPerHour", 5)
	viper.SetDefault("storageBackend", "local")
	viper.SetDefault("localStorage.basePath", "./files")
	viper.SetDefault("ffmpegPath", "ffmpeg")

	viper.SetConfigFile("files/config.yaml")
	if err := viper.ReadInConfig(); err != nil {
		// The config file is optional; environment variables alone are
		// enough to run the server.
		if _, statErr := os.Stat("files/config.yaml"); statErr == nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	bindEnv := map[string]string{
		"port":               "PORT",
		"maxFileSizeMB":      "MAX_FILE_SIZE_MB",
		"fileExpireHours":    "FILE_EXPIRE_HOURS",
		"maxConvertsPerDay":  "MAX_CONVERTS_PER_DAY",
		"maxConvertsPerHour": "MAX_CONVERTS_PER_HOUR",
		"storageBackend":     "STORAGE_BACKEND",
		"redisAddr":          "REDIS_ADDR",
		"ffmpegPath":         "FFMPEG_PATH",
	}
	for key, env := range bindEnv {
		if err := viper.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Comma-separated list; viper's env binding cannot split slices.
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		config.AllowedOrigins = strings.Split(origins, ",")
	}

	// Vendor credentials and storage secrets come from the environment only.
	config.CloudConvertAPIKey = os.Getenv("CLOUDCONVERT_API_KEY")
	config.ILovePDFPublicKey = os.Getenv("ILOVEPDF_PUBLIC_KEY")
	config.ILovePDFSecretKey = os.Getenv("ILOVEPDF_SECRET_KEY")
	config.R2.Endpoint = os.Getenv("CLOUDFLARE_R2_ENDPOINT")
	config.R2.AccessKey = os.Getenv("CLOUDFLARE_R2_ACCESS_KEY_ID")
	config.R2.SecretKey = os.Getenv("CLOUDFLARE_R2_SECRET_ACCESS_KEY")
	config.R2.Bucket = os.Getenv("CLOUDFLARE_R2_BUCKET")

	if config.StorageBackend != "local" && config.StorageBackend != "r2" {
		return nil, fmt.Errorf("unknown storage backend %q (expected local or r2)", config.StorageBackend)
	}
	if config.StorageBackend == "r2" && config.R2.Endpoint == "" {
		return nil, fmt.Errorf("r2 storage backend requires CLOUDFLARE_R2_ENDPOINT")
	}

	return &config, nil
}
