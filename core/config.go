package core

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const MaxDescriptionFileSize = 5 << 20 // 5 MiB

type (
	Config struct {
		Env          string
		Debug        bool          `mapstructure:"debug"`
		TestMode     bool          `mapstructure:"test_mode"`
		AppName      string        `mapstructure:"app_name"`
		Build        string        `mapstructure:"build"`
		RollbarToken string        `mapstructure:"rollbar_token"`
		API          APIConfig     `mapstructure:"api"`
		Session      SessionConfig `mapstructure:"session"`
		Upload       UploadConfig  `mapstructure:"upload"`
		Log          LogConfig     `mapstructure:"log"`
		Server       ServerConfig  `mapstructure:"server"`
	}

	APIConfig struct {
		BaseURL         string        `mapstructure:"base_url"`
		Timeout         time.Duration `mapstructure:"timeout"`
		RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	}

	SessionConfig struct {
		File string `mapstructure:"file"`
	}

	UploadConfig struct {
		MaxFileSize int64 `mapstructure:"max_file_size"`
	}

	LogConfig struct {
		File       string `mapstructure:"file"`
		Level      string `mapstructure:"level"`
		MaxSizeMB  int    `mapstructure:"max_size_mb"`
		MaxBackups int    `mapstructure:"max_backups"`
	}

	// ServerConfig only applies to the development API server.
	ServerConfig struct {
		Host                      string        `mapstructure:"host"`
		Address                   string        `mapstructure:"address"`
		SecretKey                 string        `mapstructure:"secret_key"`
		JWTExpirationDelta        time.Duration `mapstructure:"jwt_expiration_delta"`
		JWTRefreshExpirationDelta time.Duration `mapstructure:"jwt_refresh_expiration_delta"`
		AdminUsername             string        `mapstructure:"admin_username"`
		AdminPassword             string        `mapstructure:"admin_password"`
	}
)

func setDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()

	v.SetDefault("debug", true)
	v.SetDefault("test_mode", false)
	v.SetDefault("app_name", "Masomo Portal")
	v.SetDefault("build", "dev")
	v.SetDefault("rollbar_token", "")

	v.SetDefault("api.base_url", "http://localhost:8080/v1")
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("api.refresh_interval", 14*time.Minute)

	v.SetDefault("session.file", filepath.Join(home, ".masomo", "session.yaml"))
	v.SetDefault("upload.max_file_size", MaxDescriptionFileSize)

	v.SetDefault("log.file", filepath.Join(home, ".masomo", "portal.log"))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.secret_key", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("server.jwt_expiration_delta", 15*time.Minute)
	v.SetDefault("server.jwt_refresh_expiration_delta", 7*24*time.Hour)
	v.SetDefault("server.admin_username", "administrator")
	v.SetDefault("server.admin_password", "")
}

// LoadConfig reads the configuration for the current ENV (DEV by default; TEST, QA, PROD).
// Values come from defaults, then config/.env.<env> if it exists, then the environment
// (eg. DEV_API_BASE_URL overrides api.base_url).
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("test_mode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "checking %s", dotEnvPath)
	}
	v.AutomaticEnv()

	conf := new(Config)
	if err := v.Unmarshal(conf); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}
	conf.Env = env
	conf.API.BaseURL = strings.TrimRight(CleanString(conf.API.BaseURL), "/")
	return conf, nil
}
