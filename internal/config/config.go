package config

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	appdefaults "github.com/kardia-ai/skillbus/config"

	"github.com/google/uuid"
	"github.com/kardia-ai/skillbus/internal/logger"
	"github.com/spf13/viper"
)

// MQTTConfig represents a mqttConfig.
type MQTTConfig struct {
	BrokerURL string `mapstructure:"broker_url"`
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	ClientID  string `mapstructure:"client_id"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
}

// Config represents a config.
type Config struct {
	RootDir        string        `mapstructure:"-"`
	StatusAddr     string        `mapstructure:"status_addr"`
	SkillsDir      string        `mapstructure:"skills_dir"`
	TranscriptsDir string        `mapstructure:"transcripts_dir"`
	MQTT           MQTTConfig    `mapstructure:"mqtt"`
	Log            logger.Config `mapstructure:"log"`
}

// Load executes the load function.
func Load() (Config, error) {
	rootDir, err := resolveRootDir()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigName("conf")
	v.SetConfigType("yaml")
	v.AddConfigPath(rootDir)

	if err := v.ReadConfig(bytes.NewReader(appdefaults.Default)); err != nil {
		return Config{}, fmt.Errorf("load embedded config: %w", err)
	}

	setDefaults(v)
	bindEnv(v)

	if err := v.MergeInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	cfg.RootDir = rootDir
	deriveBrokerURL(&cfg)
	deriveClientID(&cfg)
	derivePaths(&cfg)

	return cfg, nil
}

// LoadConfig executes the loadConfig function.
func LoadConfig(configPath string) (Config, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		return Load()
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, err
	}

	rootDir := strings.TrimSpace(os.Getenv("SKILL_ROOT_DIR"))
	if rootDir == "" {
		rootDir = filepath.Dir(absPath)
		if filepath.Base(rootDir) == "config" {
			rootDir = filepath.Dir(rootDir)
		}
	}

	v := viper.New()
	v.SetConfigType("yaml")

	if err := v.ReadConfig(bytes.NewReader(appdefaults.Default)); err != nil {
		return Config{}, fmt.Errorf("load embedded config: %w", err)
	}

	setDefaults(v)
	bindEnv(v)

	v.SetConfigFile(absPath)
	if err := v.MergeInConfig(); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	cfg.RootDir = rootDir
	deriveBrokerURL(&cfg)
	deriveClientID(&cfg)
	derivePaths(&cfg)

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("status_addr", "")
	v.SetDefault("skills_dir", "skills.d")
	v.SetDefault("transcripts_dir", filepath.Join("data", "transcripts"))
	v.SetDefault("mqtt.broker_url", "")
	v.SetDefault("mqtt.host", "localhost")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.client_id", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.stdout", true)
	v.SetDefault("log.file.enabled", true)
	v.SetDefault("log.file.path", "./data/logs")
	v.SetDefault("log.file.name", "skillhost.log")
	v.SetDefault("log.file.max_size_mb", 100)
	v.SetDefault("log.file.max_backups", 5)
	v.SetDefault("log.file.max_age_days", 30)
	v.SetDefault("log.file.compress", true)
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("skill")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

func deriveBrokerURL(cfg *Config) {
	if cfg.MQTT.BrokerURL != "" {
		return
	}
	host := cfg.MQTT.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.MQTT.Port
	if port == 0 {
		port = 1883
	}
	cfg.MQTT.BrokerURL = "tcp://" + net.JoinHostPort(host, strconv.Itoa(port))
}

func deriveClientID(cfg *Config) {
	if cfg.MQTT.ClientID != "" {
		return
	}
	cfg.MQTT.ClientID = "skillhost-" + uuid.NewString()[:8]
}

func resolveRootDir() (string, error) {
	if root := strings.TrimSpace(os.Getenv("SKILL_ROOT_DIR")); root != "" {
		return filepath.Abs(root)
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	dir := wd
	for i := 0; i < 6; i++ {
		if fileExists(filepath.Join(dir, "conf.yaml")) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return wd, nil
}

func derivePaths(cfg *Config) {
	cfg.SkillsDir = resolvePath(cfg.RootDir, cfg.SkillsDir, "skills.d")
	cfg.TranscriptsDir = resolvePath(cfg.RootDir, cfg.TranscriptsDir, filepath.Join("data", "transcripts"))
}

func resolvePath(rootDir string, configured string, fallback string) string {
	path := strings.TrimSpace(configured)
	if path == "" {
		path = fallback
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(rootDir, path)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
