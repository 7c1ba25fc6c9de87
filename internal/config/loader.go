package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load 读取并解析 TOML 配置文件并注入默认值。语义校验由 Validate 完成，
// 调用方应在合并 CLI 覆盖项之后调用它。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyDefaults(&cfg)

	absStorage, err := filepath.Abs(cfg.Global.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("无法解析存储目录: %w", err)
	}
	cfg.Global.StoragePath = absStorage

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("BindAddr", "127.0.0.1:8080")
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("StoragePath", "./storage")
	v.SetDefault("UpstreamTimeout", "30s")
	v.SetDefault("Signing.CertFile", "credentials/cert.pem")
	v.SetDefault("Signing.IssuerFile", "credentials/issuer.pem")
	v.SetDefault("Signing.KeyFile", "credentials/privkey.pem")
	v.SetDefault("Signing.CertURLDirname", ".well-known/sxg-certs")
	v.SetDefault("Signing.ValidityURLDirname", ".well-known/sxg-validity")
}

func applyDefaults(cfg *Config) {
	if cfg.Global.BindAddr == "" {
		cfg.Global.BindAddr = "127.0.0.1:8080"
	}
	if cfg.Global.UpstreamTimeout.DurationValue() == 0 {
		cfg.Global.UpstreamTimeout = Duration(30 * time.Second)
	}
	if cfg.Signing.CertURLDirname == "" {
		cfg.Signing.CertURLDirname = ".well-known/sxg-certs"
	}
	if cfg.Signing.ValidityURLDirname == "" {
		cfg.Signing.ValidityURLDirname = ".well-known/sxg-validity"
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
