package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// GlobalConfig 描述进程级运行时行为：监听地址、日志与上游超时。
type GlobalConfig struct {
	BindAddr        string   `mapstructure:"BindAddr"`
	LogLevel        string   `mapstructure:"LogLevel"`
	LogFilePath     string   `mapstructure:"LogFilePath"`
	LogMaxSize      int      `mapstructure:"LogMaxSize"`
	LogMaxBackups   int      `mapstructure:"LogMaxBackups"`
	LogCompress     bool     `mapstructure:"LogCompress"`
	StoragePath     string   `mapstructure:"StoragePath"`
	UpstreamTimeout Duration `mapstructure:"UpstreamTimeout"`
}

// SigningConfig 决定签名交换如何生成：签名域、证书材料与保留路径。
type SigningConfig struct {
	// HtmlHost 是出现在最终 SXG 中的签名域（fallback URL 的 authority）。
	HtmlHost string `mapstructure:"HtmlHost"`

	CertFile   string `mapstructure:"CertFile"`
	IssuerFile string `mapstructure:"IssuerFile"`
	KeyFile    string `mapstructure:"KeyFile"`

	CertURLDirname     string `mapstructure:"CertURLDirname"`
	ValidityURLDirname string `mapstructure:"ValidityURLDirname"`

	// 可选的 ACME HTTP-01 挑战应答：匹配 token 时以签名交换形式返回 answer。
	AcmeChallengeToken  string `mapstructure:"AcmeChallengeToken"`
	AcmeChallengeAnswer string `mapstructure:"AcmeChallengeAnswer"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global  GlobalConfig  `mapstructure:",squash"`
	Backend string        `mapstructure:"Backend"`
	Signing SigningConfig `mapstructure:"Signing"`
}
