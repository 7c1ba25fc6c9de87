package config

import (
	"errors"
	"net"
	"net/url"
	"strings"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if _, _, err := net.SplitHostPort(g.BindAddr); err != nil {
		return newFieldError("BindAddr", "必须为 ip:port 形式")
	}
	if g.StoragePath == "" {
		return newFieldError("StoragePath", "不能为空")
	}
	if g.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("UpstreamTimeout", "必须大于 0")
	}

	if err := validateBackend(c.Backend); err != nil {
		return err
	}

	s := c.Signing
	if strings.TrimSpace(s.HtmlHost) == "" {
		return newFieldError("Signing.HtmlHost", "不能为空")
	}
	if strings.ContainsAny(s.HtmlHost, "/?#") {
		return newFieldError("Signing.HtmlHost", "必须是 host[:port]，不含路径")
	}
	if s.CertFile == "" {
		return newFieldError("Signing.CertFile", "不能为空")
	}
	if s.IssuerFile == "" {
		return newFieldError("Signing.IssuerFile", "不能为空")
	}
	if s.KeyFile == "" {
		return newFieldError("Signing.KeyFile", "不能为空")
	}
	if strings.Contains(s.CertURLDirname, "..") || strings.Contains(s.ValidityURLDirname, "..") {
		return newFieldError("Signing.CertURLDirname", "不允许包含 ..")
	}
	if (s.AcmeChallengeToken == "") != (s.AcmeChallengeAnswer == "") {
		return newFieldError("Signing.AcmeChallengeToken", "token 与 answer 必须同时配置")
	}

	return nil
}

func validateBackend(backend string) error {
	if strings.TrimSpace(backend) == "" {
		return newFieldError("Backend", "不能为空")
	}
	u, err := url.Parse(backend)
	if err != nil {
		return newFieldError("Backend", "无法解析为 URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return newFieldError("Backend", "仅支持 http/https")
	}
	if u.Host == "" {
		return newFieldError("Backend", "缺少 host")
	}
	return nil
}
