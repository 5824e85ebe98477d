package config

import "strings"

// MaskSecret 隐藏密钥中间部分，用于展示配置
func MaskSecret(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

// Redacted 返回隐藏了 API Key 的配置副本
func (c Config) Redacted() Config {
	c.DashScope.APIKey = MaskSecret(c.DashScope.APIKey)
	return c
}
