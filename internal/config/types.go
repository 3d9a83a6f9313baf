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

// Config 描述一次运行的全部可配置行为。配置在浏览器实例构建时固定，
// 运行期间不再变更。
type Config struct {
	RootURL  string `mapstructure:"RootURL"`
	Username string `mapstructure:"Username"`
	Password string `mapstructure:"Password"`

	Save    bool   `mapstructure:"Save"`
	Load    bool   `mapstructure:"Load"`
	SaveDir string `mapstructure:"SaveDir"`
	LoadDir string `mapstructure:"LoadDir"`
	DryRun  bool   `mapstructure:"DryRun"`

	RequestTimeout Duration `mapstructure:"RequestTimeout"`

	LogLevel      string `mapstructure:"LogLevel"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`

	FixturePort int `mapstructure:"FixturePort"`
}

// HasCredentials 表示是否配置了完整的认证凭证。
func (c *Config) HasCredentials() bool {
	return c.Username != "" && c.Password != ""
}
