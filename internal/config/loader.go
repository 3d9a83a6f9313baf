package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"reflect"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
// path 为空或文件不存在时退化为纯默认值运行（CLI flag 覆盖仍然生效），
// 文件存在但不可解析则视为错误。
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("读取配置失败: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("RootURL", "")
	v.SetDefault("SaveDir", ".")
	v.SetDefault("LoadDir", ".")
	v.SetDefault("RequestTimeout", "30s")
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("FixturePort", 5900)
}

func applyDefaults(cfg *Config) {
	if cfg.SaveDir == "" {
		cfg.SaveDir = "."
	}
	if cfg.LoadDir == "" {
		cfg.LoadDir = "."
	}
	if cfg.RequestTimeout.DurationValue() == 0 {
		cfg.RequestTimeout = Duration(30 * time.Second)
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.FixturePort == 0 {
		cfg.FixturePort = 5900
	}
}

// Validate 针对语义级别做进一步校验，防止非法配置启动。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}
	if c.Save && c.Load {
		return newFieldError("Save/Load", "save 与 load 互斥，只能启用其一")
	}
	if c.SaveDir == "" {
		return newFieldError("SaveDir", "不能为空")
	}
	if c.LoadDir == "" {
		return newFieldError("LoadDir", "不能为空")
	}
	if c.RequestTimeout.DurationValue() <= 0 {
		return newFieldError("RequestTimeout", "必须大于 0")
	}
	if c.FixturePort <= 0 || c.FixturePort > 65535 {
		return newFieldError("FixturePort", "必须在 1-65535")
	}
	if c.RootURL != "" {
		parsed, err := url.Parse(c.RootURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return newFieldError("RootURL", fmt.Sprintf("不是合法的绝对 URL: %s", c.RootURL))
		}
	}
	if (c.Username == "") != (c.Password == "") {
		return newFieldError("Username/Password", "凭证必须成对配置")
	}
	return nil
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
			return data, nil
		}
	}
}
