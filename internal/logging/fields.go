package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// FetchFields 提供 url/内容来源/命中状态字段，供抓取日志复用。
// source 取值：memory、disk、live。
func FetchFields(url, source string, cacheHit bool) logrus.Fields {
	return logrus.Fields{
		"action":    "fetch",
		"url":       url,
		"source":    source,
		"cache_hit": cacheHit,
	}
}
