package logging

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// NewLogger 建立 logrus logger；format 為 json 時輸出 JSON，其餘使用文字格式。
func NewLogger(level, format string) *logrus.Logger {
	logger := logrus.New()

	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	if strings.EqualFold(format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
	return logger
}

// ForService 回傳帶有 service 欄位的 entry。
func ForService(logger logrus.FieldLogger, service string) logrus.FieldLogger {
	return logger.WithField("service", service)
}
