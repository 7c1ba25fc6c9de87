package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供 branch/backend 等每请求字段，供代理日志复用。
// branch 取值 preset_direct / preset_signed / proxy 之一。
func RequestFields(branch, host, backend, requestID string) logrus.Fields {
	fields := logrus.Fields{
		"action":  "dispatch",
		"branch":  branch,
		"host":    host,
		"backend": backend,
	}
	if requestID != "" {
		fields["request_id"] = requestID
	}
	return fields
}
