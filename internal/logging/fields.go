package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// CacheFields 描述一次缓存维护操作及其删除量。
func CacheFields(action, root string, files, dirs, bytes int64) logrus.Fields {
	return logrus.Fields{
		"action":      action,
		"path":        root,
		"num_files":   files,
		"num_dirs":    dirs,
		"total_bytes": bytes,
	}
}

// RequestFields 提供管理接口请求日志字段。
func RequestFields(requestID, method, path string, status int) logrus.Fields {
	return logrus.Fields{
		"action":     "admin_request",
		"request_id": requestID,
		"method":     method,
		"path":       path,
		"status":     status,
	}
}
