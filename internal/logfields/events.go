package logfields

import "go.uber.org/zap"

func Event(val string) zap.Field {
	return zap.String("event", val)
}

// Registry is the kind of registry that sent a notification (dockerhub, dtr).
func Registry(val string) zap.Field {
	return zap.String("registry", val)
}
