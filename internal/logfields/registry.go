package logfields

import "go.uber.org/zap"

func Repository(val string) zap.Field {
	return zap.String("registry.repository", val)
}

func Tag(val string) zap.Field {
	return zap.String("registry.tag", val)
}

func Digest(val string) zap.Field {
	return zap.String("registry.digest", val)
}

func EventJSONType(val string) zap.Field {
	return zap.String("registry.event_type", val)
}

func Fingerprint(val string) zap.Field {
	return zap.String("notification.fingerprint", val)
}

func Job(val string) zap.Field {
	return zap.String("job", val)
}

func RunID(val string) zap.Field {
	return zap.String("run_id", val)
}

func CauseID(val string) zap.Field {
	return zap.String("cause_id", val)
}

func EventType(val string) zap.Field {
	return zap.String("event_type", val)
}

func Parameter(val string) zap.Field {
	return zap.String("parameter", val)
}
