package logger

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// Redacted es el valor que reemplaza a los campos sensibles.
const Redacted = "[REDACTED]"

// sensitiveKeys: cualquier campo cuyo nombre contenga alguna de estas
// palabras (case-insensitive) se enmascara antes de llegar al encoder.
var sensitiveKeys = []string{"password", "secret", "token"}

// IsSensitiveKey indica si un nombre de campo debe enmascararse.
func IsSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

// Redact envuelve un core para que nunca escriba valores de campos sensibles.
// Se usa con zap.WrapCore.
func Redact(c zapcore.Core) zapcore.Core {
	return &redactCore{Core: c}
}

type redactCore struct {
	zapcore.Core
}

func (r *redactCore) With(fields []zapcore.Field) zapcore.Core {
	return &redactCore{Core: r.Core.With(redactFields(fields))}
}

func (r *redactCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if r.Enabled(ent.Level) {
		return ce.AddCore(ent, r)
	}
	return ce
}

func (r *redactCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	return r.Core.Write(ent, redactFields(fields))
}

func redactFields(fields []zapcore.Field) []zapcore.Field {
	var out []zapcore.Field
	for i, f := range fields {
		if !IsSensitiveKey(f.Key) {
			continue
		}
		if out == nil {
			out = make([]zapcore.Field, len(fields))
			copy(out, fields)
		}
		out[i] = zapcore.Field{Key: f.Key, Type: zapcore.StringType, String: Redacted}
	}
	if out == nil {
		return fields
	}
	return out
}
