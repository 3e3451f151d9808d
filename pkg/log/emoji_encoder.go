package log

import (
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

// emojiMap maps the "type" field of an entry to the emoji prefixed to its
// message by EmojiConsoleEncoder.
var emojiMap = map[string]string{
	"upstream":     "🌍",
	"cache":        "📦",
	"breaker":      "🔌",
	"request":      "🌐",
	"rate_limit":   "🚦",
	"database":     "💾",
	"scheduler":    "🎯",
	"startup":      "🚀",
	"slow_request": "🐌",
}

// statusEmoji maps an HTTP status class to an emoji.
func statusEmoji(status int) string {
	switch {
	case status >= 500:
		return "🔴"
	case status >= 400:
		return "🟠"
	case status >= 300:
		return "🟡"
	default:
		return "🟢"
	}
}

// levelEmoji is used when an entry has neither a status nor a known type.
func levelEmoji(level zapcore.Level) string {
	switch {
	case level >= zapcore.ErrorLevel:
		return "❌"
	case level == zapcore.WarnLevel:
		return "⚠️"
	case level == zapcore.InfoLevel:
		return "ℹ️"
	default:
		return "🐛"
	}
}

// EmojiConsoleEncoder wraps the zap console encoder and prefixes each
// message with an emoji picked from the status field, then the type field,
// then the level.
type EmojiConsoleEncoder struct {
	zapcore.Encoder
}

// NewEmojiConsoleEncoder creates a console encoder with emoji prefixes.
func NewEmojiConsoleEncoder(cfg zapcore.EncoderConfig) zapcore.Encoder {
	return &EmojiConsoleEncoder{Encoder: zapcore.NewConsoleEncoder(cfg)}
}

// EncodeEntry implements zapcore.Encoder.
func (enc *EmojiConsoleEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	var (
		logType string
		status  int64
	)
	for _, field := range fields {
		switch {
		case field.Key == "type" && field.Type == zapcore.StringType:
			logType = field.String
		case field.Key == "status" && (field.Type == zapcore.Int64Type || field.Type == zapcore.Int32Type):
			status = field.Integer
		}
	}

	emoji, ok := emojiMap[logType]
	if status > 0 {
		emoji, ok = statusEmoji(int(status)), true
	}
	if !ok {
		emoji = levelEmoji(entry.Level)
	}
	entry.Message = emoji + " " + entry.Message

	return enc.Encoder.EncodeEntry(entry, fields)
}

// Clone implements zapcore.Encoder.
func (enc *EmojiConsoleEncoder) Clone() zapcore.Encoder {
	return &EmojiConsoleEncoder{Encoder: enc.Encoder.Clone()}
}
