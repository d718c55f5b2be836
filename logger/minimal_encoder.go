package logger

import (
	"fmt"
	"time"

	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

const (
	colorReset = "\x1b[0m"
	colorBold  = "\x1b[1m"
)

// Muted palette, easy on the eyes in long-running bot sessions.
var palette = struct {
	time      string
	component string
	key       string
	value     string
	warn      string
	err       string
}{
	time:      "\x1b[38;5;107m",
	component: "\x1b[38;5;208m",
	key:       "\x1b[38;5;109m",
	value:     "\x1b[38;5;223m",
	warn:      "\x1b[38;5;179m",
	err:       "\x1b[38;5;167m",
}

// minimalEncoder renders calm single-line console output:
//
//	15:04:05 gateway  connected  uri=ws://127.0.0.1:3001
//
// Levels below WARN get no level tag; WARN and ERROR are colorized.
type minimalEncoder struct {
	zapcore.Encoder
	pool buffer.Pool
}

func newMinimalEncoder() *minimalEncoder {
	cfg := zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       "",
		TimeKey:        "",
		NameKey:        "name",
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	return &minimalEncoder{
		Encoder: zapcore.NewConsoleEncoder(cfg),
		pool:    buffer.NewPool(),
	}
}

func (e *minimalEncoder) Clone() zapcore.Encoder {
	return &minimalEncoder{Encoder: e.Encoder.Clone(), pool: e.pool}
}

func (e *minimalEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	line := e.pool.Get()

	line.AppendString(palette.time)
	line.AppendString(entry.Time.Format(time.TimeOnly))
	line.AppendString(colorReset)
	line.AppendByte(' ')

	if entry.LoggerName != "" {
		line.AppendString(palette.component)
		line.AppendString(entry.LoggerName)
		line.AppendString(colorReset)
		line.AppendByte(' ')
	}

	switch entry.Level {
	case zapcore.WarnLevel:
		line.AppendString(palette.warn + "WARN " + colorReset)
	case zapcore.ErrorLevel, zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		line.AppendString(palette.err + colorBold + "ERROR " + colorReset)
	}

	line.AppendString(entry.Message)

	for i := range fields {
		line.AppendByte(' ')
		line.AppendString(palette.key)
		line.AppendString(fields[i].Key)
		line.AppendString(colorReset)
		line.AppendByte('=')
		line.AppendString(palette.value)
		appendFieldValue(line, &fields[i])
		line.AppendString(colorReset)
	}

	line.AppendByte('\n')

	if entry.Stack != "" {
		line.AppendString(entry.Stack)
		line.AppendByte('\n')
	}
	return line, nil
}

func appendFieldValue(line *buffer.Buffer, f *zapcore.Field) {
	switch f.Type {
	case zapcore.StringType:
		line.AppendString(f.String)
	case zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type:
		line.AppendInt(f.Integer)
	case zapcore.Uint64Type, zapcore.Uint32Type, zapcore.Uint16Type, zapcore.Uint8Type:
		line.AppendUint(uint64(f.Integer))
	case zapcore.BoolType:
		line.AppendBool(f.Integer == 1)
	case zapcore.DurationType:
		line.AppendString(time.Duration(f.Integer).String())
	case zapcore.ErrorType:
		if err, ok := f.Interface.(error); ok {
			line.AppendString(err.Error())
		}
	default:
		line.AppendString(fmt.Sprint(f.Interface))
	}
}
