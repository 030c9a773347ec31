package logger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strconv"
	"time"
)

// Core field names. These three are reserved: context attributes with the
// same key are discarded rather than overwriting them.
const (
	TimestampKey   = "timestamp"
	LevelKey       = "level"
	MessageKey     = "message"
	SourceKey      = "source"
	ServiceKey     = "service"
	EnvironmentKey = "environment"
)

func reserved(key string) bool {
	return key == TimestampKey || key == LevelKey || key == MessageKey
}

// boundAttr is an attribute attached through WithAttrs, together with the
// group prefix that was open at that time.
type boundAttr struct {
	prefix string
	attr   slog.Attr
}

// encoder turns a record into one line of JSON. It is built once per
// installation and shared by every handler derived from it.
type encoder struct {
	static      []slog.Attr
	diagnostics bool
}

func newEncoder(service, environment string, diagnostics bool) *encoder {
	return &encoder{
		static: []slog.Attr{
			slog.String(ServiceKey, service),
			slog.String(EnvironmentKey, environment),
		},
		diagnostics: diagnostics,
	}
}

// fields is an insertion-ordered JSON object. Setting an existing key keeps
// its position and replaces the value.
type fields struct {
	keys   []string
	values map[string][]byte
}

func newFields() *fields {
	return &fields{values: make(map[string][]byte, 8)}
}

func (f *fields) set(key string, value []byte) {
	if _, ok := f.values[key]; !ok {
		f.keys = append(f.keys, key)
	}
	f.values[key] = value
}

func (f *fields) appendTo(buf []byte) []byte {
	buf = append(buf, '{')
	for i, key := range f.keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = appendString(buf, key)
		buf = append(buf, ':')
		buf = append(buf, f.values[key]...)
	}
	return append(buf, '}')
}

// encode renders r as a newline-terminated JSON object. It runs on the
// logging goroutine so the stack captured for exceptions is the caller's.
func (e *encoder) encode(r slog.Record, bound []boundAttr, prefix string) []byte {
	f := newFields()

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	f.set(TimestampKey, appendString(nil, ts.Format(time.RFC3339Nano)))
	f.set(LevelKey, appendString(nil, LevelName(r.Level)))
	f.set(MessageKey, appendString(nil, r.Message))

	if e.diagnostics && r.PC != 0 {
		frames := runtime.CallersFrames([]uintptr{r.PC})
		frame, _ := frames.Next()
		if frame.File != "" {
			f.set(SourceKey, appendString(nil, fmt.Sprintf("%s:%d", filepath.Base(frame.File), frame.Line)))
		}
	}

	var exc error
	for _, a := range e.static {
		e.appendAttr(f, "", a, &exc)
	}
	for _, b := range bound {
		e.appendAttr(f, b.prefix, b.attr, &exc)
	}
	r.Attrs(func(a slog.Attr) bool {
		e.appendAttr(f, prefix, a, &exc)
		return true
	})

	if exc != nil {
		var text string
		if e.diagnostics {
			text = describeError(exc, debug.Stack())
		} else {
			text = summarizeError(exc)
		}
		f.set(ExceptionKey, appendString(nil, text))
	}

	buf := make([]byte, 0, 256)
	buf = f.appendTo(buf)
	return append(buf, '\n')
}

func (e *encoder) appendAttr(f *fields, prefix string, a slog.Attr, exc *error) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		if len(attrs) == 0 {
			return
		}
		groupPrefix := prefix
		if a.Key != "" {
			groupPrefix = prefix + a.Key + "."
		}
		for _, ga := range attrs {
			e.appendAttr(f, groupPrefix, ga, exc)
		}
		return
	}

	if a.Key == "" {
		return
	}

	key := prefix + a.Key
	if key == ExceptionKey && a.Value.Kind() == slog.KindAny {
		if err, ok := a.Value.Any().(error); ok && err != nil {
			*exc = err
			return
		}
	}

	if reserved(key) {
		return
	}

	f.set(key, appendValue(nil, a.Value))
}

func appendValue(buf []byte, v slog.Value) []byte {
	switch v.Kind() {
	case slog.KindString:
		return appendString(buf, v.String())
	case slog.KindInt64:
		return strconv.AppendInt(buf, v.Int64(), 10)
	case slog.KindUint64:
		return strconv.AppendUint(buf, v.Uint64(), 10)
	case slog.KindFloat64:
		fv := v.Float64()
		if math.IsNaN(fv) || math.IsInf(fv, 0) {
			return appendString(buf, strconv.FormatFloat(fv, 'g', -1, 64))
		}
		return strconv.AppendFloat(buf, fv, 'g', -1, 64)
	case slog.KindBool:
		return strconv.AppendBool(buf, v.Bool())
	case slog.KindDuration:
		return strconv.AppendInt(buf, int64(v.Duration()), 10)
	case slog.KindTime:
		return appendString(buf, v.Time().Format(time.RFC3339Nano))
	default:
		return appendAny(buf, v.Any())
	}
}

// appendAny encodes arbitrary values through encoding/json. A value that
// cannot be marshalled is written as its %+v string instead of failing the
// whole record.
func appendAny(buf []byte, value any) []byte {
	if value == nil {
		return append(buf, "null"...)
	}

	if err, ok := value.(error); ok {
		if _, isMarshaler := value.(json.Marshaler); !isMarshaler {
			return appendString(buf, fmt.Sprint(err))
		}
	}

	data, err := marshalJSON(value)
	if err != nil {
		return appendString(buf, fmt.Sprintf("%+v", value))
	}
	return append(buf, data...)
}

func appendString(buf []byte, s string) []byte {
	data, err := marshalJSON(s)
	if err != nil {
		return append(buf, `""`...)
	}
	return append(buf, data...)
}

func marshalJSON(value any) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("marshal %T: panic: %v", value, r)
		}
	}()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
