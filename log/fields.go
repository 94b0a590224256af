package log

import "go.uber.org/zap"

var (
	Skip        = zap.Skip
	Binary      = zap.Binary
	Bool        = zap.Bool
	Boolp       = zap.Boolp
	ByteString  = zap.ByteString
	Float64     = zap.Float64
	Float64p    = zap.Float64p
	Float32     = zap.Float32
	Float32p    = zap.Float32p
	Int         = zap.Int
	Intp        = zap.Intp
	Int64       = zap.Int64
	Int64p      = zap.Int64p
	Int32       = zap.Int32
	Int32p      = zap.Int32p
	Uint        = zap.Uint
	Uint64      = zap.Uint64
	Uint32      = zap.Uint32
	Ints        = zap.Ints
	String      = zap.String
	Stringp     = zap.Stringp
	Strings     = zap.Strings
	Stringer    = zap.Stringer
	Time        = zap.Time
	Timep       = zap.Timep
	Duration    = zap.Duration
	Durationp   = zap.Durationp
	Any         = zap.Any
	Namespace   = zap.Namespace
	Reflect     = zap.Reflect
	ErrorField  = zap.Error
	NamedError  = zap.NamedError
	Errors      = zap.Errors
	Stack       = zap.Stack
	StackSkip   = zap.StackSkip
	Inline      = zap.Inline
	Object      = zap.Object
	Dict        = zap.Dict
)

// Fatalf is used in test setups where no structured logging is needed
func Fatalf(format string, args ...any) {
	std.l.Sugar().Fatalf(format, args...)
}
