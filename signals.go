package prism

import (
	"context"
	"time"

	"github.com/zoobzio/capitan"
)

// Signals for projection events.
var (
	SignalTypeCompiled = capitan.NewSignal("prism.type.compiled", "TypeSpec compiled and cached")
	SignalDumpStart    = capitan.NewSignal("prism.dump.start", "Dump operation beginning")
	SignalDumpComplete = capitan.NewSignal("prism.dump.complete", "Dump operation finished")
	SignalCopyComplete = capitan.NewSignal("prism.copy.complete", "Copy operation finished")
)

// Keys for typed event data.
var (
	KeyTypeName     = capitan.NewStringKey("type_name")
	KeyMode         = capitan.NewStringKey("mode")
	KeyCopyKind     = capitan.NewStringKey("copy_kind")
	KeyFieldCount   = capitan.NewIntKey("field_count")
	KeyUpdatedCount = capitan.NewIntKey("updated_count")
	KeyDuration     = capitan.NewDurationKey("duration")
	KeyError        = capitan.NewErrorKey("error")
)

// emitTypeCompiled emits an event when a TypeSpec is first compiled.
func emitTypeCompiled(typeName string, fieldCount int) {
	capitan.Emit(context.Background(), SignalTypeCompiled,
		KeyTypeName.Field(typeName),
		KeyFieldCount.Field(fieldCount),
	)
}

// emitDumpStart emits an event when a dump begins.
func emitDumpStart(mode, typeName string) {
	capitan.Emit(context.Background(), SignalDumpStart,
		KeyMode.Field(mode),
		KeyTypeName.Field(typeName),
	)
}

// emitDumpComplete emits an event when a dump finishes.
func emitDumpComplete(mode, typeName string, duration time.Duration, err error) {
	fields := []capitan.Field{
		KeyMode.Field(mode),
		KeyTypeName.Field(typeName),
		KeyDuration.Field(duration),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(context.Background(), SignalDumpComplete, fields...)
	} else {
		capitan.Emit(context.Background(), SignalDumpComplete, fields...)
	}
}

// emitCopyComplete emits an event when a copy finishes.
func emitCopyComplete(typeName, kind string, updated int, duration time.Duration, err error) {
	fields := []capitan.Field{
		KeyTypeName.Field(typeName),
		KeyCopyKind.Field(kind),
		KeyUpdatedCount.Field(updated),
		KeyDuration.Field(duration),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(context.Background(), SignalCopyComplete, fields...)
	} else {
		capitan.Emit(context.Background(), SignalCopyComplete, fields...)
	}
}
