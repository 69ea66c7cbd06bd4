package adapter

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// FormatCall renders an executed operation as one human-readable line: the
// operation tag followed by space-separated name=value pairs. kv is
// consumed pairwise. Pure function; the caller decides where the line goes.
func FormatCall(op string, kv ...any) string {
	var b strings.Builder
	b.WriteString(op)
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&b, " %v=%v", kv[i], kv[i+1])
	}
	return b.String()
}

// LogCall emits one line for an executed call, with queue time (waiting for
// a connection) and execution time (store round trip) reported separately
// in microseconds.
func (a *Adapter) LogCall(ctx context.Context, op string, queue, exec time.Duration, err error, kv ...any) {
	attrs := []any{
		"queue_us", queue.Microseconds(),
		"exec_us", exec.Microseconds(),
	}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	a.log.DebugContext(ctx, FormatCall(op, kv...), attrs...)
}
