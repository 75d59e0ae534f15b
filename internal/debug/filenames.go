package debug

import (
	"fmt"
	"strings"
	"time"
)

// timestampedFilename builds "<prefix>_<YYYY>_<MM>_<DD>_<seconds-since-midnight>.<ext>".
func timestampedFilename(prefix, ext string) string {
	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	secs := int(now.Sub(midnight).Seconds())
	return fmt.Sprintf("%s_%04d_%02d_%02d_%d.%s", prefix, now.Year(), now.Month(), now.Day(), secs, ext)
}

// TraceFilename returns a timestamped trace-file name with the "_trace"
// suffix the CLI's -t flag specifies.
func TraceFilename() string {
	return strings.TrimSuffix(timestampedFilename("gblite", "log"), ".log") + "_trace.log"
}

// MemDumpFilename returns a timestamped memory-dump file name for the -d
// flag and the debugger's "d" command.
func MemDumpFilename() string {
	return timestampedFilename("gblite_mem", "log")
}
