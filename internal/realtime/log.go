package realtime

import "log"

func logf(format string, args ...interface{}) {
	log.Printf("[realtime] "+format, args...)
}
