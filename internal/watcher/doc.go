// Package watcher turns filesystem notifications for one directory into a
// stream of create and delete events, and manages the background daemon.
//
// A Bridge owns an fsnotify watcher and a goroutine that filters raw
// notifications down to two kinds, Created and Deleted, for regular entries
// directly inside the watched directory. Events are delivered on a bounded
// channel and never block the notification goroutine: when the consumer falls
// behind, events are dropped and counted. Consumers are expected to rescan
// the directory anyway, so an event is a hint, not a record.
//
// Example usage:
//
//	b, err := watcher.NewBridge("/var/spool/reports", 64)
//	if err != nil {
//		// fall back to polling
//	}
//	defer b.Stop()
//
//	for ev := range b.Events() {
//		fmt.Println(ev.Op, ev.Path)
//	}
//
// Daemon mode re-executes the current binary in a new session with output
// redirected to a log file and records its PID:
//
//	if err := watcher.StartDaemon([]string{"watch", dir}, pidFile, logFile); err != nil {
//		log.Fatal(err)
//	}
package watcher
