package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/DrorShokoPeer/ttydx/internal/config"
)

const defaultLogPath = "/app/logs/auth.log"

var (
	logFile *os.File
	output  io.Writer = os.Stdout
	mu      sync.Mutex
)

// Init sets up dual logging to stdout and a log file.
// Must be called after config.Load(). If the file cannot be opened the
// process keeps logging to stdout only.
func Init() {
	mu.Lock()
	defer mu.Unlock()

	path := config.Cfg.LogPath
	if path == "" {
		path = defaultLogPath
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		log.Printf("WARNING: cannot create log directory: %v", err)
		return
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.Printf("WARNING: cannot open log file %s: %v", path, err)
		return
	}

	logFile = f
	output = io.MultiWriter(os.Stdout, logFile)
	log.SetOutput(output)
	log.Printf("Logging to file: %s", path)
}

// Writer returns the destination shared by the process log and the audit
// stream.
func Writer() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return output
}

// Close flushes and closes the log file, reverting to stdout.
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	if logFile == nil {
		return nil
	}
	output = os.Stdout
	log.SetOutput(output)
	err := logFile.Close()
	logFile = nil
	return err
}
