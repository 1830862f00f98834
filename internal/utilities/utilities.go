package utilities

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Journal appends raw Traccar payloads to one file per resource per day:
// <dir>/<RESOURCE>_<yyyymmdd>.log, each line prefixed with the time.
type Journal struct {
	dir string
	now func() time.Time
	mu  sync.Mutex
}

func NewJournal(dir string) *Journal {
	return &Journal{dir: dir, now: time.Now}
}

// FileName is the journal file for resource on day t, e.g.
// DEVICES_20261019.log.
func (j *Journal) FileName(resource string, t time.Time) string {
	return filepath.Join(j.dir, strings.ToUpper(resource)+"_"+t.Format("20060102")+".log")
}

func (j *Journal) Write(resource string, body []byte) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := os.MkdirAll(j.dir, 0o755); err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	now := j.now()
	f, err := os.OpenFile(j.FileName(resource, now), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	defer f.Close()

	line := now.Format("15:04:05") + " - " + string(body) + "\n"
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	return nil
}
