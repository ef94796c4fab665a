package eventlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lestrrat-go/strftime"
)

// FileObserver appends the stable ASCII "[CATEGORY] text" line (§6) to
// a rotating log file, one per day, named from a strftime pattern —
// grounded on src/log.go's daily_names file rotation and on the
// timestamp formatting pattern in src/tq.go/src/xmit.go
// (strftime.Format(timestamp_format, time.Now())).
type FileObserver struct {
	mu         sync.Mutex
	dir        string
	namePat    *strftime.Strftime
	timePat    *strftime.Strftime
	openName   string
	openFile   *os.File
}

// NewFileObserver creates an observer writing daily log files under
// dir, named by nameLayout (strftime directives, e.g. "hamstr-%Y%m%d.log"),
// each line prefixed by a timestamp rendered with timeLayout
// (e.g. "%H:%M:%S").
func NewFileObserver(dir, nameLayout, timeLayout string) (*FileObserver, error) {
	namePat, err := strftime.New(nameLayout)
	if err != nil {
		return nil, fmt.Errorf("eventlog: bad file name layout: %w", err)
	}
	timePat, err := strftime.New(timeLayout)
	if err != nil {
		return nil, fmt.Errorf("eventlog: bad timestamp layout: %w", err)
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("eventlog: create log dir: %w", err)
	}
	return &FileObserver{dir: dir, namePat: namePat, timePat: timePat}, nil
}

func (f *FileObserver) rotate(now time.Time) error {
	name := filepath.Join(f.dir, f.namePat.FormatString(now))
	if name == f.openName && f.openFile != nil {
		return nil
	}
	if f.openFile != nil {
		_ = f.openFile.Close()
	}
	fh, err := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	f.openFile = fh
	f.openName = name
	return nil
}

func (f *FileObserver) OnEvent(e Event) {
	now := time.Now()

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.rotate(now); err != nil {
		return
	}
	stamp := f.timePat.FormatString(now)
	fmt.Fprintf(f.openFile, "%s %s\n", stamp, e.Line())
}

func (f *FileObserver) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openFile == nil {
		return nil
	}
	return f.openFile.Close()
}
