package perfmetrics

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pauliuspaskevicius/libARUtils/transfer"
)

// CsvHeader defines the CSV header for performance logging
const CsvHeader = "Timestamp,TransferID,Operation,RemotePath,LocalPath,ResumeOffset,Bytes,TimeSec,ThroughputMBps,State,Error\n"

// Recorder appends one CSV row per finished transfer. It implements
// transfer.Observer.
type Recorder struct {
	path string
	log  *zap.Logger
	now  func() time.Time

	mu sync.Mutex
}

// NewRecorder writes to path, creating its directory on first use.
func NewRecorder(path string, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{path: path, log: log, now: time.Now}
}

// TransferFinished logs the report; write failures are logged, not returned.
func (r *Recorder) TransferFinished(rep transfer.Report) {
	if err := r.Append(rep); err != nil {
		r.log.Warn("performance log", zap.String("file", r.path), zap.Error(err))
	}
}

// Append writes one row for rep.
func (r *Recorder) Append(rep transfer.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if dir := filepath.Dir(r.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	// Check if file exists to determine if we need to write header
	fileExists := true
	if _, err := os.Stat(r.path); os.IsNotExist(err) {
		fileExists = false
	}

	file, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", r.path, err)
	}
	defer file.Close()

	if !fileExists {
		if _, err := file.WriteString(CsvHeader); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	writer := csv.NewWriter(file)
	if err := writer.Write(r.record(rep)); err != nil {
		return fmt.Errorf("failed to write CSV record: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV writer: %w", err)
	}
	return nil
}

func (r *Recorder) record(rep transfer.Report) []string {
	secs := rep.Elapsed.Seconds()
	var throughput float64
	if secs > 0 {
		throughput = float64(rep.Bytes) / secs / (1024 * 1024)
	}
	errText := ""
	if rep.Err != nil {
		errText = rep.Err.Error()
	}
	return []string{
		r.now().Format(time.RFC3339),
		rep.ID,
		rep.Op.String(),
		rep.RemotePath,
		rep.LocalPath,
		strconv.FormatInt(rep.Offset, 10),
		strconv.FormatInt(rep.Bytes, 10),
		strconv.FormatFloat(secs, 'f', 2, 64),
		strconv.FormatFloat(throughput, 'f', 2, 64),
		rep.State.String(),
		errText,
	}
}
