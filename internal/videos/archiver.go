package videos

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"
)

// AssetStorage persists an object and returns where it can be found.
type AssetStorage interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}

// ExportArchiverConfig controls the concurrency of the archiver.
type ExportArchiverConfig struct {
	QueueSize   int
	Workers     int
	SaveTimeout time.Duration
}

// ArchivedExport describes an export copied to the archive.
type ArchivedExport struct {
	VideoID  string
	Filename string
	Location string
	Size     int64
}

// ExportArchiver copies downloaded exports to object storage in the background.
type ExportArchiver struct {
	storage     AssetStorage
	logger      *slog.Logger
	saveTimeout time.Duration
	onArchived  func(ArchivedExport)

	mu     sync.RWMutex
	closed bool
	jobs   chan archiveJob
	wg     sync.WaitGroup
}

type archiveJob struct {
	videoID  string
	filename string
	data     []byte
}

var errArchiverClosed = errors.New("export archiver closed")

// ErrArchiveQueueFull is returned when no worker can take the export right now.
var ErrArchiveQueueFull = errors.New("export archive queue full")

// NewExportArchiver starts the worker pool.
func NewExportArchiver(storage AssetStorage, cfg ExportArchiverConfig, logger *slog.Logger) *ExportArchiver {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &ExportArchiver{
		storage:     storage,
		logger:      logger,
		saveTimeout: cfg.SaveTimeout,
		jobs:        make(chan archiveJob, cfg.QueueSize),
	}

	a.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go a.worker()
	}

	return a
}

// OnArchived registers a callback invoked after each successful copy. It must
// be set before the first Enqueue.
func (a *ExportArchiver) OnArchived(fn func(ArchivedExport)) {
	a.onArchived = fn
}

// ErrInvalidArchiveKey is returned for ids or filenames that would escape
// the exports/ prefix.
var ErrInvalidArchiveKey = errors.New("export archive: invalid video id or filename")

// ArchiveKey is the object key for an export.
func ArchiveKey(videoID, filename string) string {
	return path.Join("exports", videoID, filename)
}

func validKeySegment(s string) bool {
	return s != "." && !strings.Contains(s, "..") && !strings.ContainsAny(s, "/\\")
}

// Enqueue schedules a copy of data. It never blocks the caller: a full queue
// returns ErrArchiveQueueFull.
func (a *ExportArchiver) Enqueue(ctx context.Context, videoID, filename string, data []byte) error {
	if strings.TrimSpace(videoID) == "" || strings.TrimSpace(filename) == "" {
		return errors.New("export archive: video id and filename are required")
	}
	if !validKeySegment(videoID) || !validKeySegment(filename) {
		return ErrInvalidArchiveKey
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return errArchiverClosed
	}

	job := archiveJob{videoID: videoID, filename: filename, data: data}
	select {
	case a.jobs <- job:
		return nil
	default:
		return ErrArchiveQueueFull
	}
}

// Shutdown stops accepting work and waits for queued copies to finish.
func (a *ExportArchiver) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.jobs)
	}
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (a *ExportArchiver) worker() {
	defer a.wg.Done()

	for job := range a.jobs {
		a.handleJob(job)
	}
}

func (a *ExportArchiver) handleJob(job archiveJob) {
	if a.storage == nil {
		a.logger.Error("export archive failed", "videoId", job.videoID, "error", ErrArchiveStorageUnavailable)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.saveTimeout)
	defer cancel()

	key := ArchiveKey(job.videoID, job.filename)
	location, err := a.storage.Save(ctx, key, bytes.NewReader(job.data))
	if err != nil {
		a.logger.Error("export archive failed", "videoId", job.videoID, "key", key, "error", err)
		return
	}

	a.logger.Info("export archived", "videoId", job.videoID, "location", location, "size", len(job.data))
	if a.onArchived != nil {
		a.onArchived(ArchivedExport{
			VideoID:  job.videoID,
			Filename: job.filename,
			Location: location,
			Size:     int64(len(job.data)),
		})
	}
}
