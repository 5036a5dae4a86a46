package ingest

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/rewindfm/rewind/models"
)

// Stage names the pipeline step a Result refers to.
type Stage string

const (
	StageExtract   Stage = "extract"
	StageNormalize Stage = "normalize"
	StagePersist   Stage = "persist"
)

// Result is the tagged outcome of one ingestion run. The caller decides the
// upload's terminal status from Err; the pipeline itself never touches upload
// state. Files and Records describe progress up to the point of failure, so a
// failed run still tells you how much had already been committed.
type Result struct {
	Stage   Stage
	Files   int
	Records int
	Err     error
}

// Failed reports whether the run ended in an error.
func (r Result) Failed() bool {
	return r.Err != nil
}

// Store is the persistence surface the pipeline writes through.
type Store interface {
	InsertPlayEvents(events []*models.PlayEvent) error
}

// Processor runs the extract -> normalize -> persist pipeline for one
// uploaded archive at a time.
type Processor struct {
	store  Store
	logger *log.Logger
}

func NewProcessor(store Store) *Processor {
	return &Processor{
		store:  store,
		logger: log.New(os.Stdout, "ingest: ", log.LstdFlags|log.Lmsgprefix),
	}
}

// Run ingests the archive at archivePath on behalf of the given user and
// upload. Files are committed one at a time, so records from files processed
// before a failure stay committed; the upload's failed status is the signal
// that the run did not finish. The extraction scratch directory is removed
// when the run ends either way; the original archive is kept.
func (p *Processor) Run(archivePath string, userID, uploadID int64) Result {
	extractDir := strings.TrimSuffix(archivePath, ".zip") + "_extracted"
	if err := os.MkdirAll(extractDir, 0o755); err != nil {
		return Result{Stage: StageExtract, Err: fmt.Errorf("create extraction dir: %w", err)}
	}
	defer os.RemoveAll(extractDir)

	files, err := ExtractArchive(archivePath, extractDir)
	if err != nil {
		return Result{Stage: StageExtract, Err: err}
	}
	p.logger.Printf("upload %d: extracted %d streaming history files", uploadID, len(files))

	records := 0
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return Result{Stage: StageNormalize, Files: len(files), Records: records,
				Err: fmt.Errorf("read %s: %w", file, err)}
		}

		events, err := Normalize(data, userID, uploadID)
		if err != nil {
			return Result{Stage: StageNormalize, Files: len(files), Records: records,
				Err: fmt.Errorf("normalize %s: %w", file, err)}
		}

		if err := p.store.InsertPlayEvents(events); err != nil {
			return Result{Stage: StagePersist, Files: len(files), Records: records,
				Err: fmt.Errorf("persist %s: %w", file, err)}
		}
		records += len(events)
	}

	p.logger.Printf("upload %d: persisted %d play events", uploadID, records)
	return Result{Stage: StagePersist, Files: len(files), Records: records}
}
