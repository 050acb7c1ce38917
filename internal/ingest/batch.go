package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-intake/constants"
	"github.com/joseph-ayodele/invoice-intake/internal/async"
	"github.com/joseph-ayodele/invoice-intake/internal/common"
	"github.com/joseph-ayodele/invoice-intake/internal/export"
	"github.com/joseph-ayodele/invoice-intake/internal/recognition"
)

// Recognizer runs the recognition chain for one document.
type Recognizer interface {
	Run(ctx context.Context, doc recognition.Document, progress recognition.ProgressFunc) (recognition.Result, recognition.Outcome, error)
}

// Batch recognizes documents from disk on a worker queue. It never commits.
type Batch struct {
	recognizer Recognizer
	logger     *slog.Logger
	opts       []async.Option
}

func NewBatch(r Recognizer, logger *slog.Logger, opts ...async.Option) *Batch {
	if logger == nil {
		logger = slog.Default()
	}
	return &Batch{recognizer: r, logger: logger, opts: opts}
}

// Run returns one row per path, in the order given. Cancelling ctx stops
// pending documents; they are reported with the context error.
func (b *Batch) Run(ctx context.Context, paths []string) []export.BatchRow {
	var mu sync.Mutex
	rows := make([]export.BatchRow, len(paths))
	index := make(map[uuid.UUID]int, len(paths))

	q := async.NewWorkerQueue(func(jctx context.Context, job async.Job) error {
		mu.Lock()
		i := index[job.ID]
		mu.Unlock()

		var row export.BatchRow
		if err := ctx.Err(); err != nil {
			row = export.BatchRow{Path: job.Path, Outcome: recognition.OutcomeFailed, Err: err}
		} else {
			rctx, cancel := context.WithCancel(jctx)
			stop := context.AfterFunc(ctx, cancel)
			row = b.recognize(rctx, job.Path)
			stop()
			cancel()
		}

		mu.Lock()
		rows[i] = row
		mu.Unlock()
		return row.Err
	}, b.logger, b.opts...)

	for i, p := range paths {
		id := uuid.New()
		mu.Lock()
		index[id] = i
		rows[i] = export.BatchRow{Path: p, Outcome: recognition.OutcomeFailed}
		mu.Unlock()

		if err := q.Enqueue(ctx, async.Job{ID: id, Path: p}); err != nil {
			mu.Lock()
			for j := i; j < len(paths); j++ {
				rows[j] = export.BatchRow{Path: paths[j], Outcome: recognition.OutcomeFailed, Err: err}
			}
			mu.Unlock()
			break
		}
	}
	q.Shutdown(context.Background())
	return rows
}

func (b *Batch) recognize(ctx context.Context, path string) export.BatchRow {
	row := export.BatchRow{Path: path, Outcome: recognition.OutcomeFailed}
	if err := ctx.Err(); err != nil {
		row.Err = err
		return row
	}

	info, err := os.Stat(path)
	if err != nil {
		row.Err = err
		return row
	}
	if info.Size() > constants.MaxDocumentBytes {
		row.Err = common.InputRejected(fmt.Sprintf("document is %d bytes, limit is %d", info.Size(), constants.MaxDocumentBytes))
		return row
	}
	content, err := os.ReadFile(path)
	if err != nil {
		row.Err = err
		return row
	}

	doc := recognition.Document{Name: filepath.Base(path), MediaType: MediaTypeFor(path), Content: content}
	row.Result, row.Outcome, row.Err = b.recognizer.Run(ctx, doc, nil)
	return row
}
