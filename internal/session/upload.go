package session

import (
	"context"
	"fmt"

	"github.com/HendryAvila/ctcoach/internal/dataset"
	"github.com/HendryAvila/ctcoach/internal/pipeline"
	"go.uber.org/zap"
)

// LoadDataset parses src, asks the generator for the dashboard context and
// moves the session from Upload to Define. It blocks until the analysis is
// done. A failed analysis still completes the upload with a placeholder
// context; a failed parse leaves the session in Upload.
func (s *Session) LoadDataset(ctx context.Context, src dataset.Source) (Snapshot, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	if s.phase != pipeline.PhaseUpload {
		phase := s.phase
		s.mu.Unlock()
		return Snapshot{}, fmt.Errorf("%w: loading a dataset requires the %s phase (currently %s)",
			ErrWrongPhase, pipeline.PhaseUpload.Title(), phase.Title())
	}
	if s.uploading {
		s.mu.Unlock()
		return Snapshot{}, ErrUploadInProgress
	}
	s.uploading = true
	gen, genCtx := s.generation, s.ctx
	s.mu.Unlock()

	// The upload is abandoned when either the caller or a reset cancels it.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(genCtx, cancel)
	defer stop()

	ds, err := s.loader.Load(ctx, src)
	if err != nil {
		s.abandonUpload(gen)
		return Snapshot{}, fmt.Errorf("loading dataset: %w", err)
	}

	analysis, err := s.gen.AnalyzeContext(ctx, ds.PrimaryCSV)
	switch {
	case ctx.Err() != nil:
		s.abandonUpload(gen)
		if genCtx.Err() != nil {
			return Snapshot{}, ErrStaleSession
		}
		return Snapshot{}, ctx.Err()
	case err != nil:
		s.log.Warn("dashboard analysis failed", zap.String("dataset", ds.Name), zap.Error(err))
		analysis = ContextFailedText
	case analysis == "":
		analysis = ContextEmptyText
	}

	bench, err := dataset.NewWorkbench(ctx, ds)
	if err != nil {
		// Queries are optional; the exercise works without them.
		s.log.Warn("building dataset workbench", zap.String("dataset", ds.Name), zap.Error(err))
		bench = nil
	}

	s.mu.Lock()
	if s.closed || gen != s.generation {
		s.mu.Unlock()
		if bench != nil {
			_ = bench.Close()
		}
		s.log.Debug("discarding upload for stale session", zap.Uint64("generation", gen))
		return Snapshot{}, ErrStaleSession
	}
	s.ds = ds
	s.bench = bench
	s.dashboard = analysis
	s.hasContext = true
	s.inputs = pipeline.NewInputs()
	s.feedback.Reset()
	s.uploading = false
	ev := s.transitionLocked(pipeline.PhaseDefine)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.log.Info("dataset loaded",
		zap.String("dataset", ds.Name),
		zap.Strings("sheets", ds.SheetNames),
		zap.Bool("workbench", bench != nil))
	s.emitPhase(ev)
	return snap, nil
}

func (s *Session) abandonUpload(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen == s.generation {
		s.uploading = false
	}
}

// Dataset returns the loaded dataset, or ErrNoDataset.
func (s *Session) Dataset() (*dataset.Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ds == nil {
		return nil, ErrNoDataset
	}
	return s.ds, nil
}

// Tables lists the SQL tables built from the dataset's sheets.
func (s *Session) Tables() ([]dataset.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bench == nil {
		return nil, ErrNoDataset
	}
	return s.bench.Tables(), nil
}

// Query runs a read-only SQL statement against the dataset's sheets.
func (s *Session) Query(ctx context.Context, query string, limit int) (*dataset.QueryResult, error) {
	s.mu.Lock()
	bench := s.bench
	s.mu.Unlock()
	if bench == nil {
		return nil, ErrNoDataset
	}
	// A concurrent reset closes the workbench; the query then fails with
	// the driver's closed-database error.
	return bench.Query(ctx, query, limit)
}
