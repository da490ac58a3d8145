package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bryanwahyu/csvask/internal/application"
	domain "github.com/bryanwahyu/csvask/internal/domain/relay"
)

// Service implements the relay use-cases.
// It holds no mutable state and is safe for concurrent use.
type Service struct {
	Catalog  domain.Catalog
	Analyzer domain.Analyzer
	Clock    application.Clock
	Log      *slog.Logger

	// MaxFileBytes bounds the size of a relayed file. Zero disables the check.
	MaxFileBytes int64
}

// Relay validates the pair, resolves the file, forwards it with the question
// and normalizes the answer. Failures are always *domain.Error.
func (s *Service) Relay(ctx context.Context, fileID, question string) (domain.Result, error) {
	start := s.now()

	res, err := s.relay(ctx, fileID, question)

	log := s.logger().With("file", fileID, "elapsed", s.now().Sub(start))
	if err != nil {
		rerr := domain.AsError(err)
		log.Warn("relay failed", "kind", rerr.Kind, "status", rerr.StatusCode(), "error", err)
		return domain.Result{}, rerr
	}
	log.Info("relay completed", "answer_len", len(res.Answer))
	return res, nil
}

func (s *Service) relay(ctx context.Context, fileID, question string) (domain.Result, error) {
	req, err := domain.NewRequest(fileID, question)
	if err != nil {
		return domain.Result{}, err
	}

	file, err := s.Catalog.Resolve(ctx, req.FileID)
	if err != nil {
		return domain.Result{}, classify(err, domain.KindInternal)
	}
	if s.MaxFileBytes > 0 && file.Size > s.MaxFileBytes {
		return domain.Result{}, domain.Wrap(domain.KindTooLarge,
			fmt.Errorf("%s is %d bytes, limit %d", file.Name, file.Size, s.MaxFileBytes))
	}

	body, err := s.Catalog.Open(ctx, file)
	if err != nil {
		return domain.Result{}, classify(err, domain.KindInternal)
	}
	defer body.Close()

	text, err := s.Analyzer.Analyze(ctx, domain.Document{File: file, Body: body}, req.Question)
	if err != nil {
		return domain.Result{}, classify(err, domain.KindUpstream)
	}
	return domain.NewResult(text), nil
}

// ListFiles returns the identifiers a caller may relay.
func (s *Service) ListFiles(ctx context.Context) ([]domain.FileEntry, error) {
	files, err := s.Catalog.List(ctx)
	if err != nil {
		return nil, classify(err, domain.KindInternal)
	}
	if files == nil {
		files = []domain.FileEntry{}
	}
	return files, nil
}

// classify keeps domain errors as they are and wraps anything else in fallback.
func classify(err error, fallback domain.Kind) error {
	var rerr *domain.Error
	if errors.As(err, &rerr) {
		return err
	}
	return domain.Wrap(fallback, err)
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}

func (s *Service) logger() *slog.Logger {
	if s.Log == nil {
		return slog.Default()
	}
	return s.Log
}
