package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AnTengye/rollingquote/config"
	"github.com/AnTengye/rollingquote/model"
	"github.com/AnTengye/rollingquote/pkg/logger"
	"github.com/AnTengye/rollingquote/pkg/metrics"
	"github.com/AnTengye/rollingquote/service/extract"
	"github.com/AnTengye/rollingquote/service/pricing"
)

// DocumentStore is the object storage capability the quote builder reads from.
type DocumentStore interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
	// WordCount returns the count recorded at upload time, if any.
	WordCount(ctx context.Context, ref string) (int, bool, error)
}

// QuoteRequest is the input to Build.
type QuoteRequest struct {
	OrderID      string
	Documents    []model.UploadedDocument
	Pairs        []model.LanguagePair
	Options      model.QuoteOptions
	AllowPartial bool
}

// QuoteService turns uploaded documents into a priced quote.
type QuoteService struct {
	docs           DocumentStore
	engine         *pricing.Engine
	orders         *OrderStore
	metrics        *metrics.Registry
	maxParallel    int
	extractTimeout time.Duration
	maxFiles       int
}

// NewQuoteService wires the quote builder. orders may be nil, in which case
// quotes are never persisted.
func NewQuoteService(docs DocumentStore, engine *pricing.Engine, orders *OrderStore, reg *metrics.Registry, cfg config.QuoteConfig) *QuoteService {
	return &QuoteService{
		docs:           docs,
		engine:         engine,
		orders:         orders,
		metrics:        reg,
		maxParallel:    cfg.MaxParallel,
		extractTimeout: cfg.ExtractTimeout,
		maxFiles:       cfg.MaxFiles,
	}
}

// Engine exposes the pricing engine the service quotes with.
func (s *QuoteService) Engine() *pricing.Engine { return s.engine }

// Build analyzes every document and prices the result. A quote whose status is
// not priced is still returned without error; callers decide how to surface it.
func (s *QuoteService) Build(ctx context.Context, tenant string, req QuoteRequest) (*model.Quote, error) {
	opts, pairs, err := s.validate(tenant, req)
	if err != nil {
		return nil, err
	}
	if req.OrderID != "" {
		ctx = logger.WithOrderID(ctx, req.OrderID)
	}

	files := s.analyzeAll(ctx, req.Documents)

	q := &model.Quote{
		Pairs:    pairs,
		Options:  opts,
		Currency: s.engine.Currency(),
		Files:    files,
	}
	var scanned, failed bool
	for _, f := range files {
		switch {
		case f.Failed():
			failed = true
		case f.Scanned:
			scanned = true
			q.TotalWords += f.Words
		default:
			q.TotalWords += f.Words
		}
	}

	switch {
	case scanned:
		q.Status = model.QuoteStatusScanned
	case failed && (!req.AllowPartial || len(q.FailedFiles()) == len(files)):
		q.Status = model.QuoteStatusIncomplete
	default:
		amount, lines, err := s.engine.PriceForOrder(q.TotalWords, pairs, opts)
		if err != nil {
			return nil, err
		}
		q.Status = model.QuoteStatusPriced
		q.AmountCents = amount
		q.Lines = lines
		s.metrics.QuoteWords.Observe(float64(q.TotalWords))
	}
	s.metrics.Quotes.WithLabelValues(string(q.Status)).Inc()

	logger.Info(ctx, "quote built",
		"status", q.Status,
		"files", len(files),
		"failed_files", len(q.FailedFiles()),
		"total_words", q.TotalWords,
		"amount_cents", q.AmountCents,
	)

	if q.Status == model.QuoteStatusPriced && req.OrderID != "" && s.orders != nil {
		if err := s.persist(ctx, tenant, req.OrderID, q); err != nil {
			return nil, err
		}
	}
	return q, nil
}

// validate checks the request before any document is touched. Unsupported
// pairs are rejected here so no extraction work is wasted on them.
func (s *QuoteService) validate(tenant string, req QuoteRequest) (model.QuoteOptions, []model.LanguagePair, error) {
	verr := &model.ValidationError{}
	if len(req.Documents) == 0 {
		verr.Add("files", "at least one file is required")
	}
	if len(req.Documents) > s.maxFiles {
		verr.Add("files", fmt.Sprintf("at most %d files per quote", s.maxFiles))
	}
	if len(req.Pairs) == 0 {
		verr.Add("pairs", "at least one language pair is required")
	}
	if req.OrderID != "" && !validOrderID(req.OrderID) {
		verr.Add("orderId", "must be 1-128 characters of letters, digits, '.', '_' or '-'")
	}
	if err := verr.Err(); err != nil {
		return model.QuoteOptions{}, nil, err
	}

	opts, err := req.Options.Normalize()
	if err != nil {
		return model.QuoteOptions{}, nil, err
	}

	for _, d := range req.Documents {
		if err := ValidateReference(tenant, d.StorageReference); err != nil {
			return model.QuoteOptions{}, nil, err
		}
	}

	catalog := s.engine.Catalog()
	pairs := make([]model.LanguagePair, len(req.Pairs))
	for i, p := range req.Pairs {
		pairs[i] = catalog.NormalizePair(p)
		if _, ok := catalog.BaseRate(pairs[i].Source, pairs[i].Target); !ok {
			return model.QuoteOptions{}, nil, model.UnsupportedPair(pairs[i])
		}
	}
	return opts, pairs, nil
}

// analyzeAll fans out over the documents. Each goroutine writes only its own
// slot, so one failure never touches another file's count.
func (s *QuoteService) analyzeAll(ctx context.Context, docs []model.UploadedDocument) []model.FileResult {
	results := make([]model.FileResult, len(docs))
	var g errgroup.Group
	g.SetLimit(s.maxParallel)
	for i, doc := range docs {
		g.Go(func() error {
			results[i] = s.analyze(ctx, doc)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (s *QuoteService) analyze(ctx context.Context, doc model.UploadedDocument) model.FileResult {
	res := model.FileResult{
		DisplayName:      doc.DisplayName,
		StorageReference: doc.StorageReference,
	}
	if res.DisplayName == "" {
		res.DisplayName = path.Base(doc.StorageReference)
	}
	// The stored object name always ends in the sanitized upload name, so its
	// extension is trustworthy even when the display name has none.
	name := path.Base(doc.StorageReference)

	words, cached, err := s.docs.WordCount(ctx, doc.StorageReference)
	if err == nil && !cached {
		words, err = s.extractWords(ctx, doc.StorageReference, name)
	}
	if err != nil {
		res.Err = err
		res.Error = fileErrorMessage(err)
		logger.Warn(ctx, "document analysis failed",
			"storage_reference", doc.StorageReference,
			"error", err,
		)
		return res
	}

	res.Words = words
	res.Cached = cached
	res.Scanned = extract.LikelyScanned(name, words)
	return res
}

// extractWords fetches and counts one document under the per-file timeout.
// Extraction itself is not cancellable, so it runs in its own goroutine and is
// abandoned when the deadline passes.
func (s *QuoteService) extractWords(ctx context.Context, ref, name string) (int, error) {
	fctx, cancel := context.WithTimeout(ctx, s.extractTimeout)
	defer cancel()

	data, err := s.docs.Fetch(fctx, ref)
	if err != nil {
		if fctx.Err() != nil {
			return 0, model.Upstream("fetch "+name, fctx.Err())
		}
		return 0, err
	}
	return s.countWithDeadline(fctx, name, data)
}

// Analyze counts the words in data under the per-file timeout.
func (s *QuoteService) Analyze(ctx context.Context, name string, data []byte) (int, error) {
	fctx, cancel := context.WithTimeout(ctx, s.extractTimeout)
	defer cancel()
	return s.countWithDeadline(fctx, name, data)
}

func (s *QuoteService) countWithDeadline(ctx context.Context, name string, data []byte) (int, error) {
	type result struct {
		words int
		err   error
	}
	done := make(chan result, 1)
	format := extract.DetectFormat(name, data)
	start := time.Now()
	go func() {
		text, err := extract.Extract(data, name)
		done <- result{words: extract.CountWords(text), err: err}
	}()

	select {
	case r := <-done:
		s.metrics.ExtractSeconds.WithLabelValues(string(format)).Observe(time.Since(start).Seconds())
		return r.words, r.err
	case <-ctx.Done():
		return 0, model.Upstream("extract "+name, ctx.Err())
	}
}

func (s *QuoteService) persist(ctx context.Context, tenant, orderID string, q *model.Quote) error {
	existing, err := s.orders.Get(ctx, orderID)
	switch {
	case err == nil:
		if existing.Tenant != "" && existing.Tenant != tenant {
			return fmt.Errorf("order %s: %w", orderID, model.ErrForbidden)
		}
	case !errors.Is(err, model.ErrNotFound):
		return err
	}

	if _, err := s.orders.SaveQuote(ctx, orderID, tenant, q); err != nil {
		return err
	}
	logger.Info(ctx, "quote saved to order", "total_words", q.TotalWords)
	return nil
}

// fileErrorMessage is the client-facing reason for a failed file.
func fileErrorMessage(err error) string {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return "file not found"
	case errors.Is(err, model.ErrUnsupportedFormat):
		return "unsupported or unreadable file format"
	case errors.Is(err, model.ErrValidation):
		return "file exceeds the size limit"
	case errors.Is(err, context.DeadlineExceeded):
		return "analysis timed out"
	default:
		return "file could not be analyzed"
	}
}
