package images

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Locator binds a listing source to the matching rules. The first
// successful listing is cached for the locator's lifetime; a failed
// listing is retried on the next lookup.
type Locator struct {
	lister  Lister
	opts    Options
	weights Weights
	logger  *zap.Logger

	mu    sync.Mutex
	files []string
	ok    bool
}

// NewLocator creates a locator. A nil lister behaves like an empty
// directory.
func NewLocator(lister Lister, opts Options, weights Weights, logger *zap.Logger) *Locator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Locator{lister: lister, opts: opts.withDefaults(), weights: weights, logger: logger}
}

// Placeholder returns the sentinel path used when no image is found
func (l *Locator) Placeholder() string { return l.opts.Placeholder }

func (l *Locator) listing(ctx context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ok {
		return l.files, nil
	}
	if l.lister == nil {
		l.ok = true
		return nil, nil
	}
	files, err := l.lister.List(ctx)
	if err != nil {
		return nil, err
	}
	l.files, l.ok = files, true
	return files, nil
}

// Strict returns the stored image paths for a product. Listing errors
// degrade to the placeholder.
func (l *Locator) Strict(ctx context.Context, slug string) []string {
	files, err := l.listing(ctx)
	if err != nil {
		l.logger.Warn("image listing failed, using placeholder", zap.String("slug", slug), zap.Error(err))
		return []string{l.opts.Placeholder}
	}
	return Strict(slug, files, l.opts)
}

// Fuzzy returns scored candidates with their stored paths. Listing errors
// yield no candidates.
func (l *Locator) Fuzzy(ctx context.Context, slug, name string) []ImageMatch {
	files, err := l.listing(ctx)
	if err != nil {
		l.logger.Warn("image listing failed", zap.String("slug", slug), zap.Error(err))
		return nil
	}
	cands := Fuzzy(slug, name, files, l.weights)
	out := make([]ImageMatch, len(cands))
	for i, c := range cands {
		out[i] = ImageMatch{File: c.Path, Path: l.opts.Path(c.Path), Score: c.Score}
	}
	return out
}

// ImageMatch is a fuzzy candidate with its stored path
type ImageMatch struct {
	File  string
	Path  string
	Score int
}

// Paths returns the stored paths of matches in order
func Paths(matches []ImageMatch) []string {
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Path
	}
	return out
}
