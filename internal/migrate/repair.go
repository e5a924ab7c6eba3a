package migrate

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stonegoods/catmig/internal/images"
	"github.com/stonegoods/catmig/internal/metrics"
)

// RepairOptions configure a fuzzy image repair pass
type RepairOptions struct {
	// DryRun scores candidates without writing them
	DryRun bool
}

// RepairMatch is the new image list found for one product
type RepairMatch struct {
	Slug     string   `json:"slug"`
	Images   []string `json:"images"`
	TopScore int      `json:"top_score"`
}

// RepairReport summarizes a repair pass
type RepairReport struct {
	Scanned   int           `json:"scanned"`
	Repaired  int           `json:"repaired"`
	Unmatched int           `json:"unmatched"`
	Failed    int           `json:"failed"`
	DryRun    bool          `json:"dry_run"`
	Matches   []RepairMatch `json:"matches"`
	Duration  time.Duration `json:"duration_ns"`
}

// Repair rescans products that still carry the placeholder (or no image)
// and stores the fuzzy matches found for them. A failed update is logged
// and counted; the pass continues.
func (m *Migrator) Repair(ctx context.Context, opts RepairOptions) (*RepairReport, error) {
	start := time.Now()
	rep := &RepairReport{DryRun: opts.DryRun}
	defer func() { rep.Duration = time.Since(start) }()

	products, err := m.products.ProductsWithPlaceholder(ctx, m.locator.Placeholder())
	if err != nil {
		return rep, fmt.Errorf("failed to load placeholder products: %w", err)
	}

	for _, p := range products {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		rep.Scanned++

		matches := m.locator.Fuzzy(ctx, p.Slug, p.Name)
		if len(matches) == 0 {
			rep.Unmatched++
			continue
		}

		paths := images.Paths(matches)
		if !opts.DryRun {
			if err := m.products.UpdateProductImages(ctx, p.Slug, paths); err != nil {
				m.logger.Warn("image update failed", zap.String("slug", p.Slug), zap.Error(err))
				rep.Failed++
				continue
			}
		}
		rep.Repaired++
		rep.Matches = append(rep.Matches, RepairMatch{Slug: p.Slug, Images: paths, TopScore: matches[0].Score})
		m.logger.Debug("product images repaired",
			zap.String("slug", p.Slug),
			zap.Int("images", len(paths)),
			zap.Int("top_score", matches[0].Score))
	}

	m.logger.Info("repair finished",
		zap.Int("scanned", rep.Scanned),
		zap.Int("repaired", rep.Repaired),
		zap.Int("unmatched", rep.Unmatched))
	return rep, nil
}

// Format writes the repair summary followed by one line per repaired product
func (r *RepairReport) Format(w io.Writer) error {
	var b strings.Builder
	if r.DryRun {
		b.WriteString("Image repair report (dry run)\n\n")
	} else {
		b.WriteString("Image repair report\n\n")
	}
	fmt.Fprintf(&b, "  scanned:          %d\n", r.Scanned)
	fmt.Fprintf(&b, "  repaired:         %d\n", r.Repaired)
	fmt.Fprintf(&b, "  unmatched:        %d\n", r.Unmatched)
	fmt.Fprintf(&b, "  failed:           %d\n", r.Failed)
	if len(r.Matches) > 0 {
		b.WriteString("\n")
		for _, m := range r.Matches {
			fmt.Fprintf(&b, "  %s (%d): %s\n", m.Slug, m.TopScore, strings.Join(m.Images, ", "))
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Record adds the repair counters to a metrics recorder
func (r *RepairReport) Record(m *metrics.Recorder) {
	m.Images("repaired", r.Repaired)
	m.Images("unmatched", r.Unmatched)
	m.Upserts("product", "failed", r.Failed)
}
