package migrate

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/stonegoods/catmig/internal/legacy"
	"github.com/stonegoods/catmig/internal/metrics"
)

// CategoryCounts summarizes the category phase of a run
type CategoryCounts struct {
	Parsed         int `json:"parsed"`
	Created        int `json:"created"`
	Updated        int `json:"updated"`
	Skipped        int `json:"skipped"`
	TargetsCreated int `json:"targets_created"`
}

// SkipCounts are the product rows dropped before classification
type SkipCounts struct {
	Malformed int `json:"malformed"`
	Short     int `json:"short"`
	Missing   int `json:"missing"`
	Invalid   int `json:"invalid"`
}

// Total returns the number of skipped rows
func (s SkipCounts) Total() int { return s.Malformed + s.Short + s.Missing + s.Invalid }

// Report holds the counters of one migration run. The counters are for
// the operator only and have no effect on stored data.
type Report struct {
	mu sync.Mutex

	RunID       string         `json:"run_id,omitempty"`
	DryRun      bool           `json:"dry_run"`
	Categories  CategoryCounts `json:"categories"`
	Rows        int            `json:"rows"`
	Skipped     SkipCounts     `json:"skipped"`
	Branches    map[string]int `json:"branches"`
	Sources     map[string]int `json:"sources"`
	Created     int            `json:"created"`
	Updated     int            `json:"updated"`
	Unchanged   int            `json:"unchanged"`
	Failed      int            `json:"upsert_failed"`
	MultiImage  int            `json:"multi_image"`
	Placeholder int            `json:"placeholder"`
	Duration    time.Duration  `json:"duration_ns"`
}

func newReport() *Report {
	return &Report{Branches: map[string]int{}, Sources: map[string]int{}}
}

func (r *Report) addSkipped(s legacy.Stats) {
	r.Skipped = SkipCounts{Malformed: s.Malformed, Short: s.Short, Missing: s.Missing, Invalid: s.Invalid}
}

// rowDone records a product that reached the upsert step
func (r *Report) rowDone(branch, source string, images int, placeholder, created, changed, failed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Rows++
	r.Branches[branch]++
	if failed {
		r.Failed++
		return
	}
	r.Sources[source]++
	switch {
	case created:
		r.Created++
	case changed:
		r.Updated++
	default:
		r.Unchanged++
	}
	if placeholder {
		r.Placeholder++
	} else if images > 1 {
		r.MultiImage++
	}
}

// Format writes the operator summary. The output is stable for a given
// set of counters so saved reports can be compared.
func (r *Report) Format(w io.Writer) error {
	var b strings.Builder
	if r.DryRun {
		b.WriteString("Migration report (dry run)\n")
	} else {
		b.WriteString("Migration report\n")
	}
	b.WriteString("\nCategories\n")
	fmt.Fprintf(&b, "  parsed:           %d\n", r.Categories.Parsed)
	fmt.Fprintf(&b, "  created:          %d\n", r.Categories.Created)
	fmt.Fprintf(&b, "  updated:          %d\n", r.Categories.Updated)
	fmt.Fprintf(&b, "  skipped:          %d\n", r.Categories.Skipped)
	fmt.Fprintf(&b, "  targets created:  %d\n", r.Categories.TargetsCreated)

	b.WriteString("\nProducts\n")
	fmt.Fprintf(&b, "  rows:             %d\n", r.Rows)
	fmt.Fprintf(&b, "  created:          %d\n", r.Created)
	fmt.Fprintf(&b, "  updated:          %d\n", r.Updated)
	fmt.Fprintf(&b, "  unchanged:        %d\n", r.Unchanged)
	fmt.Fprintf(&b, "  upsert failed:    %d\n", r.Failed)

	b.WriteString("\nSkipped rows\n")
	fmt.Fprintf(&b, "  malformed:        %d\n", r.Skipped.Malformed)
	fmt.Fprintf(&b, "  too few columns:  %d\n", r.Skipped.Short)
	fmt.Fprintf(&b, "  missing fields:   %d\n", r.Skipped.Missing)
	fmt.Fprintf(&b, "  invalid:          %d\n", r.Skipped.Invalid)

	b.WriteString("\nClassification\n")
	writeCounts(&b, r.Branches)

	b.WriteString("\nSources\n")
	writeCounts(&b, r.Sources)

	b.WriteString("\nImages\n")
	fmt.Fprintf(&b, "  multiple images:  %d\n", r.MultiImage)
	fmt.Fprintf(&b, "  placeholder:      %d\n", r.Placeholder)

	_, err := io.WriteString(w, b.String())
	return err
}

func writeCounts(b *strings.Builder, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, k := range keys {
		fmt.Fprintf(b, "  %-18s%d\n", k+":", counts[k])
	}
}

// String returns the formatted report
func (r *Report) String() string {
	var b strings.Builder
	_ = r.Format(&b)
	return b.String()
}

// WriteJSON writes the report as indented JSON
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// Record adds the report's counters to a metrics recorder
func (r *Report) Record(m *metrics.Recorder) {
	m.Rows("processed", r.Rows)
	m.Rows("malformed", r.Skipped.Malformed)
	m.Rows("short", r.Skipped.Short)
	m.Rows("missing", r.Skipped.Missing)
	m.Rows("invalid", r.Skipped.Invalid)
	for branch, n := range r.Branches {
		m.Branch(branch, n)
	}
	for source, n := range r.Sources {
		m.Source(source, n)
	}
	m.Upserts("category", "created", r.Categories.Created+r.Categories.TargetsCreated)
	m.Upserts("category", "updated", r.Categories.Updated)
	m.Upserts("product", "created", r.Created)
	m.Upserts("product", "updated", r.Updated)
	m.Upserts("product", "unchanged", r.Unchanged)
	m.Upserts("product", "failed", r.Failed)
	m.Images("multi", r.MultiImage)
	m.Images("placeholder", r.Placeholder)
	m.Images("single", r.Rows-r.Failed-r.MultiImage-r.Placeholder)
}

// CompareReports returns a unified diff between a saved report and the
// current one, or "" when they match.
func CompareReports(saved, current string) (string, error) {
	if saved == current {
		return "", nil
	}
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(saved),
		B:        difflib.SplitLines(current),
		FromFile: "saved",
		ToFile:   "current",
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("failed to diff reports: %w", err)
	}
	return text, nil
}
