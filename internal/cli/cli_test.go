package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/stonegoods/catmig/internal/domain"
	"github.com/stonegoods/catmig/internal/importlog"
	"github.com/stonegoods/catmig/internal/testutil"
)

// resetFlags restores every flag to its default; the command tree and its
// bound variables are package globals shared between tests.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// isolate points HOME and cwd at a temp dir and clears CATMIG_* so the
// developer's config never leaks in.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, kv := range os.Environ() {
		if k, _, _ := strings.Cut(kv, "="); strings.HasPrefix(k, "CATMIG_") {
			t.Setenv(k, "")
			os.Unsetenv(k)
		}
	}
	oldCwd, _ := os.Getwd()
	t.Cleanup(func() { os.Chdir(oldCwd) })
	if err := os.Chdir(home); err != nil {
		t.Fatal(err)
	}
	return home
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := Execute(context.Background())
	return out.String(), err
}

type cliFixture struct {
	dbPath     string
	categories string
	products   string
	imgDir     string
}

func newCLIFixture(t *testing.T) cliFixture {
	t.Helper()
	home := isolate(t)
	imgDir := filepath.Join(home, "images")
	if err := os.Mkdir(imgDir, 0755); err != nil {
		t.Fatal(err)
	}
	testutil.TouchFiles(t, imgDir, "marble-wasbak-60cm-main.jpg", "marble-wasbak-60cm-1.jpg", "titan-flexlijm.png")

	cats := testutil.CategoriesDump(
		[3]string{"3", "Badkamer", "badkamer"},
		[3]string{"4", "Vloeren", "vloeren"},
	)
	prods := testutil.ProductsDump(
		testutil.LegacyProduct{Name: "Badkamertegel Wit", Slug: "badkamertegel-wit", CategoryID: "3", Price: "19.95", Stock: "10"},
		testutil.LegacyProduct{Name: "Marble Wasbak 60cm", Slug: "marble-wasbak-60cm", CategoryID: "99", Price: "349.00", Stock: "2"},
		testutil.LegacyProduct{Name: "Titan Flexlijm 25kg", Slug: "titan-flexlijm", CategoryID: "NULL", Price: "24.50", Stock: "40"},
		testutil.LegacyProduct{Name: "Cadeaubon", Slug: "cadeaubon", CategoryID: "NULL", Price: "50", Stock: "0"},
	)
	return cliFixture{
		dbPath:     filepath.Join(home, "catalog.db"),
		categories: testutil.WriteFile(t, home, "categories.sql", cats),
		products:   testutil.WriteFile(t, home, "products.sql", prods),
		imgDir:     imgDir,
	}
}

func (f cliFixture) migrateArgs(extra ...string) []string {
	args := []string{"migrate", "--db", f.dbPath,
		"--categories", f.categories, "--products", f.products, "--images", f.imgDir}
	return append(args, extra...)
}

func TestMigrateCommand_EndToEnd(t *testing.T) {
	f := newCLIFixture(t)

	out, err := execute(t, "db", "migrate", "--db", f.dbPath)
	if err != nil {
		t.Fatalf("db migrate failed: %v", err)
	}
	testutil.AssertStringContains(t, out, "Applied 2 migration(s).")

	metricsPath := filepath.Join(filepath.Dir(f.dbPath), "catmig.prom")
	out, err = execute(t, f.migrateArgs("--metrics-file", metricsPath)...)
	if err != nil {
		t.Fatalf("migrate failed: %v\n%s", err, out)
	}
	testutil.AssertStringContains(t, out, "Migration report")
	testutil.AssertStringContains(t, out, "created:          4")
	testutil.AssertStringContains(t, out, "multiple images:  1")
	testutil.AssertStringContains(t, testutil.ReadFile(t, metricsPath), `catmig_upserts_total{resource="product",result="created"} 4`)

	out, err = execute(t, "categories", "--db", f.dbPath, "-o", "json")
	if err != nil {
		t.Fatalf("categories failed: %v", err)
	}
	var cats []domain.Category
	if err := json.Unmarshal([]byte(out), &cats); err != nil {
		t.Fatalf("categories output is not JSON: %v\n%s", err, out)
	}
	slugs := make(map[string]bool)
	for _, c := range cats {
		slugs[c.Slug] = true
	}
	for _, want := range []string{"badkamer", "vloeren", "marble", "tools"} {
		if !slugs[want] {
			t.Errorf("expected category %s, got %v", want, slugs)
		}
	}

	out, err = execute(t, "runs", "--db", f.dbPath, "-o", "json")
	if err != nil {
		t.Fatalf("runs failed: %v", err)
	}
	var runs []importlog.Run
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("runs output is not JSON: %v\n%s", err, out)
	}
	if len(runs) != 1 || runs[0].Kind != importlog.KindMigrate || runs[0].Status != importlog.StatusCompleted {
		t.Fatalf("expected one completed migrate run, got %+v", runs)
	}

	out, err = execute(t, "runs", runs[0].ID, "--db", f.dbPath, "-o", "json")
	if err != nil {
		t.Fatalf("runs <id> failed: %v", err)
	}
	var counts map[string]int
	if err := json.Unmarshal([]byte(out), &counts); err != nil {
		t.Fatal(err)
	}
	if counts["product.created"] != 4 {
		t.Errorf("expected 4 product.created events, got %v", counts)
	}

	// Second run over the same dumps changes nothing
	out, err = execute(t, f.migrateArgs()...)
	if err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}
	testutil.AssertStringContains(t, out, "unchanged:        4")
}

func TestMigrateCommand_DryRunNeedsNoDatabase(t *testing.T) {
	f := newCLIFixture(t)

	out, err := execute(t, f.migrateArgs("--dry-run", "--json")...)
	if err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
	var rep struct {
		DryRun  bool `json:"dry_run"`
		Created int  `json:"created"`
	}
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("report is not JSON: %v\n%s", err, out)
	}
	if !rep.DryRun || rep.Created != 4 {
		t.Errorf("unexpected dry run report %+v", rep)
	}
	if _, err := os.Stat(f.dbPath); !os.IsNotExist(err) {
		t.Errorf("dry run must not create the database, stat err = %v", err)
	}
}

func TestMigrateCommand_CompareReport(t *testing.T) {
	f := newCLIFixture(t)

	out, err := execute(t, f.migrateArgs("--dry-run")...)
	if err != nil {
		t.Fatal(err)
	}
	saved := testutil.WriteFile(t, filepath.Dir(f.dbPath), "saved.txt", out)

	if out, err := execute(t, f.migrateArgs("--dry-run", "--compare-report", saved)...); err != nil {
		t.Fatalf("identical report should compare clean: %v\n%s", err, out)
	}

	changed := strings.Replace(out, "created:          4", "created:          3", 1)
	testutil.WriteFile(t, filepath.Dir(f.dbPath), "saved.txt", changed)
	out, err = execute(t, f.migrateArgs("--dry-run", "--compare-report", saved)...)
	if err == nil || !strings.Contains(err.Error(), "report differs") {
		t.Fatalf("expected report difference, got %v", err)
	}
	testutil.AssertStringContains(t, out, "+  created:          4")
}

func TestMigrateCommand_RequiresDumps(t *testing.T) {
	isolate(t)
	_, err := execute(t, "migrate", "--dry-run")
	if err == nil || !strings.Contains(err.Error(), "both dumps are required") {
		t.Fatalf("expected missing dump error, got %v", err)
	}
}

func TestCommands_RequireMigratedDatabase(t *testing.T) {
	f := newCLIFixture(t)
	_, err := execute(t, "categories", "--db", f.dbPath)
	if err == nil || !strings.Contains(err.Error(), "catmig db migrate") {
		t.Fatalf("expected pending migration error, got %v", err)
	}
}

func TestRepairCommand(t *testing.T) {
	f := newCLIFixture(t)
	if _, err := execute(t, "db", "migrate", "--db", f.dbPath); err != nil {
		t.Fatal(err)
	}
	if out, err := execute(t, f.migrateArgs()...); err != nil {
		t.Fatalf("migrate failed: %v\n%s", err, out)
	}

	// Only shows up after the migration, so cadeaubon kept the placeholder
	testutil.TouchFiles(t, f.imgDir, "cadeaubon-kaart.jpg")

	out, err := execute(t, "repair-images", "--db", f.dbPath, "--images", f.imgDir, "--dry-run")
	if err != nil {
		t.Fatalf("repair dry run failed: %v", err)
	}
	testutil.AssertStringContains(t, out, "Image repair report (dry run)")
	testutil.AssertStringContains(t, out, "repaired:         1")

	out, err = execute(t, "repair-images", "--db", f.dbPath, "--images", f.imgDir)
	if err != nil {
		t.Fatalf("repair failed: %v", err)
	}
	testutil.AssertStringContains(t, out, "cadeaubon (15): /images/products/cadeaubon-kaart.jpg")

	out, err = execute(t, "repair-images", "--db", f.dbPath, "--images", f.imgDir)
	if err != nil {
		t.Fatal(err)
	}
	// badkamertegel-wit still has nothing to match
	testutil.AssertStringContains(t, out, "scanned:          1")
	testutil.AssertStringContains(t, out, "repaired:         0")
}

func TestClassifyCommand(t *testing.T) {
	isolate(t)

	out, err := execute(t, "classify", "Marble Wasbak 60cm")
	if err != nil {
		t.Fatalf("classify failed: %v", err)
	}
	testutil.AssertStringContains(t, out, "target: marble (rule marble)")
	testutil.AssertStringContains(t, out, "source: Hammam Living")
	testutil.AssertStringContains(t, out, "unit:   m2")

	out, err = execute(t, "classify", "Cadeaubon")
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertStringContains(t, out, "target: none (fallback category)")
	testutil.AssertStringContains(t, out, "unit:   piece")
}

func TestClassifyCommand_RulesFile(t *testing.T) {
	home := isolate(t)
	rules := testutil.WriteFile(t, home, "rules.yaml", "rules:\n  - target: giftcards\n    keywords: [Cadeau]\n")
	t.Setenv("CATMIG_RULES_FILE", rules)

	out, err := execute(t, "classify", "Cadeaubon", "--json")
	if err != nil {
		t.Fatalf("classify failed: %v", err)
	}
	var res classification
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatal(err)
	}
	if !res.Matched || res.Target != "giftcards" || res.Rule != "giftcards" {
		t.Errorf("unexpected classification %+v", res)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertStringContains(t, out, "catmig version dev")
}
