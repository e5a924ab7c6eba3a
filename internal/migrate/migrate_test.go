package migrate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/stonegoods/catmig/internal/domain"
	"github.com/stonegoods/catmig/internal/images"
	"github.com/stonegoods/catmig/internal/reconcile"
	"github.com/stonegoods/catmig/internal/sqldump"
	"github.com/stonegoods/catmig/internal/store"
	"github.com/stonegoods/catmig/internal/store/memory"
	"github.com/stonegoods/catmig/internal/testutil"
)

type fixture struct {
	opts   Options
	imgDir string
}

func setupFixture(t *testing.T, products ...testutil.LegacyProduct) fixture {
	t.Helper()
	dir := testutil.TempDir(t)
	imgDir := testutil.TempDir(t)

	cats := testutil.CategoriesDump(
		[3]string{"3", "Badkamer", "badkamer"},
		[3]string{"4", "Vloeren", "vloeren"},
	)
	return fixture{
		opts: Options{
			CategoriesPath: testutil.WriteFile(t, dir, "categories.sql", cats),
			ProductsPath:   testutil.WriteFile(t, dir, "products.sql", testutil.ProductsDump(products...)),
		},
		imgDir: imgDir,
	}
}

func newMigrator(cats store.CategoryRepository, prods store.ProductRepository, imgDir string) *Migrator {
	loc := images.NewLocator(images.DirLister{Dir: imgDir}, images.Options{}, images.DefaultWeights, zap.NewNop())
	return New(cats, prods, loc, reconcile.DefaultRuleSet(), zap.NewNop())
}

var sampleProducts = []testutil.LegacyProduct{
	{Name: "Badkamertegel Wit", Slug: "badkamertegel-wit", CategoryID: "3", Price: "19.95", Stock: "10", Details: "Glanzend"},
	{Name: "Marble Wasbak 60cm", Slug: "marble-wasbak-60cm", CategoryID: "99", Price: "349.00", Stock: "2"},
	{Name: "Titan Flexlijm 25kg", Slug: "titan-flexlijm", CategoryID: "NULL", Price: "24.50", Stock: "40"},
	{Name: "Cadeaubon", Slug: "cadeaubon", CategoryID: "NULL", Price: "50", Stock: "0"},
}

func TestRun_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	fx := setupFixture(t, sampleProducts...)
	testutil.TouchFiles(t, fx.imgDir, "marble-wasbak-60cm-main.jpg", "marble-wasbak-60cm-1.jpg", "titan-flexlijm.png")

	st := store.New(testutil.TempDB(t))
	m := newMigrator(st.Categories, st.Products, fx.imgDir)

	first, err := m.Run(ctx, fx.opts)
	if err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	if first.Created != 4 || first.Rows != 4 {
		t.Errorf("expected 4 created rows, got %+v", first)
	}

	second, err := m.Run(ctx, fx.opts)
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if second.Created != 0 || second.Unchanged != 4 {
		t.Errorf("expected all rows unchanged on rerun, got created=%d updated=%d unchanged=%d",
			second.Created, second.Updated, second.Unchanged)
	}
	if second.Categories.Created != 0 || second.Categories.TargetsCreated != 0 {
		t.Errorf("expected no new categories on rerun, got %+v", second.Categories)
	}

	n, err := st.Products.CountProducts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Errorf("expected 4 products after two runs, got %d", n)
	}

	sink, err := st.Products.ProductBySlug(ctx, "marble-wasbak-60cm")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"/images/products/marble-wasbak-60cm-main.jpg", "/images/products/marble-wasbak-60cm-1.jpg"}
	if diff := cmp.Diff(want, sink.Images); diff != "" {
		t.Errorf("images mismatch (-want +got):\n%s", diff)
	}
	if sink.Source != domain.SourceHammam || sink.Unit != domain.UnitSquareMeter {
		t.Errorf("unexpected source/unit %q/%q", sink.Source, sink.Unit)
	}
	marble, _ := st.Categories.CategoryBySlug(ctx, "marble")
	if sink.CategoryID != marble.ID {
		t.Errorf("expected marble category %d, got %d", marble.ID, sink.CategoryID)
	}
}

func TestRun_RefreshesMutableFields(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	fx := setupFixture(t, testutil.LegacyProduct{Name: "Metro Tegel", Slug: "metro-tegel", CategoryID: "4", Price: "10", Stock: "1", Details: "Oud"})
	m := newMigrator(repo, repo, fx.imgDir)
	if _, err := m.Run(ctx, fx.opts); err != nil {
		t.Fatal(err)
	}

	changed := setupFixture(t, testutil.LegacyProduct{Name: "Metro Tegel", Slug: "metro-tegel", CategoryID: "3", Price: "12.50", Stock: "5", Details: "Nieuw"})
	testutil.TouchFiles(t, fx.imgDir, "metro-tegel-main.webp")
	m = newMigrator(repo, repo, fx.imgDir)
	rep, err := m.Run(ctx, changed.opts)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Updated != 1 {
		t.Errorf("expected 1 updated product, got %+v", rep)
	}

	p, _ := repo.ProductBySlug(ctx, "metro-tegel")
	vloeren, _ := repo.CategoryBySlug(ctx, "vloeren")
	if p.Description != "Oud" || p.CategoryID != vloeren.ID {
		t.Errorf("create-only fields changed: %+v", p)
	}
	if p.Price.String() != "12.5" || p.Stock != 5 || p.Images[0] != "/images/products/metro-tegel-main.webp" {
		t.Errorf("mutable fields not refreshed: %+v", p)
	}
	if p.LegacyCategoryID == nil || *p.LegacyCategoryID != 3 {
		t.Errorf("expected legacy category 3, got %v", p.LegacyCategoryID)
	}
}

func TestRun_Branches(t *testing.T) {
	repo := memory.New()
	fx := setupFixture(t, sampleProducts...)
	rep, err := newMigrator(repo, repo, fx.imgDir).Run(context.Background(), fx.opts)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := map[string]int{
		reconcile.BranchLegacy:   1,
		"marble":                 1,
		"tools":                  1,
		reconcile.BranchFallback: 1,
	}
	if diff := cmp.Diff(want, rep.Branches); diff != "" {
		t.Errorf("branch counters mismatch (-want +got):\n%s", diff)
	}
	wantSources := map[string]int{domain.SourceHammam: 1, domain.SourceOXTrade: 1, domain.SourceUnknown: 2}
	if diff := cmp.Diff(wantSources, rep.Sources); diff != "" {
		t.Errorf("source counters mismatch (-want +got):\n%s", diff)
	}
	if rep.Placeholder != 4 {
		t.Errorf("expected 4 placeholder products, got %d", rep.Placeholder)
	}

	// Total miss falls back to the first stored category
	gift, _ := repo.ProductBySlug(context.Background(), "cadeaubon")
	first, _ := repo.FirstCategory(context.Background())
	if gift.CategoryID != first.ID || gift.CategoryID == 0 {
		t.Errorf("expected fallback category %d, got %d", first.ID, gift.CategoryID)
	}
}

func TestRun_SkipsShortRows(t *testing.T) {
	repo := memory.New()
	fx := setupFixture(t,
		testutil.LegacyProduct{Name: "Graniet Blad", Slug: "graniet-blad", Price: "1", Columns: 40},
		testutil.LegacyProduct{Name: "Onyx Blad", Slug: "onyx-blad", Price: "1"},
	)

	rep, err := newMigrator(repo, repo, fx.imgDir).Run(context.Background(), fx.opts)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if rep.Skipped.Short != 1 || rep.Rows != 1 {
		t.Errorf("expected one short row skipped, got skipped=%+v rows=%d", rep.Skipped, rep.Rows)
	}
	if rep.Branches["granite"] != 0 || rep.Branches["onyx"] != 1 {
		t.Errorf("skipped row reached classification: %v", rep.Branches)
	}
	if _, err := repo.ProductBySlug(context.Background(), "graniet-blad"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected no record for short row, got %v", err)
	}
}

func TestRun_UpsertFailures(t *testing.T) {
	fx := setupFixture(t, sampleProducts...)

	repo := memory.New()
	repo.FailSlugs = map[string]error{"marble-wasbak-60cm": errors.New("constraint violation")}
	rep, err := newMigrator(repo, repo, fx.imgDir).Run(context.Background(), fx.opts)
	if err != nil {
		t.Fatalf("expected isolated failure, got %v", err)
	}
	if rep.Failed != 1 || rep.Created != 3 {
		t.Errorf("expected 1 failed and 3 created, got %+v", rep)
	}

	repo = memory.New()
	repo.FailSlugs = map[string]error{"marble-wasbak-60cm": errors.New("constraint violation")}
	opts := fx.opts
	opts.FailFast = true
	rep, err = newMigrator(repo, repo, fx.imgDir).Run(context.Background(), opts)
	if err == nil {
		t.Fatal("expected fail-fast run to abort")
	}
	if rep.Created != 1 {
		t.Errorf("expected rows after the failure to be left alone, got %d created", rep.Created)
	}
}

func TestRun_FatalInputs(t *testing.T) {
	dir := testutil.TempDir(t)
	repo := memory.New()
	m := newMigrator(repo, repo, dir)

	noValues := testutil.WriteFile(t, dir, "broken.sql", "INSERT INTO `categories` (`id`,`name`);")
	products := testutil.WriteFile(t, dir, "products.sql", testutil.ProductsDump(sampleProducts...))

	_, err := m.Run(context.Background(), Options{CategoriesPath: noValues, ProductsPath: products})
	if !errors.Is(err, sqldump.ErrNoValues) {
		t.Errorf("expected ErrNoValues, got %v", err)
	}

	cats := testutil.WriteFile(t, dir, "categories.sql", testutil.CategoriesDump([3]string{"1", "A", "a"}))
	_, err = m.Run(context.Background(), Options{CategoriesPath: cats, ProductsPath: dir + "/missing.sql"})
	if err == nil {
		t.Error("expected error for unreadable products dump")
	}
}

func TestRun_Workers(t *testing.T) {
	defer goleak.VerifyNone(t)

	var products []testutil.LegacyProduct
	for i := 0; i < 50; i++ {
		products = append(products, testutil.LegacyProduct{
			Name:       fmt.Sprintf("Travertin Tegel %d", i),
			Slug:       fmt.Sprintf("travertin-tegel-%d", i),
			CategoryID: "NULL",
			Price:      "10",
			Stock:      "1",
		})
	}
	// A repeated slug must be processed in dump order by one worker
	products = append(products, testutil.LegacyProduct{Name: "Travertin Tegel 0", Slug: "travertin-tegel-0", Price: "99", Stock: "7"})
	fx := setupFixture(t, products...)

	repo := memory.New()
	opts := fx.opts
	opts.Workers = 4
	rep, err := newMigrator(repo, repo, fx.imgDir).Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if rep.Rows != 51 || rep.Created != 50 || rep.Updated != 1 {
		t.Errorf("unexpected counters rows=%d created=%d updated=%d", rep.Rows, rep.Created, rep.Updated)
	}
	if rep.Branches["travertine"] != 51 {
		t.Errorf("expected 51 travertine resolutions, got %v", rep.Branches)
	}

	p, _ := repo.ProductBySlug(context.Background(), "travertin-tegel-0")
	if p.Price.String() != "99" || p.Stock != 7 {
		t.Errorf("expected last row to win, got price=%s stock=%d", p.Price, p.Stock)
	}
}

func TestRun_WorkersFailFast(t *testing.T) {
	defer goleak.VerifyNone(t)

	var products []testutil.LegacyProduct
	for i := 0; i < 200; i++ {
		products = append(products, testutil.LegacyProduct{Name: "Tegel", Slug: fmt.Sprintf("tegel-%d", i), Price: "1"})
	}
	fx := setupFixture(t, products...)

	repo := memory.New()
	repo.FailSlugs = map[string]error{"tegel-3": errors.New("boom")}
	opts := fx.opts
	opts.Workers = 3
	opts.FailFast = true
	if _, err := newMigrator(repo, repo, fx.imgDir).Run(context.Background(), opts); err == nil {
		t.Fatal("expected fail-fast error")
	}
}

func TestRun_Canceled(t *testing.T) {
	fx := setupFixture(t, sampleProducts...)
	repo := memory.New()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newMigrator(repo, repo, fx.imgDir).Run(ctx, fx.opts); err == nil {
		t.Error("expected error for canceled context")
	}
}

func TestPartition(t *testing.T) {
	for _, slug := range []string{"a", "marble-wasbak", "tegel-1"} {
		p := Partition(slug, 5)
		if p < 0 || p >= 5 {
			t.Errorf("partition %d out of range", p)
		}
		if Partition(slug, 5) != p {
			t.Errorf("partition of %s is not stable", slug)
		}
	}
}

func TestSourceFor(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Titan Flexlijm", domain.SourceOXTrade},
		{"Kalekim voeg", domain.SourceOXTrade},
		{"OX Trade primer", domain.SourceOXTrade},
		{"Schonox SE", domain.SourceOXTrade},
		{"Marmeren wasbak", domain.SourceHammam},
		{"Hammam set", domain.SourceHammam},
		{"Wastafel Onyx", domain.SourceHammam},
		{"Travertin tegel", domain.SourceUnknown},
	}
	for _, tt := range tests {
		if got := SourceFor(tt.name); got != tt.want {
			t.Errorf("SourceFor(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestUnitFor(t *testing.T) {
	if UnitFor("tiles") != domain.UnitSquareMeter || UnitFor("onyx") != domain.UnitSquareMeter {
		t.Error("expected stone and tiles to be sold per m2")
	}
	if UnitFor("sinks") != domain.UnitPiece || UnitFor("badkamer") != domain.UnitPiece {
		t.Error("expected fixtures and unknown targets to be sold per piece")
	}
}

func TestRepair(t *testing.T) {
	ctx := context.Background()
	fx := setupFixture(t,
		testutil.LegacyProduct{Name: "Nero Marquina Tegel", Slug: "nero-marquina", Price: "1"},
		testutil.LegacyProduct{Name: "Cadeaubon", Slug: "cadeaubon", Price: "1"},
	)
	repo := memory.New()
	m := newMigrator(repo, repo, fx.imgDir)
	if _, err := m.Run(ctx, fx.opts); err != nil {
		t.Fatal(err)
	}

	// Files added after the migration; none starts with the slug
	testutil.TouchFiles(t, fx.imgDir, "zwart-nero-marquina-tegel-1.jpg", "marquina-tegel.jpg", "marquina.jpg", "tegel-wit.jpg")
	m = newMigrator(repo, repo, fx.imgDir)

	dry, err := m.Repair(ctx, RepairOptions{DryRun: true})
	if err != nil {
		t.Fatalf("dry Repair failed: %v", err)
	}
	if dry.Scanned != 2 || dry.Repaired != 1 || dry.Unmatched != 1 {
		t.Errorf("unexpected dry run report %+v", dry)
	}
	p, _ := repo.ProductBySlug(ctx, "nero-marquina")
	if !p.HasOnlyPlaceholder(images.DefaultPlaceholder) {
		t.Errorf("dry run wrote images %v", p.Images)
	}

	rep, err := m.Repair(ctx, RepairOptions{})
	if err != nil {
		t.Fatalf("Repair failed: %v", err)
	}
	want := []string{
		"/images/products/zwart-nero-marquina-tegel-1.jpg",
		"/images/products/marquina-tegel.jpg",
		"/images/products/marquina.jpg",
	}
	if diff := cmp.Diff(want, rep.Matches[0].Images); diff != "" {
		t.Errorf("repair images mismatch (-want +got):\n%s", diff)
	}
	p, _ = repo.ProductBySlug(ctx, "nero-marquina")
	if diff := cmp.Diff(want, p.Images); diff != "" {
		t.Errorf("stored images mismatch (-want +got):\n%s", diff)
	}

	var out strings.Builder
	if err := rep.Format(&out); err != nil {
		t.Fatal(err)
	}
	testutil.AssertStringContains(t, out.String(), "repaired:         1")
}

func TestReportFormatAndCompare(t *testing.T) {
	repo := memory.New()
	fx := setupFixture(t, sampleProducts...)
	rep, err := newMigrator(repo, repo, fx.imgDir).Run(context.Background(), fx.opts)
	if err != nil {
		t.Fatal(err)
	}

	text := rep.String()
	testutil.AssertStringContains(t, text, "created:          4")
	testutil.AssertStringContains(t, text, "marble:           1")

	same, err := CompareReports(text, rep.String())
	if err != nil || same != "" {
		t.Errorf("expected no diff for identical reports, got %q (%v)", same, err)
	}

	changed := strings.Replace(text, "created:          4", "created:          5", 1)
	diff, err := CompareReports(changed, text)
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertStringContains(t, diff, "-  created:          5")
	testutil.AssertStringContains(t, diff, "+  created:          4")

	var js strings.Builder
	if err := rep.WriteJSON(&js); err != nil {
		t.Fatal(err)
	}
	testutil.AssertStringContains(t, js.String(), `"upsert_failed": 0`)
}
