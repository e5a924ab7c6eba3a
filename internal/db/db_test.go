package db

import "testing"

func TestDialectFor(t *testing.T) {
	tests := []struct {
		driver  string
		want    Dialect
		wantErr bool
	}{
		{DriverSQLite3, DialectSQLite, false},
		{DriverSQLite, DialectSQLite, false},
		{DriverPostgres, DialectPostgres, false},
		{"postgres", DialectPostgres, false},
		{"mysql", "", true},
	}
	for _, tt := range tests {
		got, err := DialectFor(tt.driver)
		if (err != nil) != tt.wantErr {
			t.Errorf("DialectFor(%q) error = %v, wantErr %v", tt.driver, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("DialectFor(%q) = %q, want %q", tt.driver, got, tt.want)
		}
	}
}

func TestRebind(t *testing.T) {
	q := "UPDATE products SET images = ?, updated_at = CURRENT_TIMESTAMP WHERE slug = ?"

	if got := DialectSQLite.Rebind(q); got != q {
		t.Errorf("sqlite rebind changed query: %q", got)
	}

	want := "UPDATE products SET images = $1, updated_at = CURRENT_TIMESTAMP WHERE slug = $2"
	if got := DialectPostgres.Rebind(q); got != want {
		t.Errorf("postgres rebind = %q, want %q", got, want)
	}

	if got := DialectPostgres.Rebind("SELECT 1"); got != "SELECT 1" {
		t.Errorf("query without placeholders changed: %q", got)
	}
}
