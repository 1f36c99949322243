package storage

import (
	"context"
	"errors"
	"testing"
)

func newTestSQLStore(t *testing.T, opts ...SQLStoreOption) *SQLStore {
	t.Helper()
	store, err := OpenSQLite(context.Background(), ":memory:", opts...)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLStore(t *testing.T) {
	testStoreContract(t, newTestSQLStore(t))
}

func TestSQLStoreCustomTable(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLStore(t, WithSQLTableName("prefs"))

	if err := store.Set(ctx, "k", []byte("1")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	var count int
	if err := store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM prefs`).Scan(&count); err != nil {
		t.Fatalf("query error = %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 row in prefs, got %d", count)
	}
}

func TestSQLStoreEmptyValue(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLStore(t)

	if err := store.Set(ctx, "k", nil); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Get() = %#v, want empty non-nil slice", got)
	}
}

func TestSQLStoreClose(t *testing.T) {
	store := newTestSQLStore(t)

	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if _, err := store.Get(context.Background(), "k"); !errors.Is(err, ErrClosed) {
		t.Errorf("Get() after Close error = %v, want ErrClosed", err)
	}
}

func TestSQLStorePlaceholders(t *testing.T) {
	tests := []struct {
		dialect SQLDialect
		want    string
	}{
		{DialectSQLite, "?"},
		{DialectMySQL, "?"},
		{DialectPostgreSQL, "$2"},
	}

	for _, tt := range tests {
		s := NewSQLStore(nil, WithSQLDialect(tt.dialect))
		if got := s.placeholder(2); got != tt.want {
			t.Errorf("placeholder(2) for dialect %d = %q, want %q", tt.dialect, got, tt.want)
		}
	}
}
