package state

import "testing"

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(Options{Path: ":memory:"})
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateBucketIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	if err := s.CreateBucket("leases"); err != nil {
		t.Fatalf("first CreateBucket: %v", err)
	}
	if err := s.CreateBucket("leases"); err != nil {
		t.Fatalf("second CreateBucket should not error: %v", err)
	}
}

func TestGetMissingKeyReturnsErrNotFound(t *testing.T) {
	s := newTestStore(t)
	if err := s.CreateBucket("leases"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get("leases", "eth0"); err != ErrNotFound {
		t.Fatalf("Get on missing key = %v, want ErrNotFound", err)
	}
}

func TestSetThenGetRoundTrips(t *testing.T) {
	s := newTestStore(t)
	if err := s.CreateBucket("leases"); err != nil {
		t.Fatal(err)
	}
	want := []byte(`{"addr":"192.0.2.10"}`)
	if err := s.Set("leases", "eth0", want); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get("leases", "eth0")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("Get = %q, want %q", got, want)
	}
}

func TestSetOverwritesExistingValue(t *testing.T) {
	s := newTestStore(t)
	if err := s.CreateBucket("leases"); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("leases", "eth0", []byte("first")); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("leases", "eth0", []byte("second")); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get("leases", "eth0")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "second" {
		t.Fatalf("Get after overwrite = %q, want %q", got, "second")
	}
}

func TestDeleteRemovesKey(t *testing.T) {
	s := newTestStore(t)
	if err := s.CreateBucket("leases"); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("leases", "eth0", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete("leases", "eth0"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get("leases", "eth0"); err != ErrNotFound {
		t.Fatalf("Get after delete = %v, want ErrNotFound", err)
	}
}

func TestDeleteMissingKeyIsNotAnError(t *testing.T) {
	s := newTestStore(t)
	if err := s.CreateBucket("leases"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete("leases", "does-not-exist"); err != nil {
		t.Fatalf("Delete missing key: %v", err)
	}
}

func TestSetJSONGetJSONRoundTrip(t *testing.T) {
	s := newTestStore(t)
	if err := s.CreateBucket("leases"); err != nil {
		t.Fatal(err)
	}
	type record struct {
		Addr string `json:"addr"`
		TTL  int    `json:"ttl"`
	}
	want := record{Addr: "192.0.2.10", TTL: 3600}
	if err := s.SetJSON("leases", "eth0", want); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}
	var got record
	if err := s.GetJSON("leases", "eth0", &got); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if got != want {
		t.Fatalf("GetJSON = %+v, want %+v", got, want)
	}
}

func TestBucketsAreIndependentKeySpaces(t *testing.T) {
	s := newTestStore(t)
	if err := s.CreateBucket("a"); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateBucket("b"); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("a", "key", []byte("from-a")); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("b", "key", []byte("from-b")); err != nil {
		t.Fatal(err)
	}
	gotA, err := s.Get("a", "key")
	if err != nil {
		t.Fatal(err)
	}
	gotB, err := s.Get("b", "key")
	if err != nil {
		t.Fatal(err)
	}
	if string(gotA) != "from-a" || string(gotB) != "from-b" {
		t.Fatalf("bucket keyspaces bled into each other: a=%q b=%q", gotA, gotB)
	}
}

func TestOperationsFailAfterClose(t *testing.T) {
	s := newTestStore(t)
	if err := s.CreateBucket("leases"); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close should be a no-op: %v", err)
	}
	if _, err := s.Get("leases", "eth0"); err != ErrStoreClosed {
		t.Fatalf("Get after Close = %v, want ErrStoreClosed", err)
	}
	if err := s.Set("leases", "eth0", []byte("x")); err != ErrStoreClosed {
		t.Fatalf("Set after Close = %v, want ErrStoreClosed", err)
	}
}

func TestDefaultOptionsSetsWALMode(t *testing.T) {
	opts := DefaultOptions("/tmp/example.db")
	if !opts.WALMode {
		t.Fatal("DefaultOptions should enable WAL mode")
	}
	if opts.Path != "/tmp/example.db" {
		t.Fatalf("Path = %q, want /tmp/example.db", opts.Path)
	}
}
