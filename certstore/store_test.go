package certstore

import (
	"crypto/x509"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yllada/voicelink/common"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "trust.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_DigestRoundTrip(t *testing.T) {
	store := openTestStore(t)

	if _, ok, err := store.Digest("voice.example.org", 64738); err != nil || ok {
		t.Fatalf("Digest() on empty store = %v, %v, want false, nil", ok, err)
	}

	if err := store.SetDigest("voice.example.org", 64738, "AB12 CD34"); err != nil {
		t.Fatalf("SetDigest() error = %v", err)
	}
	digest, ok, err := store.Digest("voice.example.org", 64738)
	if err != nil || !ok {
		t.Fatalf("Digest() = %v, %v", ok, err)
	}
	if digest != "ab12cd34" {
		t.Errorf("Digest() = %v, want ab12cd34", digest)
	}

	// different port is a different server
	if _, ok, _ := store.Digest("voice.example.org", 1); ok {
		t.Error("Digest() should be keyed by port too")
	}
}

func TestStore_SetDigestReplaces(t *testing.T) {
	store := openTestStore(t)

	if err := store.SetDigest("h", 1, "aaaa"); err != nil {
		t.Fatal(err)
	}
	if err := store.SetDigest("h", 1, "bbbb"); err != nil {
		t.Fatal(err)
	}

	records, err := store.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 1 || records[0].Digest != "bbbb" {
		t.Errorf("List() = %+v, want a single bbbb record", records)
	}
	if records[0].UpdatedAt.IsZero() {
		t.Error("UpdatedAt should be set")
	}
}

func TestStore_RejectsEmptyDigest(t *testing.T) {
	store := openTestStore(t)
	if err := store.SetDigest("h", 1, " : "); err == nil {
		t.Error("SetDigest() with an empty digest should fail")
	}
}

func TestStore_ForgetAndList(t *testing.T) {
	store := openTestStore(t)
	store.SetDigest("zulu.example.org", 64738, "01")
	store.SetDigest("alpha.example.org", 64739, "02")
	store.SetDigest("alpha.example.org", 64738, "03")

	records, err := store.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	var got []string
	for _, r := range records {
		got = append(got, r.Address())
	}
	want := "alpha.example.org:64738 alpha.example.org:64739 zulu.example.org:64738"
	if strings.Join(got, " ") != want {
		t.Errorf("List() order = %v, want %v", got, want)
	}

	if err := store.Forget("alpha.example.org", 64739); err != nil {
		t.Fatalf("Forget() error = %v", err)
	}
	if err := store.Forget("alpha.example.org", 64739); !errors.Is(err, common.ErrDigestNotFound) {
		t.Errorf("Forget() twice error = %v, want ErrDigestNotFound", err)
	}
}

func TestStore_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "trust.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := store.SetDigest("h", 1, "cafe"); err != nil {
		t.Fatal(err)
	}
	store.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer reopened.Close()
	if digest, ok, _ := reopened.Digest("h", 1); !ok || digest != "cafe" {
		t.Errorf("Digest() after reopen = %v, %v, want cafe, true", digest, ok)
	}
}

func TestComputeDigest(t *testing.T) {
	cert := &x509.Certificate{Raw: []byte("abc")}
	// sha256("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := ComputeDigest(cert); got != want {
		t.Errorf("ComputeDigest() = %v, want %v", got, want)
	}
	if ComputeDigest(nil) != "" {
		t.Error("ComputeDigest(nil) should be empty")
	}
}

func TestFormatDigest(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ba7816bf8f01", "BA78 16BF 8F01"},
		{"BA:78:16:BF:8F", "BA78 16BF 8F"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := FormatDigest(tt.in); got != tt.want {
			t.Errorf("FormatDigest(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
