package bufstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/bisegni/visdata/pkg/database"
)

func testCube() *database.Cube[complex64] {
	c := database.NewCube[complex64](3, 4, 2)
	for i := range c.Data {
		c.Data[i] = complex(float32(i), -float32(i)/2)
	}
	return c
}

func TestCodec(t *testing.T) {
	for _, compress := range []bool{false, true} {
		in := testCube()
		out, err := DecodeCube(EncodeCube(in, compress))
		if err != nil {
			t.Fatalf("compress=%v: %v", compress, err)
		}
		if !out.HasShape(3, 4, 2) {
			t.Fatalf("compress=%v: shape %s", compress, out)
		}
		for i := range in.Data {
			if out.Data[i] != in.Data[i] {
				t.Fatalf("compress=%v: element %d = %v want %v", compress, i, out.Data[i], in.Data[i])
			}
		}
	}

	if _, err := DecodeCube([]byte("nope")); err == nil {
		t.Error("Expected error for short blob")
	}
	blob := EncodeCube(testCube(), false)
	if _, err := DecodeCube(blob[:len(blob)-8]); err == nil {
		t.Error("Expected error for truncated payload")
	}
}

func TestBackends(t *testing.T) {
	dir := t.TempDir()
	file, err := NewFileBackend(filepath.Join(dir, "files"))
	if err != nil {
		t.Fatal(err)
	}
	sqlite, err := NewSQLiteBackend(SQLiteBackendConfig{Path: filepath.Join(dir, "buffers.db")})
	if err != nil {
		t.Fatal(err)
	}

	backends := map[string]Backend{
		"memory": NewMemoryBackend(),
		"file":   file,
		"sqlite": sqlite,
	}
	ctx := context.Background()
	for name, b := range backends {
		t.Run(name, func(t *testing.T) {
			defer b.Close()

			if ok, err := b.Exists(ctx, "a/1"); err != nil || ok {
				t.Fatalf("Exists on empty backend = %v, %v", ok, err)
			}
			if _, err := b.Read(ctx, "a/1"); !errors.Is(err, os.ErrNotExist) {
				t.Fatalf("Read of missing key: %v", err)
			}
			for _, k := range []string{"a/2", "a/1", "b/1"} {
				if err := b.Write(ctx, k, []byte(k)); err != nil {
					t.Fatalf("Write(%s): %v", k, err)
				}
			}
			if err := b.Write(ctx, "a/1", []byte("again")); err != nil {
				t.Fatal(err)
			}
			data, err := b.Read(ctx, "a/1")
			if err != nil || string(data) != "again" {
				t.Fatalf("Read = %q, %v", data, err)
			}
			keys, err := b.List(ctx, "a/")
			if err != nil || len(keys) != 2 || keys[0] != "a/1" || keys[1] != "a/2" {
				t.Fatalf("List = %v, %v", keys, err)
			}
			if err := b.Delete(ctx, "a/1"); err != nil {
				t.Fatal(err)
			}
			if ok, _ := b.Exists(ctx, "a/1"); ok {
				t.Error("Key still exists after delete")
			}
		})
	}
}

func TestFileBackendRejectsEscape(t *testing.T) {
	b, err := NewFileBackend(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Write(context.Background(), "../outside", []byte("x")); err == nil {
		t.Error("Expected path escape to be rejected")
	}
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemoryBackend(), true)
	defer s.Close()

	if _, err := s.Read(ctx, "model", 0); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Read of missing buffer: %v", err)
	}
	for _, it := range []int{10, 0, 2} {
		if err := s.Write(ctx, "model", it, testCube()); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Write(ctx, "other", 0, testCube()); err != nil {
		t.Fatal(err)
	}

	iters, err := s.Iterations(ctx, "model")
	if err != nil {
		t.Fatal(err)
	}
	if len(iters) != 3 || iters[0] != 0 || iters[1] != 2 || iters[2] != 10 {
		t.Errorf("Iterations = %v", iters)
	}

	c, err := s.Read(ctx, "model", 2)
	if err != nil {
		t.Fatal(err)
	}
	if c.At(2, 3, 1) != testCube().At(2, 3, 1) {
		t.Errorf("Read returned wrong content")
	}

	if err := s.Delete(ctx, "model"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.Exists(ctx, "model", 10); ok {
		t.Error("Buffer survived Delete")
	}
	if ok, _ := s.Exists(ctx, "other", 0); !ok {
		t.Error("Delete removed another buffer")
	}

	for _, bad := range []string{"", "a/b", ".."} {
		if err := s.Write(ctx, bad, 0, testCube()); err == nil {
			t.Errorf("Expected invalid name %q to be rejected", bad)
		}
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default", DefaultConfig(), false},
		{"file", Config{Backend: BackendFile, Path: filepath.Join(t.TempDir(), "buf")}, false},
		{"sqlite", Config{Backend: BackendSQLite, Path: filepath.Join(t.TempDir(), "buf.db")}, false},
		{"file without path", Config{Backend: BackendFile}, true},
		{"s3 without bucket", Config{Backend: BackendS3}, true},
		{"unknown", Config{Backend: "tape"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(ctx, tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			defer s.Close()
			if err := s.Write(ctx, "x", 1, testCube()); err != nil {
				t.Fatal(err)
			}
			if ok, err := s.Exists(ctx, "x", 1); err != nil || !ok {
				t.Errorf("Exists = %v, %v", ok, err)
			}
		})
	}
}

func TestS3BackendKeys(t *testing.T) {
	b, err := NewS3Backend(context.Background(), S3BackendConfig{
		Bucket:          "buffers",
		Endpoint:        "http://127.0.0.1:9000",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		Prefix:          "run1/",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := b.objectKey("model/0000000001"); got != "run1/model/0000000001" {
		t.Errorf("objectKey = %q", got)
	}
	if b.config.Region != "us-east-1" {
		t.Errorf("default region = %q", b.config.Region)
	}
	if _, err := NewS3Backend(context.Background(), S3BackendConfig{}); err == nil {
		t.Error("Expected error without bucket")
	}
}
