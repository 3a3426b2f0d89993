package main

import (
	stdzip "archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"testing"
	"time"

	"jimpitan/internal/domain"
)

func TestBuildArchive(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	payload := json.RawMessage(`{"nama_donatur":"Pak A","kategori_rt":"RT Kulon","nominal":1000,"tanggal_input":"2024-05-01T10:00:00Z"}`)
	items := []domain.PendingSyncItem{
		{ID: 7, IdempotencyKey: "k7", Type: domain.SyncTypeDonation, Endpoint: "/donasi", Method: "POST", Payload: payload, CreatedAt: created},
	}
	data, err := buildArchive(items, created.Add(time.Hour))
	if err != nil {
		t.Fatalf("buildArchive: %v", err)
	}
	zr, err := stdzip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	if len(zr.File) != 2 || zr.File[0].Name != "manifest.json" || zr.File[1].Name != "items/7.json" {
		t.Fatalf("members = %+v", zr.File)
	}

	read := func(f *stdzip.File) []byte {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		defer rc.Close()
		b, _ := io.ReadAll(rc)
		return b
	}
	if got := read(zr.File[1]); !bytes.Equal(got, payload) {
		t.Fatalf("payload changed: %s", got)
	}
	var manifest exportManifest
	if err := json.Unmarshal(read(zr.File[0]), &manifest); err != nil {
		t.Fatalf("manifest: %v", err)
	}
	if manifest.Count != 1 || manifest.Items[0].IdempotencyKey != "k7" || manifest.Items[0].File != "items/7.json" {
		t.Fatalf("manifest = %+v", manifest)
	}
}

func TestExportKey(t *testing.T) {
	at := time.Date(2024, 5, 1, 22, 3, 4, 0, time.UTC)
	if got := exportKey(at); got != "pending-20240501-220304.zip" {
		t.Fatalf("exportKey = %q", got)
	}
}
