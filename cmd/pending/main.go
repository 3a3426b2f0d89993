package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"jimpitan/internal/adapter/repo"
	"jimpitan/internal/apiclient"
	"jimpitan/internal/domain"
	"jimpitan/internal/infra"
	"jimpitan/internal/infra/credentials"
	"jimpitan/internal/queue"
	"jimpitan/internal/storage"
	"jimpitan/pkg/zip"
)

const usage = `usage: pending <command> [flags]

commands:
  list              print every queued write
  drain             replay the queue once against the API
  export [-out KEY] write the queued items to a zip archive under EXPORT_DIR
`

type exportManifest struct {
	ExportedAt time.Time       `json:"exported_at"`
	Count      int             `json:"count"`
	Items      []manifestEntry `json:"items"`
}

type manifestEntry struct {
	ID             int64           `json:"id"`
	IdempotencyKey string          `json:"idempotency_key"`
	Type           domain.SyncType `json:"type"`
	Endpoint       string          `json:"endpoint"`
	Method         string          `json:"method"`
	CreatedAt      time.Time       `json:"created_at"`
	File           string          `json:"file"`
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	_ = godotenv.Load()

	command := strings.ToLower(strings.TrimSpace(os.Args[1]))
	fs := flag.NewFlagSet(command, flag.ExitOnError)
	dbFlag := fs.String("db", "", "queue database path (defaults to QUEUE_DB_PATH)")
	outFlag := fs.String("out", "", "export archive name relative to EXPORT_DIR")
	_ = fs.Parse(os.Args[2:])

	cfg, err := infra.LoadConfig()
	if err != nil {
		exitWithError(err)
	}
	dbPath := strings.TrimSpace(*dbFlag)
	if dbPath == "" {
		dbPath = cfg.QueueDBPath
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	logger := infra.NewLogger("cli").With().Str("cmd", "pending").Logger()
	db, err := infra.OpenSQLite(ctx, dbPath, logger)
	if err != nil {
		exitWithError(fmt.Errorf("failed to open queue database: %w", err))
	}
	defer db.Close()
	runner := infra.NewSQLRunner(db, logger)
	pendingRepo := repo.NewPendingRepository(runner)

	switch command {
	case "list":
		err = list(ctx, pendingRepo)
	case "drain":
		err = drain(ctx, cfg, runner, pendingRepo, logger)
	case "export":
		err = export(ctx, cfg, pendingRepo, *outFlag)
	default:
		fmt.Fprint(os.Stderr, usage)
		err = fmt.Errorf("unknown command %q", command)
	}
	if err != nil {
		exitWithError(err)
	}
}

func list(ctx context.Context, r domain.PendingRepository) error {
	items, err := r.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list pending items: %w", err)
	}
	if len(items) == 0 {
		fmt.Println("queue is empty")
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tMETHOD\tENDPOINT\tDONOR\tCATEGORY\tAMOUNT")
	for _, it := range items {
		var p domain.DonationPayload
		_ = json.Unmarshal(it.Payload, &p)
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%d\n",
			it.ID, it.CreatedAt.Format(time.RFC3339), it.Method, it.Endpoint, p.NamaDonatur, p.KategoriRT, p.Nominal)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Printf("%d item(s) pending\n", len(items))
	return nil
}

func drain(ctx context.Context, cfg *infra.Config, runner *infra.SQLRunner, r domain.PendingRepository, logger infra.Logger) error {
	client, err := apiclient.NewClient(apiclient.Options{
		BaseURL:        cfg.APIBaseURL,
		HTTPClient:     &http.Client{Timeout: cfg.HTTPClientTimeout},
		Logger:         &logger,
		RequestTimeout: cfg.HTTPClientTimeout,
		Tokens:         credentials.NewStore(runner),
	})
	if err != nil {
		return err
	}
	q := queue.New(queue.Options{Repo: r, Replayer: client, Logger: &logger})
	res, err := q.DrainAll(ctx)
	if err != nil {
		return fmt.Errorf("drain failed: %w", err)
	}
	fmt.Printf("attempted=%d replayed=%d remaining=%d\n", res.Attempted, res.Replayed, res.Remaining)
	for _, f := range res.Failures {
		fmt.Printf("item %d kept: %v\n", f.ItemID, f.Err)
	}
	if len(res.Failures) > 0 {
		return errors.New("some items could not be replayed")
	}
	return nil
}

func export(ctx context.Context, cfg *infra.Config, r domain.PendingRepository, out string) error {
	store, err := storage.NewFileStore(cfg.ExportDir)
	if err != nil {
		return err
	}
	items, err := r.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list pending items: %w", err)
	}
	now := time.Now().UTC()
	data, err := buildArchive(items, now)
	if err != nil {
		return err
	}
	key := strings.TrimSpace(out)
	if key == "" {
		key = exportKey(now)
	}
	key, err = store.Write(ctx, key, data)
	if err != nil {
		return fmt.Errorf("failed to write archive: %w", err)
	}
	path, _ := store.Path(key)
	fmt.Printf("exported %d item(s) to %s\n", len(items), path)
	return nil
}

func exportKey(now time.Time) string {
	return "pending-" + now.Format("20060102-150405") + ".zip"
}

// buildArchive writes one JSON file per payload, byte-for-byte, plus a manifest.
func buildArchive(items []domain.PendingSyncItem, now time.Time) ([]byte, error) {
	manifest := exportManifest{ExportedAt: now, Count: len(items), Items: make([]manifestEntry, 0, len(items))}
	files := make([]zip.File, 0, len(items)+1)
	for _, it := range items {
		name := fmt.Sprintf("items/%d.json", it.ID)
		manifest.Items = append(manifest.Items, manifestEntry{
			ID:             it.ID,
			IdempotencyKey: it.IdempotencyKey,
			Type:           it.Type,
			Endpoint:       it.Endpoint,
			Method:         it.Method,
			CreatedAt:      it.CreatedAt,
			File:           name,
		})
		files = append(files, zip.File{Name: name, Data: it.Payload, Modified: it.CreatedAt})
	}
	raw, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	files = append([]zip.File{{Name: "manifest.json", Data: raw, Modified: now}}, files...)
	return zip.Archive(files)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
