package i18n

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"jimpitan/internal/domain"
)

// Key identifies one user-visible status message.
type Key string

const (
	KeyUploaded      Key = "uploaded"
	KeyPartial       Key = "partial"
	KeyFailed        Key = "failed"
	KeySavedOffline  Key = "saved_offline"
	KeyLocked        Key = "locked"
	KeyOffline       Key = "offline"
	KeyOnline        Key = "online"
	KeyReplayed      Key = "replayed"
	KeyDayChanged    Key = "day_changed"
	KeyEmptyBatch    Key = "empty_batch"
	KeyInProgress    Key = "in_progress"
	KeyStorageFailed Key = "storage_failed"
)

var supported = []language.Tag{language.Indonesian, language.English}

var translations = map[language.Tag]map[Key]string{
	language.Indonesian: {
		KeyUploaded:      "Berhasil upload %d data %s, total Rp %d",
		KeyPartial:       "%d data berhasil, %d gagal: %s. Silakan coba upload ulang.",
		KeyFailed:        "Gagal upload semua data: %s",
		KeySavedOffline:  "Tidak ada koneksi. %d data disimpan dan akan dikirim otomatis saat online.",
		KeyLocked:        "%s sudah upload hari ini",
		KeyOffline:       "Mode offline: data akan disimpan di perangkat",
		KeyOnline:        "Kembali online, menyinkronkan data tertunda",
		KeyReplayed:      "Data %s (Rp %d) berhasil disinkronkan",
		KeyDayChanged:    "Hari berganti, status upload direset",
		KeyEmptyBatch:    "Belum ada data untuk diupload",
		KeyInProgress:    "Upload sedang berjalan",
		KeyStorageFailed: "Gagal menyimpan data offline, data belum tersimpan: %s",
	},
	language.English: {
		KeyUploaded:      "Uploaded %d entries for %s, total Rp %d",
		KeyPartial:       "%d entries uploaded, %d failed: %s. Please retry the upload.",
		KeyFailed:        "Upload failed for every entry: %s",
		KeySavedOffline:  "No connection. %d entries saved and will be sent automatically when online.",
		KeyLocked:        "%s has already uploaded today",
		KeyOffline:       "Offline mode: entries will be kept on this device",
		KeyOnline:        "Back online, syncing pending entries",
		KeyReplayed:      "Entry for %s (Rp %d) synced",
		KeyDayChanged:    "New day, upload state reset",
		KeyEmptyBatch:    "Nothing to upload yet",
		KeyInProgress:    "An upload is already running",
		KeyStorageFailed: "Could not save entries offline, nothing was stored: %s",
	},
}

// Translator renders status messages in Indonesian or English.
type Translator struct {
	catalog  *catalog.Builder
	matcher  language.Matcher
	fallback language.Tag
}

// New builds a translator falling back to defaultLocale for unknown locales.
func New(defaultLocale string) *Translator {
	b := catalog.NewBuilder(catalog.Fallback(language.Indonesian))
	for tag, msgs := range translations {
		for key, msg := range msgs {
			_ = b.SetString(tag, string(key), msg)
		}
	}
	t := &Translator{catalog: b, matcher: language.NewMatcher(supported), fallback: language.Indonesian}
	t.fallback = t.Tag(defaultLocale)
	return t
}

// Tag resolves a locale string such as "id-ID" or "en" to a supported language.
func (t *Translator) Tag(locale string) language.Tag {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return t.fallback
	}
	tag, err := language.Parse(strings.ReplaceAll(locale, "_", "-"))
	if err != nil {
		return t.fallback
	}
	_, idx, conf := t.matcher.Match(tag)
	if conf == language.No {
		return t.fallback
	}
	return supported[idx]
}

// Printer returns a printer for locale backed by the translation catalog.
func (t *Translator) Printer(locale string) *message.Printer {
	return message.NewPrinter(t.Tag(locale), message.Catalog(t.catalog))
}

// Message renders key in locale.
func (t *Translator) Message(locale string, key Key, args ...any) string {
	return t.Printer(locale).Sprintf(string(key), args...)
}

// Rupiah formats an amount with the locale's digit grouping, e.g. "Rp 15.000".
func (t *Translator) Rupiah(locale string, amount int64) string {
	return t.Printer(locale).Sprintf("Rp %d", amount)
}

// Outcome renders the status line for a submission result.
func (t *Translator) Outcome(locale string, out domain.SubmitOutcome) string {
	switch out.Kind {
	case domain.OutcomeUploaded:
		return t.Message(locale, KeyUploaded, out.Succeeded, out.Category.Label(), out.Total)
	case domain.OutcomePartial:
		return t.Message(locale, KeyPartial, out.Succeeded, len(out.Failed), strings.Join(out.FailedDonors(), ", "))
	case domain.OutcomeSavedOffline:
		return t.Message(locale, KeySavedOffline, out.Queued)
	case domain.OutcomeLocked:
		return t.Message(locale, KeyLocked, out.Category.Label())
	default:
		reasons := make([]string, 0, len(out.Failed))
		for _, f := range out.Failed {
			reasons = append(reasons, f.DonorName+" ("+f.Message+")")
		}
		return t.Message(locale, KeyFailed, strings.Join(reasons, ", "))
	}
}
