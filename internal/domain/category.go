package domain

import (
	"fmt"
	"strings"
)

// Category identifies one neighborhood donor group (kategori).
type Category string

const (
	CategoryTengah Category = "kategori1"
	CategoryKulon  Category = "kategori2"
	CategoryKidul  Category = "kategori3"
)

var categoryLabels = map[Category]string{
	CategoryTengah: "RT Tengah",
	CategoryKulon:  "RT Kulon",
	CategoryKidul:  "RT Kidul",
}

// Categories returns the fixed category set in display order.
func Categories() []Category {
	return []Category{CategoryTengah, CategoryKulon, CategoryKidul}
}

// Label returns the human label the remote API uses as kategori_rt.
func (c Category) Label() string {
	if label, ok := categoryLabels[c]; ok {
		return label
	}
	return string(c)
}

// Valid reports whether c is one of the fixed categories.
func (c Category) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// ParseCategory accepts either the key (kategori1) or the label (RT Tengah).
func ParseCategory(raw string) (Category, error) {
	value := strings.TrimSpace(raw)
	if c := Category(strings.ToLower(value)); c.Valid() {
		return c, nil
	}
	for c, label := range categoryLabels {
		if strings.EqualFold(label, value) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, raw)
}

// Roster maps each category to its canonical donor sequence.
type Roster map[Category][]string

// Names returns the roster for c, or nil when c has none.
func (r Roster) Names(c Category) []string {
	if r == nil {
		return nil
	}
	return r[c]
}

// Contains reports whether name is on the roster of c.
func (r Roster) Contains(c Category, name string) bool {
	for _, n := range r.Names(c) {
		if n == name {
			return true
		}
	}
	return false
}

// DefaultRosters returns the built-in rosters used when no roster file is configured.
func DefaultRosters() Roster {
	return Roster{
		CategoryTengah: {
			"Mas Ani", "Pak Kholis", "Pak Hasyim", "Amat", "Mbak Is",
			"Dani", "Pak Napi", "Pak Ipin", "Mas Agus BZ", "Pak Fat",
			"Pak Ropi", "Mas Umam", "Pak Kisman", "Pak Yanto", "Pak Pardi",
			"Pak Salam", "Pak Piyan", "Pak Slamet", "Pak Ibin", "Idek",
			"Pak Ngari", "Pak Tukhin", "Pak Rofiq", "Pak Syafak", "Pak Jubaidi",
			"Mbak Kholis", "Pak Kholiq", "Pak Rokhan", "Mas Agus", "Mas Izin",
			"Pak Abror", "Mas Gustaf",
		},
		CategoryKulon: {"Pak A", "Pak B", "Pak C"},
		CategoryKidul: {"Pak A", "Pak B", "Pak C"},
	}
}
