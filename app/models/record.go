// Package models holds the typed catalog record and the two boundary
// functions through which every untyped document payload passes.
//
// Normalize is the ONLY place raw store documents enter the typed world;
// UpdatePayload is the only place typed records leave it. Everything in
// between operates on Record.
package models

import (
	"math"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CategoryAll is the sentinel meaning "no category filter".
const CategoryAll = "Todos"

// CategoryNone is assigned to records stored without a category.
const CategoryNone = "Sin categoría"

// Record is one appliance entry of the catalog.
//
// Medidas and Observaciones distinguish "never set" (nil) from "set to
// empty" — the store must never accumulate empty-string noise, so blank
// values are represented as absent. A zero CreatedAt means the document
// predates timestamping; it sorts as epoch.
type Record struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Price         float64   `json:"price"`
	Category      string    `json:"category"`
	Medidas       *string   `json:"medidas,omitempty"`
	Observaciones *string   `json:"observaciones,omitempty"`
	Fotos         []string  `json:"fotos"`
	HasDefect     bool      `json:"hasDefect"`
	Stock         int       `json:"stock"`
	CreatedAt     time.Time `json:"createdAt,omitempty"`
}

// Available reports whether the record can be sold. Stock wins over
// everything else: a blemished item with stock 0 is still unavailable.
func (r Record) Available() bool { return r.Stock > 0 }

// Patch is the untyped update payload produced by UpdatePayload.
// Set carries field values to write; Unset names optional fields to
// remove from the document entirely.
type Patch struct {
	Set   map[string]any
	Unset []string
}

// Normalize coerces a schemaless document into a well-typed Record.
// It is total: any shape of input yields a usable record, because the
// remote store gives no schema guarantee. Unknown or mistyped fields
// collapse to zero values; absent optional text stays absent.
func Normalize(id string, raw map[string]any) Record {
	if id == "" {
		id = asID(raw["_id"])
	}

	rec := Record{
		ID:        id,
		Name:      asString(raw["name"]),
		Price:     asFloat(raw["price"]),
		Category:  asString(raw["category"]),
		Fotos:     asStringSlice(raw["fotos"]),
		HasDefect: asBool(raw["hasDefect"]),
		Stock:     asInt(raw["stock"]),
		CreatedAt: asTime(raw["createdAt"]),
	}

	if rec.Category == "" {
		rec.Category = CategoryNone
	}
	if rec.Price < 0 || math.IsNaN(rec.Price) || math.IsInf(rec.Price, 0) {
		rec.Price = 0
	}
	if rec.Stock < 0 {
		rec.Stock = 0
	}

	rec.Medidas = asOptionalText(raw["medidas"])
	rec.Observaciones = asOptionalText(raw["observaciones"])

	return rec
}

// UpdatePayload builds the patch for a full-record overwrite. Optional
// text fields are either set to their trimmed value or explicitly
// removed — never written as "".
func UpdatePayload(rec Record) Patch {
	p := Patch{
		Set: map[string]any{
			"name":      rec.Name,
			"price":     rec.Price,
			"category":  rec.Category,
			"fotos":     rec.Fotos,
			"hasDefect": rec.HasDefect,
			"stock":     rec.Stock,
		},
	}
	if rec.Fotos == nil {
		p.Set["fotos"] = []string{}
	}

	setOrUnset(&p, "medidas", rec.Medidas)
	setOrUnset(&p, "observaciones", rec.Observaciones)

	return p
}

// CreatePayload builds the document for a brand-new record. The store
// assigns the id and the server timestamp; optional blanks are omitted.
func CreatePayload(rec Record) map[string]any {
	doc := map[string]any{
		"name":      rec.Name,
		"price":     rec.Price,
		"category":  rec.Category,
		"fotos":     rec.Fotos,
		"hasDefect": rec.HasDefect,
		"stock":     rec.Stock,
	}
	if rec.Fotos == nil {
		doc["fotos"] = []string{}
	}
	if v := trimmed(rec.Medidas); v != "" {
		doc["medidas"] = v
	}
	if v := trimmed(rec.Observaciones); v != "" {
		doc["observaciones"] = v
	}
	return doc
}

// Apply folds a Patch back into a raw document. Used by the gateway to
// build the store update and by tests to verify the round trip.
func (p Patch) Apply(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw)+len(p.Set))
	for k, v := range raw {
		out[k] = v
	}
	for k, v := range p.Set {
		out[k] = v
	}
	for _, k := range p.Unset {
		delete(out, k)
	}
	return out
}

func setOrUnset(p *Patch, field string, v *string) {
	if s := trimmed(v); s != "" {
		p.Set[field] = s
		return
	}
	p.Unset = append(p.Unset, field)
}

func trimmed(v *string) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}

// Text wraps a string as an optional field value. Blank input yields
// absent, mirroring the "delete if blank" form semantics.
func Text(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// ── Coercion helpers ─────────────────────────────────────────────────────────

func asID(v any) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	default:
		return ""
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asOptionalText(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	case float32:
		return int(n)
	default:
		return 0
	}
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asStringSlice(v any) []string {
	switch arr := v.(type) {
	case []string:
		out := make([]string, len(arr))
		copy(out, arr)
		return out
	case []any:
		return fromAnySlice(arr)
	case primitive.A:
		return fromAnySlice(arr)
	default:
		return nil
	}
}

func fromAnySlice(arr []any) []string {
	var out []string
	for _, item := range arr {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func asTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case primitive.DateTime:
		return t.Time()
	default:
		return time.Time{}
	}
}
