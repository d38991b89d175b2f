// Package extract flattens raw taxon records into tabular rows.
//
// A raw record is a schemaless JSON object: any key may be missing, null,
// or of an unexpected type. Every lookup here is null-safe and the
// flattening is total - a malformed record produces empty fields, never an
// error.
package extract

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mkrivoshein/taxopull/internal/model"
)

// lastModifiedLayout is the human-readable form written to the CSV,
// e.g. "May 01, 2023, 12:00:00 PM UTC".
const lastModifiedLayout = "January 02, 2006, 03:04:05 PM MST"

// habitatSeparator joins the descriptions collected from one habitat list.
const habitatSeparator = ", "

// habitatSpec describes where one habitat category lives in the raw
// record: a list under speciesCharacteristics.<listKey>, whose entries
// hold a nested object <objectKey> with the English description <descKey>.
type habitatSpec struct {
	listKey   string
	objectKey string
	descKey   string
}

// habitatSpecs is the declarative table of the seven habitat categories,
// in output column order. Adding a category is one line here plus a
// column in model.FlatRecord.
var habitatSpecs = []habitatSpec{
	{"speciesMarineHabitats", "marineHabitat", "marineHabitatDescEn"},
	{"speciesTerrestrialHabitats", "terrestrialHabitat", "terrestrialHabitatDescEn"},
	{"speciesRiverineHabitats", "riverineHabitat", "riverineHabitatDescEn"},
	{"speciesPalustrineHabitats", "palustrineHabitat", "palustrineHabitatDescEn"},
	{"speciesLacustrineHabitats", "lacustrineHabitat", "lacustrineHabitatDescEn"},
	{"speciesSubterraneanHabitats", "subterraneanHabitat", "subterraneanHabitatDescEn"},
	{"speciesEstuarineHabitats", "estuarineHabitat", "estuarineHabitatDescEn"},
}

// Flatten projects a raw taxon record onto the fixed column set.
// It never modifies its input and never fails.
func Flatten(raw map[string]any) model.FlatRecord {
	rec := model.FlatRecord{
		ElementGlobalID:              Scalar(dig(raw, "elementGlobalId")),
		UniqueID:                     Scalar(dig(raw, "uniqueId")),
		SpeciesGlobalElementGlobalID: Scalar(dig(raw, "speciesGlobal", "elementGlobalId")),
		PrimaryCommonName:            Scalar(dig(raw, "primaryCommonName")),
		ScientificName:               Scalar(dig(raw, "scientificName")),
		LastModified:                 formatLastModified(dig(raw, "lastModified")),
		GrankReasons:                 Scalar(dig(raw, "grankReasons")),
		HabitatComments:              Scalar(dig(raw, "speciesCharacteristics", "habitatComments")),
		RangeExtent:                  Scalar(dig(raw, "rankInfo", "rangeExtent", "rangeExtentDescEn")),
	}

	habitats := []*string{
		&rec.MarineHabitats,
		&rec.TerrestrialHabitats,
		&rec.RiverineHabitats,
		&rec.PalustrineHabitats,
		&rec.LacustrineHabitats,
		&rec.SubterraneanHabitats,
		&rec.EstuarineHabitats,
	}
	for i, spec := range habitatSpecs {
		*habitats[i] = habitatDescriptions(dig(raw, "speciesCharacteristics", spec.listKey), spec)
	}

	return rec
}

// dig walks a path of keys through nested mappings. It returns nil if any
// step is missing or is not a mapping, so callers never branch on
// intermediate lookups.
func dig(root any, keys ...string) any {
	cur := root
	for _, key := range keys {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[key]
	}
	return cur
}

// habitatDescriptions collects the English descriptions from one habitat
// list, preserving order. Non-list input, non-mapping entries, and empty
// descriptions are skipped. Zero descriptions yields "".
func habitatDescriptions(v any, spec habitatSpec) string {
	list, ok := v.([]any)
	if !ok {
		return ""
	}

	var descs []string
	for _, entry := range list {
		if desc := Scalar(dig(entry, spec.objectKey, spec.descKey)); desc != "" {
			descs = append(descs, desc)
		}
	}

	return strings.Join(descs, habitatSeparator)
}

// formatLastModified reformats the upstream ISO-8601 timestamp for the
// CSV. Unparsable strings pass through unchanged; non-string values fall
// back to their scalar form.
func formatLastModified(v any) string {
	s, ok := v.(string)
	if !ok {
		return Scalar(v)
	}
	if s == "" {
		return ""
	}

	// RFC 3339 covers the usual trailing-Z form; the second layout covers
	// timestamps with no offset at all, which the API also emits.
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(lastModifiedLayout)
		}
	}

	return s
}

// Scalar renders any decoded JSON value as a single CSV-safe string.
// Nil becomes "", composites become compact JSON (deterministic: the
// encoder sorts object keys), numbers keep their source literal when
// decoded with UseNumber.
func Scalar(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case []any, map[string]any:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", val)
	}
}
