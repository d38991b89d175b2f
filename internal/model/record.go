package model

// FlatRecord is the flat projection of one taxon record.
// Every field is a scalar string; absent upstream values are "".
type FlatRecord struct {
	ElementGlobalID              string `json:"elementGlobalId"`
	UniqueID                     string `json:"uniqueId"`
	SpeciesGlobalElementGlobalID string `json:"speciesGlobalElementGlobalId"`
	PrimaryCommonName            string `json:"primaryCommonName"`
	ScientificName               string `json:"scientificName"`
	LastModified                 string `json:"lastModified"`
	GrankReasons                 string `json:"grankReasons"`
	HabitatComments              string `json:"habitatComments"`
	RangeExtent                  string `json:"rangeExtent"`
	MarineHabitats               string `json:"marineHabitats"`
	TerrestrialHabitats          string `json:"terrestrialHabitats"`
	RiverineHabitats             string `json:"riverineHabitats"`
	PalustrineHabitats           string `json:"palustrineHabitats"`
	LacustrineHabitats           string `json:"lacustrineHabitats"`
	SubterraneanHabitats         string `json:"subterraneanHabitats"`
	EstuarineHabitats            string `json:"estuarineHabitats"`
}

// Columns returns the CSV header. Order is fixed: the source URL followed
// by the extracted fields in the same order as Values.
func Columns() []string {
	return []string{
		"url",
		"elementGlobalId",
		"uniqueId",
		"speciesGlobalElementGlobalId",
		"primaryCommonName",
		"scientificName",
		"lastModified",
		"grankReasons",
		"habitatComments",
		"rangeExtent",
		"marineHabitats",
		"terrestrialHabitats",
		"riverineHabitats",
		"palustrineHabitats",
		"lacustrineHabitats",
		"subterraneanHabitats",
		"estuarineHabitats",
	}
}

// Values returns the extracted fields in column order (without the URL).
func (r *FlatRecord) Values() []string {
	return []string{
		r.ElementGlobalID,
		r.UniqueID,
		r.SpeciesGlobalElementGlobalID,
		r.PrimaryCommonName,
		r.ScientificName,
		r.LastModified,
		r.GrankReasons,
		r.HabitatComments,
		r.RangeExtent,
		r.MarineHabitats,
		r.TerrestrialHabitats,
		r.RiverineHabitats,
		r.PalustrineHabitats,
		r.LacustrineHabitats,
		r.SubterraneanHabitats,
		r.EstuarineHabitats,
	}
}

// FetchOutcome is the per-route result: either a flattened record or an
// error message, never both. It is written to the CSV and discarded.
type FetchOutcome struct {
	URL  string      `json:"url"`
	Data *FlatRecord `json:"data,omitempty"`
	Err  string      `json:"error,omitempty"`
}

// Failed reports whether the fetch produced an error row.
func (o *FetchOutcome) Failed() bool {
	return o.Err != ""
}

// Row serializes the outcome to a CSV row matching Columns. Failure rows
// carry the error message in the second column and leave the rest empty,
// so every row has the same width.
func (o *FetchOutcome) Row() []string {
	row := make([]string, 0, len(Columns()))
	row = append(row, o.URL)
	if o.Failed() {
		row = append(row, o.Err)
		for len(row) < len(Columns()) {
			row = append(row, "")
		}
		return row
	}
	return append(row, o.Data.Values()...)
}
