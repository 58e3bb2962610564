package models

import "time"

// AvailabilityRecord is one accepted row from the portal's results area.
// AvailabilityOrPrice is the only optional field; the portal reports it as a
// points cost and omits it for some unit types.
type AvailabilityRecord struct {
	Resort              string
	Location            string
	UnitType            string
	CheckIn             time.Time
	CheckOut            time.Time
	Nights              int
	AvailabilityOrPrice string
}

// Complete reports whether every required field is populated. Records failing
// this check are rejected by the extractor, never exported.
func (r *AvailabilityRecord) Complete() bool {
	return r.Resort != "" &&
		r.Location != "" &&
		r.UnitType != "" &&
		!r.CheckIn.IsZero() &&
		!r.CheckOut.IsZero() &&
		r.Nights > 0
}

// ExportDestination names one tabular artifact to produce.
type ExportDestination struct {
	Format string // "csv" or "xlsx"
	Path   string
}
