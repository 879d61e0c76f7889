// Package property parses and validates batch input rows before any
// remote imagery work is attempted.
package property

// RawRow is one unvalidated CSV input row.
type RawRow struct {
	Position  int
	ID        string
	Latitude  string
	Longitude string
	Extent    string
	Label     string
}

// Property is a validated, immutable input row. Position preserves the
// original input order for deterministic report output.
type Property struct {
	ID          string
	Latitude    float64
	Longitude   float64
	ExtentAcres float64
	Label       string
	Position    int
}

// Rejection records why a row never reached the fetch stage.
type Rejection struct {
	ID       string
	Position int
	Reason   string
}
