package beds

import "time"

// Sector is a named grouping of beds of a single clinical type
// (e.g. "UTI Geral", "Enfermaria Clínica"). Maps to the bed_sector table.
type Sector struct {
	Name         string    `db:"name" json:"name"`
	Total        int       `db:"total" json:"total"`
	Occupied     int       `db:"occupied" json:"occupied"`
	Cleaning     int       `db:"cleaning" json:"cleaning"`
	Maintenance  int       `db:"maintenance" json:"maintenance"`
	AvgStayDays  float64   `db:"avg_stay_days" json:"avg_stay_days"`
	TurnoverRate float64   `db:"turnover_rate" json:"turnover_rate"`
	Halted       bool      `db:"halted" json:"halted"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Free returns the number of beds available for reservation.
func (s *Sector) Free() int {
	return s.Total - s.Occupied - s.Cleaning - s.Maintenance
}

// consistent reports whether the sector satisfies the inventory
// invariant: occupied + cleaning + maintenance <= total, all counts >= 0.
func (s *Sector) consistent() bool {
	if s.Total < 0 || s.Occupied < 0 || s.Cleaning < 0 || s.Maintenance < 0 {
		return false
	}
	return s.Occupied+s.Cleaning+s.Maintenance <= s.Total
}

// StatusDelta carries a bed-management update for a sector. Deltas are
// applied atomically and rejected wholesale if the result would violate
// the inventory invariant.
type StatusDelta struct {
	Total       int `json:"total"`
	Occupied    int `json:"occupied"`
	Cleaning    int `json:"cleaning"`
	Maintenance int `json:"maintenance"`
}
