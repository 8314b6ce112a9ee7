package schedule

import (
	"encoding/json"
	"fmt"
)

// The stored working_hours blobs key days by lowercase English name, with
// clock values as "HH:MM" strings and break fields optional. The JSON
// codec below keeps that wire form while the in-memory representation
// stays a fixed weekday-indexed array.

var dayNames = [7]string{
	"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday",
}

type dayJSON struct {
	Enabled    bool   `json:"enabled"`
	Start      string `json:"start,omitempty"`
	End        string `json:"end,omitempty"`
	BreakStart string `json:"break_start,omitempty"`
	BreakEnd   string `json:"break_end,omitempty"`
}

func (w WeekSchedule) MarshalJSON() ([]byte, error) {
	out := make(map[string]dayJSON, 7)
	for i, d := range w {
		if !d.Enabled {
			continue
		}
		dj := dayJSON{
			Enabled: true,
			Start:   d.Start.String(),
			End:     d.End.String(),
		}
		if d.HasBreak {
			dj.BreakStart = d.BreakStart.String()
			dj.BreakEnd = d.BreakEnd.String()
		}
		out[dayNames[i]] = dj
	}
	return json.Marshal(out)
}

func (w *WeekSchedule) UnmarshalJSON(data []byte) error {
	var raw map[string]dayJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var ws WeekSchedule
	for name, dj := range raw {
		idx := -1
		for i, n := range dayNames {
			if n == name {
				idx = i
				break
			}
		}
		if idx < 0 {
			// Tolerate unknown keys; legacy blobs carry stray metadata.
			continue
		}
		if !dj.Enabled {
			continue
		}
		d := DaySchedule{Enabled: true}
		var err error
		if d.Start, err = ParseClock(dj.Start); err != nil {
			return fmt.Errorf("%s start: %w", name, err)
		}
		if d.End, err = ParseClock(dj.End); err != nil {
			return fmt.Errorf("%s end: %w", name, err)
		}
		if dj.BreakStart != "" && dj.BreakEnd != "" {
			d.HasBreak = true
			if d.BreakStart, err = ParseClock(dj.BreakStart); err != nil {
				return fmt.Errorf("%s break_start: %w", name, err)
			}
			if d.BreakEnd, err = ParseClock(dj.BreakEnd); err != nil {
				return fmt.Errorf("%s break_end: %w", name, err)
			}
		}
		if err := d.Validate(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		ws[idx] = d
	}
	*w = ws
	return nil
}
