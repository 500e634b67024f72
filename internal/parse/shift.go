package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	ShiftOff = "OFF"
	ShiftPTO = "PTO"

	// DefaultShiftHours is charged for a shift whose times cannot be read.
	DefaultShiftHours = 8.0
)

var sideRe = regexp.MustCompile(`(?i)^(\d{1,2})(?::(\d{2}))?\s*([ap])?\.?m?\.?$`)

// Shift is a parsed time range. Minutes count from midnight of the start
// day; End may exceed 24h for overnight shifts.
type Shift struct {
	StartMinute int
	EndMinute   int
}

// Hours is the shift length.
func (s Shift) Hours() float64 {
	return float64(s.EndMinute-s.StartMinute) / 60
}

type side struct {
	minute    int
	hasPeriod bool
}

func parseSide(raw string) (side, error) {
	m := sideRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return side{}, fmt.Errorf("unrecognized time %q", raw)
	}
	h, _ := strconv.Atoi(m[1])
	mins := 0
	if m[2] != "" {
		mins, _ = strconv.Atoi(m[2])
	}
	if h > 23 || mins > 59 {
		return side{}, fmt.Errorf("time out of range %q", raw)
	}

	switch strings.ToLower(m[3]) {
	case "p":
		if h > 12 {
			return side{}, fmt.Errorf("time out of range %q", raw)
		}
		if h != 12 {
			h += 12
		}
		return side{minute: h*60 + mins, hasPeriod: true}, nil
	case "a":
		if h > 12 {
			return side{}, fmt.Errorf("time out of range %q", raw)
		}
		if h == 12 {
			h = 0
		}
		return side{minute: h*60 + mins, hasPeriod: true}, nil
	}
	return side{minute: h*60 + mins}, nil
}

// ParseShift reads codes like "9a-5p", "9:30am-6pm", "9:00-17:00",
// "7-3" and "11p-7a". An end without am/pm that falls before the start is
// read as the next half-day, so "7-3" is 07:00 to 15:00.
func ParseShift(code string) (Shift, error) {
	parts := strings.Split(strings.TrimSpace(code), "-")
	if len(parts) != 2 {
		return Shift{}, fmt.Errorf("shift %q is not a start-end range", code)
	}
	start, err := parseSide(parts[0])
	if err != nil {
		return Shift{}, err
	}
	end, err := parseSide(parts[1])
	if err != nil {
		return Shift{}, err
	}

	endMin := end.minute
	for endMin <= start.minute {
		if end.hasPeriod {
			endMin += 24 * 60
		} else {
			endMin += 12 * 60
		}
	}
	if endMin-start.minute > 24*60 {
		return Shift{}, fmt.Errorf("shift %q is longer than a day", code)
	}
	return Shift{StartMinute: start.minute, EndMinute: endMin}, nil
}

// ShiftHours is the paid length of a cell value: zero for empty, OFF and
// PTO, DefaultShiftHours when the times cannot be read.
func ShiftHours(code string) float64 {
	code = strings.TrimSpace(code)
	if code == "" || strings.EqualFold(code, ShiftOff) || strings.EqualFold(code, ShiftPTO) {
		return 0
	}
	s, err := ParseShift(code)
	if err != nil {
		return DefaultShiftHours
	}
	return s.Hours()
}

// IsWorkingShift reports whether the cell value counts as a worked day.
func IsWorkingShift(code string) bool {
	code = strings.TrimSpace(code)
	return code != "" && !strings.EqualFold(code, ShiftOff) && !strings.EqualFold(code, ShiftPTO)
}

// ValidCellValue reports whether code may be stored in a schedule cell.
func ValidCellValue(code string) bool {
	code = strings.TrimSpace(code)
	if code == "" || code == ShiftOff || code == ShiftPTO {
		return true
	}
	_, err := ParseShift(code)
	return err == nil
}
