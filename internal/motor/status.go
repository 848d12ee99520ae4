package motor

import (
	"strconv"
	"strings"

	"DriveBridge/internal/link"
)

// Status holds the fields extracted from a STATUS dump. HasDrift is false
// when the dump was truncated or missing the drift line, in which case
// callers should carry their previous drift value forward.
type Status struct {
	Motor1Pos int64
	Motor2Pos int64
	Drift     int
	HasDrift  bool
}

// ParseStatus extracts per-motor positions and the synchronization drift
// from the board's framed status dump. Lines look like:
//
//	--- Motor 1 (Left/Port) ---
//	  Position: 1200
//	--- Sync Drift: 42 steps ---
func ParseStatus(resp link.Response) Status {
	var st Status
	motor := 0
	for _, line := range resp {
		switch {
		case strings.Contains(line, "Motor 1"):
			motor = 1
		case strings.Contains(line, "Motor 2"):
			motor = 2
		}

		if strings.Contains(line, "Sync Drift:") {
			if v, ok := intAfterColon(line, "Sync Drift:"); ok {
				st.Drift = int(v)
				st.HasDrift = true
			}
			continue
		}
		if strings.Contains(line, "Position:") {
			if v, ok := intAfterColon(line, "Position:"); ok {
				switch motor {
				case 1:
					st.Motor1Pos = v
				case 2:
					st.Motor2Pos = v
				}
			}
		}
	}
	return st
}

// intAfterColon parses the first integer token following the given marker.
func intAfterColon(line, marker string) (int64, bool) {
	rest := line[strings.Index(line, marker)+len(marker):]
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return 0, false
	}
	v, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
