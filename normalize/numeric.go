package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

var priceOku = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*億`)
var priceMan = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*万`)

// ParsePrice converts a raw price string (e.g. "1億2000万円", "5,800万円")
// to its value in units of 10,000 JPY, per spec.md §4.1.
func ParsePrice(raw string) (int, bool) {
	s := strings.ReplaceAll(foldWidth(raw), ",", "")
	if s == "" {
		return 0, false
	}
	total := 0.0
	found := false
	if loc := priceOku.FindStringSubmatchIndex(s); loc != nil {
		v, err := strconv.ParseFloat(s[loc[2]:loc[3]], 64)
		if err == nil {
			total += v * 10000
			found = true
			s = s[:loc[0]] + s[loc[1]:]
		}
	}
	if m := priceMan.FindStringSubmatch(s); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			total += v
			found = true
		}
	} else if !found {
		digits := regexp.MustCompile(`\d+(?:\.\d+)?`).FindString(s)
		if digits != "" {
			v, err := strconv.ParseFloat(digits, 64)
			if err == nil {
				total = v
				found = true
			}
		}
	}
	if !found {
		return 0, false
	}
	return int(total + 0.5), true
}

var areaPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:㎡|m2|m²|平米)`)

// ParseArea extracts an area_m2 float from a raw string like "75.32㎡".
func ParseArea(raw string) (float64, bool) {
	s := foldWidth(raw)
	m := areaPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// floorPattern, totalFloorsPattern and basementFloorsPattern parse the combined form the Japanese portals emit,
// e.g. "4階/SRC地上12階地下1階建" -> floor=4, total=12, basement=1.
var floorPattern = regexp.MustCompile(`(\d+)\s*階(?:部分|/|建)?`)
var totalFloorsPattern = regexp.MustCompile(`地上\s*(\d+)\s*階`)
var basementFloorsPattern = regexp.MustCompile(`地下\s*(\d+)\s*階`)

// FloorInfo parses floor_number, total_floors, and basement_floors out of
// a combined raw string. Any component not present in the input is
// returned as ok=false for that component alone.
type FloorInfo struct {
	Floor          int
	FloorOK        bool
	TotalFloors    int
	TotalFloorsOK  bool
	BasementFloors int
	BasementOK     bool
}

func ParseFloorInfo(raw string) FloorInfo {
	s := foldWidth(raw)
	var info FloorInfo

	if m := totalFloorsPattern.FindStringSubmatch(s); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			info.TotalFloors = v
			info.TotalFloorsOK = true
		}
	}
	if m := basementFloorsPattern.FindStringSubmatch(s); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			info.BasementFloors = v
			info.BasementOK = true
		}
	}

	// the leading "N階" (before any "/") is the unit's own floor, distinct
	// from the "地上N階" building total that may follow.
	lead := s
	if idx := strings.Index(s, "/"); idx >= 0 {
		lead = s[:idx]
	}
	if m := floorPattern.FindStringSubmatch(lead); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			info.Floor = v
			info.FloorOK = true
		}
	}
	return info
}

var totalUnitsPattern = regexp.MustCompile(`(?:総戸数|全)\s*(\d+)\s*戸`)

// ParseTotalUnits extracts a building's total_units from a raw string like
// "総戸数120戸".
func ParseTotalUnits(raw string) (int, bool) {
	s := foldWidth(raw)
	m := totalUnitsPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return v, true
}

// waveraEraStart maps each Japanese era name to (start western year, start
// era year counted as 1).
var waveraEraStart = map[string]int{
	"令和": 2019,
	"平成": 1989,
	"昭和": 1926,
	"大正": 1912,
	"明治": 1868,
}

var warekiPattern = regexp.MustCompile(`(令和|平成|昭和|大正|明治)\s*(元|\d+)\s*年(?:\s*(\d+)\s*月)?`)
var westernPattern = regexp.MustCompile(`(\d{4})\s*年?(?:\s*(\d{1,2})\s*月)?`)

// ParseBuiltDate extracts built_year and built_month from a raw string,
// accepting both western-calendar and wareki-era (元号) notation.
func ParseBuiltDate(raw string) (year int, yearOK bool, month int, monthOK bool) {
	s := foldWidth(raw)

	if m := warekiPattern.FindStringSubmatch(s); m != nil {
		start, ok := waveraEraStart[m[1]]
		if ok {
			eraYear := 1
			if m[2] != "元" {
				if v, err := strconv.Atoi(m[2]); err == nil {
					eraYear = v
				}
			}
			year = start + eraYear - 1
			yearOK = true
			if m[3] != "" {
				if v, err := strconv.Atoi(m[3]); err == nil {
					month = v
					monthOK = true
				}
			}
			return year, yearOK, month, monthOK
		}
	}

	if m := westernPattern.FindStringSubmatch(s); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			year = v
			yearOK = true
		}
		if m[2] != "" {
			if v, err := strconv.Atoi(m[2]); err == nil {
				month = v
				monthOK = true
			}
		}
	}
	return year, yearOK, month, monthOK
}
