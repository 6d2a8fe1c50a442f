package normalize

import (
	"strings"

	"condocore/models"
)

// Listing is the output of normalising one RawListing: every field that
// survived validation, in canonical form, ready for the Resolver.
type Listing struct {
	NormalisedBuildingName string
	CanonicalBuildingName  string
	RoomNumberFromName     string
	StationNoise           bool

	NormalisedAddress string

	FloorNumber    *int
	AreaM2         *float64
	Layout         string
	Direction      string
	RoomNumber     string
	BalconyAreaM2  *float64
	CurrentPrice   *int
	ManagementFee  *int
	RepairFund     *int

	ListingTotalFloors    *int
	ListingBasementFloors *int
	ListingBuiltYear      *int
	ListingBuiltMonth     *int
	ListingTotalUnits     *int
}

// stationNoiseWords detect a building-name field that is in fact a
// transit description, per spec.md §4.3 and the Station-noise glossary
// entry.
var stationNoiseWords = []string{"駅", "徒歩", "分歩", "バス", "線"}

func isStationNoise(name string) bool {
	for _, w := range stationNoiseWords {
		if strings.Contains(name, w) {
			return true
		}
	}
	return false
}

// Engine applies every field normaliser and validator to a RawListing,
// recording dropped fields in Counters.
type Engine struct {
	Counters *Counters
}

// NewEngine returns a ready-to-use Engine with its own Counters.
func NewEngine() *Engine {
	return &Engine{Counters: NewCounters()}
}

// Normalise converts a RawListing into a Listing, dropping any field that
// fails validation and incrementing its counter. Never returns an error —
// per spec.md §7, validation failures drop the field and continue.
func (e *Engine) Normalise(raw *models.RawListing) Listing {
	out := Listing{}

	name, room := ExtractRoomNumber(raw.ListingBuildingName)
	out.NormalisedBuildingName, out.CanonicalBuildingName = BuildingName(name)
	out.RoomNumberFromName = room
	out.StationNoise = isStationNoise(raw.ListingBuildingName)

	out.NormalisedAddress = Address(raw.ListingAddress)

	if raw.FloorNumber != nil {
		if ValidFloor(*raw.FloorNumber) {
			v := *raw.FloorNumber
			out.FloorNumber = &v
		} else {
			e.Counters.Drop("floor_number")
		}
	}
	if raw.AreaM2 != nil {
		if ValidArea(*raw.AreaM2) {
			v := *raw.AreaM2
			out.AreaM2 = &v
		} else {
			e.Counters.Drop("area_m2")
		}
	}
	if raw.Layout != "" {
		l := Layout(raw.Layout)
		if l != "" {
			out.Layout = l
		} else {
			e.Counters.Drop("layout")
		}
	}
	if raw.Direction != "" {
		d := Direction(raw.Direction)
		if d != "" {
			out.Direction = d
		} else {
			e.Counters.Drop("direction")
		}
	}
	out.RoomNumber = raw.RoomNumber
	if out.RoomNumber == "" {
		out.RoomNumber = room
	}
	out.BalconyAreaM2 = raw.BalconyAreaM2

	if raw.CurrentPrice != nil {
		if ValidPrice(*raw.CurrentPrice) {
			v := *raw.CurrentPrice
			out.CurrentPrice = &v
		} else {
			e.Counters.Drop("current_price")
		}
	}
	out.ManagementFee = raw.ManagementFee
	out.RepairFund = raw.RepairFund

	out.ListingTotalFloors = validatedFloorsPtr(raw.ListingTotalFloors, e.Counters, "listing_total_floors")
	out.ListingBasementFloors = validatedFloorsPtr(raw.ListingBasementFloors, e.Counters, "listing_basement_floors")
	out.ListingTotalUnits = raw.ListingTotalUnits

	if raw.ListingBuiltYear != nil {
		if ValidBuiltYear(*raw.ListingBuiltYear) {
			v := *raw.ListingBuiltYear
			out.ListingBuiltYear = &v
			out.ListingBuiltMonth = raw.ListingBuiltMonth
		} else {
			e.Counters.Drop("listing_built_year")
		}
	}

	return out
}

func validatedFloorsPtr(v *int, c *Counters, field string) *int {
	if v == nil {
		return nil
	}
	if ValidFloor(*v) {
		out := *v
		return &out
	}
	c.Drop(field)
	return nil
}
