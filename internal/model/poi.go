package model

// POICategory classifies a point of interest.
type POICategory string

// The POI categories the enricher understands. Bus stops feed the transit
// component; the rest feed the services component.
const (
	POISchool       POICategory = "school"
	POIKindergarten POICategory = "kindergarten"
	POIClinic       POICategory = "clinic"
	POIBusStop      POICategory = "bus_stop"
)

// POI is a categorized point of interest.
type POI struct {
	Category POICategory `json:"category"`
	Name     string      `json:"name,omitempty"`
	Location Point       `json:"location"`
}
