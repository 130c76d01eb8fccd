package feed

import "time"

// VehiclePosition is one parsed vehicle entity from a GTFS-RT feed
type VehiclePosition struct {
	EntityID  string
	TripID    string
	StopID    *string
	Status    string
	Latitude  *float64
	Longitude *float64
	SpeedKmh  *float64
	Timestamp *time.Time
}

// StatusMap maps GTFS-RT VehicleStopStatus enum to string
var StatusMap = map[int32]string{
	0: "INCOMING_AT",
	1: "STOPPED_AT",
	2: "IN_TRANSIT_TO",
}

const statusStoppedAt = "STOPPED_AT"
