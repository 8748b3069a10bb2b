package domain

import "math"

// straitHeading is the heading of the Strait of Georgia's long axis,
// measured clockwise from north.
var straitHeading = radians(305)

// WindComponents rotates a wind speed (m/s) and meteorological direction
// (degrees true, direction the wind blows from) into cross-strait and
// along-strait components. The components follow the oceanographic
// convention: positive along-strait is the direction the wind blows toward,
// up the strait.
func WindComponents(speed, direction float64) (cross, along float64) {
	rad := radians(direction)
	u := speed * math.Sin(rad)
	v := speed * math.Cos(rad)
	// Rotate components to align the u axis with the strait.
	cross = u*math.Cos(straitHeading) - v*math.Sin(straitHeading)
	along = u*math.Sin(straitHeading) + v*math.Cos(straitHeading)
	// Resolve the atmosphere/ocean direction convention difference in
	// favour of oceanography.
	return -cross, -along
}

// KmhToMs converts a speed from km/h to m/s, the unit SWOB-ML wind speeds
// arrive in versus the unit SOG forcing wants.
func KmhToMs(kmh float64) float64 {
	return kmh * 1000 / (60 * 60)
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
