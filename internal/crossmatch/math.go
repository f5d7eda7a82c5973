package crossmatch

import "math"

// degAtan returns atan(x) in degrees, used by the Mpc-unit far-mode
// effective radius formula in spec.md §4.1.
func degAtan(x float64) float64 { return math.Atan(x) * 180 / math.Pi }

// radOf converts degrees to radians, used by the Mpc-unit distance_kpc
// formula in spec.md §4.1.
func radOf(deg float64) float64 { return deg * math.Pi / 180 }
