package detector

// DistanceThreshold is the distance to ground in meters above which an armed
// vehicle is reported unsafe.
const DistanceThreshold float32 = 5.0

// Decide returns the safety flag: false only when armed and strictly above the
// threshold.
func Decide(armed bool, distance float32) bool {
	return !(armed && distance > DistanceThreshold)
}
