package approach

// Class identifies a detected vehicle class. Detectors may break counts
// down by class; the controller only consumes the totals, but the class
// split is stored for reporting.
type Class string

// Vehicle class constants.
const (
	ClassCar      Class = "car"
	ClassBike     Class = "bike"
	ClassBus      Class = "bus"
	ClassTruck    Class = "truck"
	ClassRickshaw Class = "rickshaw"
	ClassTaxi     Class = "taxi"
)

// ValidClasses contains all vehicle classes a detector may report.
var ValidClasses = []Class{ClassCar, ClassBike, ClassBus, ClassTruck, ClassRickshaw, ClassTaxi}

// crossingSeconds is the nominal stop-line crossing time per vehicle of
// each class, used for saturation estimates in reports.
var crossingSeconds = map[Class]float64{
	ClassCar:      2.0,
	ClassBike:     1.0,
	ClassBus:      2.5,
	ClassTruck:    2.5,
	ClassRickshaw: 2.25,
	ClassTaxi:     2.25,
}

// CrossingTime returns the nominal crossing time in seconds for a vehicle
// class. Unknown classes fall back to the car figure.
func CrossingTime(c Class) float64 {
	if t, ok := crossingSeconds[c]; ok {
		return t
	}
	return crossingSeconds[ClassCar]
}

// IsValidClass checks if the given value is a known vehicle class.
func IsValidClass(c Class) bool {
	_, ok := crossingSeconds[c]
	return ok
}
