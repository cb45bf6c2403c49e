package stepcore

// Axis identifies one of the controller's Cartesian motion axes. X2 and Y2
// are not separate axes here: they are mirrored outputs of X and Y, wired
// through Pins (see pins.go), not through an extra Bresenham counter.
type Axis uint8

const (
	AxisX Axis = iota
	AxisY
	AxisZ
	AxisCount
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "X"
	case AxisY:
		return "Y"
	case AxisZ:
		return "Z"
	default:
		return "?"
	}
}
