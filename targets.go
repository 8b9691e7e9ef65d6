package simpleserial

// Targets provides the list of target endpoints, as accepted by
// transport.Open ("serial:///dev/ttyACM0", "tcp://127.0.0.1:4000", ...).
type Targets interface {
	List() []string
}

// StaticTargets is a fixed list of endpoints.
type StaticTargets []string

// NewStaticTargets returns a Targets listing the given endpoints.
func NewStaticTargets(endpoints ...string) StaticTargets {
	return StaticTargets(endpoints)
}

func (s StaticTargets) List() []string {
	return s
}
