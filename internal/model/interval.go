package model

// TimeInterval anchors an entity on the timeline. Start and End are seconds.
type TimeInterval struct {
	ID    string  `yaml:"id"`
	Start float64 `yaml:"start"`
	End   float64 `yaml:"end"`
}

// Duration returns End - Start.
func (ti TimeInterval) Duration() float64 {
	return ti.End - ti.Start
}

// Contains reports whether instant lies inside [Start, End].
func (ti TimeInterval) Contains(instant float64) bool {
	return instant >= ti.Start && instant <= ti.End
}

// Progress maps instant to [0, 1] across the interval.
func (ti TimeInterval) Progress(instant float64) float64 {
	d := ti.Duration()
	if d <= 0 {
		if instant >= ti.End {
			return 1
		}
		return 0
	}
	return Clamp01((instant - ti.Start) / d)
}

// Clamp01 clamps v to [0, 1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
