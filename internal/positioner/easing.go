package positioner

import "strings"

// EasingFunc maps linear progress t in [0,1] to eased progress.
type EasingFunc func(t float64) float64

var easings = map[string]EasingFunc{
	"linear": func(t float64) float64 {
		return t
	},
	"ease-in-quad": func(t float64) float64 {
		return t * t
	},
	"ease-out-quad": func(t float64) float64 {
		return t * (2 - t)
	},
	"ease-in-out-quad": func(t float64) float64 {
		if t < 0.5 {
			return 2 * t * t
		}
		return -1 + (4-2*t)*t
	},
	"ease-out-cubic": func(t float64) float64 {
		u := t - 1
		return u*u*u + 1
	},
	"ease-in-out-cubic": func(t float64) float64 {
		if t < 0.5 {
			return 4 * t * t * t
		}
		u := 2*t - 2
		return 0.5*u*u*u + 1
	},
}

// Easing looks up an easing function by name. The second result is false
// when the name is unknown, in which case linear is returned.
func Easing(name string) (EasingFunc, bool) {
	fn, ok := easings[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return easings["linear"], false
	}
	return fn, true
}

// EasingNames lists the supported easing names.
func EasingNames() []string {
	return []string{"linear", "ease-in-quad", "ease-out-quad", "ease-in-out-quad", "ease-out-cubic", "ease-in-out-cubic"}
}
