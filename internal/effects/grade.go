package effects

import "strings"

// gradePresets is the colour-grade lookup table. Values follow CSS filter
// semantics: 1 is neutral for brightness/contrast/saturate, 0 for sepia and
// hue rotation.
var gradePresets = map[string][]FilterOp{
	"cinematic": {
		{FilterContrast, 1.15}, {FilterSaturate, 0.85}, {FilterBrightness, 0.95}, {FilterSepia, 0.1},
	},
	"warm": {
		{FilterSepia, 0.25}, {FilterSaturate, 1.2}, {FilterBrightness, 1.05},
	},
	"cool": {
		{FilterHueRotate, 195}, {FilterSepia, 0.1}, {FilterHueRotate, -180}, {FilterSaturate, 1.1},
	},
	"vintage": {
		{FilterSepia, 0.45}, {FilterContrast, 0.9}, {FilterBrightness, 1.05}, {FilterSaturate, 0.8},
	},
	"noir": {
		{FilterGrayscale, 1}, {FilterContrast, 1.3}, {FilterBrightness, 0.9},
	},
	"vibrant": {
		{FilterSaturate, 1.5}, {FilterContrast, 1.1},
	},
	"muted": {
		{FilterSaturate, 0.6}, {FilterContrast, 0.95}, {FilterBrightness, 1.02},
	},
	"teal-orange": {
		{FilterContrast, 1.1}, {FilterSaturate, 1.25}, {FilterHueRotate, -8}, {FilterSepia, 0.15},
	},
	"dramatic": {
		{FilterContrast, 1.4}, {FilterBrightness, 0.85}, {FilterSaturate, 1.1},
	},
}

// GradePreset returns the filter chain of a named grade. Unknown names are neutral.
func GradePreset(name string) []FilterOp {
	ops, ok := gradePresets[strings.ToLower(name)]
	if !ok {
		return nil
	}
	return append([]FilterOp(nil), ops...)
}

// GradePresetNames lists the known grades.
func GradePresetNames() []string {
	return []string{"cinematic", "warm", "cool", "vintage", "noir", "vibrant", "muted", "teal-orange", "dramatic"}
}
