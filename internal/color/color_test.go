package color

import "testing"

func TestScaleChannel(t *testing.T) {
	tests := []struct {
		name       string
		value      uint8
		brightness uint8
		want       uint8
	}{
		{"full brightness keeps value", 200, 255, 200},
		{"zero brightness", 200, 0, 0},
		{"half truncates", 10, 128, 5},
		{"half of 20", 20, 128, 10},
		{"half of 30", 30, 128, 15},
		{"max channel at half", 255, 128, 128},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ScaleChannel(tt.value, tt.brightness); got != tt.want {
				t.Errorf("ScaleChannel(%d, %d) = %d, want %d", tt.value, tt.brightness, got, tt.want)
			}
		})
	}
}

func TestRGBScale(t *testing.T) {
	got := RGB{10, 20, 30}.Scale(128)
	want := RGB{5, 10, 15}
	if got != want {
		t.Errorf("Scale = %v, want %v", got, want)
	}
}

func TestHSVPrimaries(t *testing.T) {
	tests := []struct {
		name string
		hue  float64
		want RGB
	}{
		{"red", 0, Red},
		{"green", 120, Green},
		{"blue", 240, Blue},
		{"wraps past 360", 480, Green},
		{"negative wraps", -120, Blue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HSV(tt.hue, 255, 255)
			if !near(got, tt.want, 1) {
				t.Errorf("HSV(%v) = %v, want %v", tt.hue, got, tt.want)
			}
		})
	}
}

func TestHSVNoSaturationIsGray(t *testing.T) {
	got := HSV(200, 0, 100)
	if got.R != got.G || got.G != got.B {
		t.Errorf("HSV with zero saturation = %v, want gray", got)
	}
}

func TestScale8(t *testing.T) {
	if got := Scale8(255, 250); got != 249 {
		t.Errorf("Scale8(255, 250) = %d, want 249", got)
	}
	if got := Scale8(0, 250); got != 0 {
		t.Errorf("Scale8(0, 250) = %d, want 0", got)
	}
}

func near(a, b RGB, tol int) bool {
	d := func(x, y uint8) int {
		if x > y {
			return int(x - y)
		}
		return int(y - x)
	}
	return d(a.R, b.R) <= tol && d(a.G, b.G) <= tol && d(a.B, b.B) <= tol
}
