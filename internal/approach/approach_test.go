package approach

import (
	"errors"
	"testing"
)

func TestRotationOrder(t *testing.T) {
	want := [4]Approach{North, East, South, West}
	if Order() != want {
		t.Errorf("Order() = %v, want %v", Order(), want)
	}
}

func TestNext(t *testing.T) {
	tests := []struct {
		name string
		from Approach
		want Approach
	}{
		{"north to east", North, East},
		{"east to south", East, South},
		{"south to west", South, West},
		{"west wraps to north", West, North},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Next(tt.from); got != tt.want {
				t.Errorf("Next(%s) = %s, want %s", tt.from, got, tt.want)
			}
		})
	}
}

func TestAtIndexWraps(t *testing.T) {
	tests := []struct {
		name string
		i    int
		want Approach
	}{
		{"index 0", 0, North},
		{"index 3", 3, West},
		{"index 4 wraps", 4, North},
		{"index 7 wraps", 7, West},
		{"negative index wraps", -1, West},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AtIndex(tt.i); got != tt.want {
				t.Errorf("AtIndex(%d) = %s, want %s", tt.i, got, tt.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Approach
		wantErr bool
	}{
		{"lowercase", "north", North, false},
		{"uppercase", "EAST", East, false},
		{"mixed case with spaces", "  South ", South, false},
		{"west", "west", West, false},
		{"unknown", "northwest", "", true},
		{"empty", "", "", true},
		{"numeric", "1", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q) expected error, got %q", tt.input, got)
				}
				if !errors.Is(err, ErrUnknownApproach) {
					t.Errorf("Parse(%q) error = %v, want ErrUnknownApproach", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestIndexOf(t *testing.T) {
	for i, a := range Order() {
		got, ok := IndexOf(a)
		if !ok || got != i {
			t.Errorf("IndexOf(%s) = %d, %v, want %d, true", a, got, ok, i)
		}
	}
	if _, ok := IndexOf("diagonal"); ok {
		t.Error("IndexOf accepted an unknown approach")
	}
}

func TestCrossingTime(t *testing.T) {
	tests := []struct {
		name  string
		class Class
		want  float64
	}{
		{"car", ClassCar, 2.0},
		{"bike", ClassBike, 1.0},
		{"bus", ClassBus, 2.5},
		{"truck", ClassTruck, 2.5},
		{"rickshaw", ClassRickshaw, 2.25},
		{"taxi", ClassTaxi, 2.25},
		{"unknown falls back to car", Class("hovercraft"), 2.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CrossingTime(tt.class); got != tt.want {
				t.Errorf("CrossingTime(%s) = %f, want %f", tt.class, got, tt.want)
			}
		})
	}
}
