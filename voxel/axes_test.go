package voxel

import "testing"

func TestValidAxisLabels(t *testing.T) {
	for _, labels := range []string{"cx", "cxy", "cxyz", "cxyzt", "czyx"} {
		if err := ValidAxisLabels(labels); err != nil {
			t.Errorf("Labels %q should be valid: %v\n", labels, err)
		}
	}
	for _, labels := range []string{"", "xyz", "cxx", "cxq", "xc"} {
		if err := ValidAxisLabels(labels); err == nil {
			t.Errorf("Labels %q should be invalid\n", labels)
		}
	}
}

func TestAxisMappingBijection(t *testing.T) {
	if _, err := NewAxisMapping("cxyz", "zyx"); err == nil {
		t.Errorf("Expected error on length mismatch\n")
	}
	if _, err := NewAxisMapping("cxyz", "zyxx"); err == nil {
		t.Errorf("Expected error on duplicate wire label\n")
	}
	if _, err := NewAxisMapping("cxyz", "zyxt"); err == nil {
		t.Errorf("Expected error on label not in canonical set\n")
	}

	m := WireMapping("cxyz")
	if m.WireLabels() != "zyxc" {
		t.Errorf("Expected wire labels zyxc, got %q\n", m.WireLabels())
	}

	shape := PointNd{4, 100, 200, 300}
	wireShape := m.WireShape(shape)
	if !wireShape.Equals(PointNd{300, 200, 100, 4}) {
		t.Errorf("Bad wire shape %s\n", wireShape)
	}
	if back := m.CanonicalShape(wireShape); !back.Equals(shape) {
		t.Errorf("Shape round trip gave %s\n", back)
	}

	box, _ := BoxFromOffsetShape(PointNd{0, 10, 20, 30}, PointNd{4, 5, 6, 7})
	wireBox := m.ToWire(box)
	if !wireBox.Start.Equals(PointNd{30, 20, 10, 0}) || !wireBox.Size().Equals(PointNd{7, 6, 5, 4}) {
		t.Errorf("Bad wire box %s\n", wireBox)
	}
	if back := m.ToCanonical(wireBox); !back.Equals(box) {
		t.Errorf("Box round trip gave %s\n", back)
	}
}

func TestStrides(t *testing.T) {
	strides := Strides(PointNd{2, 3, 4}, 2)
	want := []int64{24, 8, 2}
	for dim := range want {
		if strides[dim] != want[dim] {
			t.Errorf("Expected strides %v, got %v\n", want, strides)
			break
		}
	}
}

// fillSequential gives every element a distinct value so permutation
// errors can't cancel out.
func fillSequential(arr *NDArray) {
	buf := arr.Bytes()
	for i := range buf {
		buf[i] = byte(i % 253)
	}
}

func TestPermuteRoundTrip(t *testing.T) {
	m := WireMapping("cxyz")
	arr := NewNDArray(T_uint16, PointNd{2, 3, 4, 5})
	fillSequential(arr)

	wire := m.PermuteToWire(arr)
	if !wire.Shape().Equals(PointNd{5, 4, 3, 2}) {
		t.Errorf("Bad permuted shape %s\n", wire.Shape())
	}
	back := m.PermuteToCanonical(wire)
	if !back.Equals(arr) {
		t.Errorf("Permutation round trip is not the identity\n")
	}
}

// A wire-order payload is the reversed-axis row-major layout, so element
// (c,x,y,z) of the canonical array must appear at (z,y,x,c) of the wire
// array.
func TestPermuteElementPlacement(t *testing.T) {
	m := WireMapping("cxy")
	arr := NewNDArray(T_uint8, PointNd{2, 3, 4})
	fillSequential(arr)
	wire := m.PermuteToWire(arr)

	for c := int32(0); c < 2; c++ {
		for x := int32(0); x < 3; x++ {
			for y := int32(0); y < 4; y++ {
				want := arr.Element(PointNd{c, x, y})[0]
				got := wire.Element(PointNd{y, x, c})[0]
				if want != got {
					t.Fatalf("Element (%d,%d,%d) moved to the wrong wire position: %d != %d\n",
						c, x, y, got, want)
				}
			}
		}
	}
}
