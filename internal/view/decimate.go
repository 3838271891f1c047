package view

// MaxPoints bounds the cumulative polar and recurrence point sets.
const MaxPoints = 1000

// Stride returns max(1, floor(n/MaxPoints)).
func Stride(n int) int {
	if s := n / MaxPoints; s > 1 {
		return s
	}
	return 1
}

// DecimateIndices returns every Stride(n)-th index of [0, n), capped at
// MaxPoints entries. With n between MaxPoints and 2*MaxPoints the stride is
// 1 and the cap drops the tail.
func DecimateIndices(n int) []int {
	if n <= 0 {
		return nil
	}
	stride := Stride(n)
	out := make([]int, 0, min(MaxPoints, n/stride+1))
	for i := 0; i < n && len(out) < MaxPoints; i += stride {
		out = append(out, i)
	}
	return out
}

// PairedIndices decimates two series of possibly different lengths with one
// shared stride taken from the shorter series, so index i of both outputs
// refers to the same sample.
func PairedIndices(lenX, lenY int) []int {
	return DecimateIndices(min(lenX, lenY))
}
