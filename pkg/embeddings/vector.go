// Package embeddings provides the binary vector codec and similarity math for
// paragraph embedding vectors.
package embeddings

import (
	"encoding/binary"
	"fmt"
	"math"
)

// bytesPerFloat is the encoded width of one vector component.
const bytesPerFloat = 4

// Encode serializes a vector as a fixed-width little-endian float32 array.
// This is the storage contract for the vector column: Decode(Encode(v)) must
// reproduce v exactly.
func Encode(vector []float32) []byte {
	buf := make([]byte, len(vector)*bytesPerFloat)
	for i, f := range vector {
		binary.LittleEndian.PutUint32(buf[i*bytesPerFloat:], math.Float32bits(f))
	}

	return buf
}

// Decode deserializes a little-endian byte slice back into a float32 vector.
// Returns an error when the payload length is not a multiple of four bytes.
func Decode(buf []byte) ([]float32, error) {
	if len(buf)%bytesPerFloat != 0 {
		return nil, fmt.Errorf("embeddings: encoded vector length %d is not a multiple of %d", len(buf), bytesPerFloat)
	}

	n := len(buf) / bytesPerFloat

	vector := make([]float32, n)
	for i := range n {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*bytesPerFloat:]))
	}

	return vector, nil
}

// Magnitude returns the Euclidean length of the vector. Accumulates in
// float64 to limit rounding drift on long vectors.
func Magnitude(vector []float32) float64 {
	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}

	return math.Sqrt(sumSquares)
}

// Dot returns the dot product of a and b. Both vectors must have the same
// length; the caller checks dimensions before scoring.
func Dot(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}

	return dot
}

// Cosine returns the cosine similarity of a and b in [-1, 1].
// A zero magnitude on either side yields 0 rather than a division error.
func Cosine(a, b []float32) float64 {
	return CosineAgainst(a, Magnitude(a), b)
}

// CosineAgainst is Cosine with the query magnitude precomputed, so a scan
// over many candidate vectors only pays for one magnitude per candidate.
func CosineAgainst(query []float32, queryMagnitude float64, candidate []float32) float64 {
	if queryMagnitude == 0 {
		return 0
	}

	candidateMagnitude := Magnitude(candidate)
	if candidateMagnitude == 0 {
		return 0
	}

	return Dot(query, candidate) / (queryMagnitude * candidateMagnitude)
}
