package ml

import (
	"math"
	"math/rand"
)

// BuildWindows slices a series into overlapping windows of length seqLen,
// each paired with the sample that immediately follows it. A series shorter
// than seqLen+1 yields no windows.
func BuildWindows(series [][]float64, seqLen int) (windows [][][]float64, targets [][]float64) {
	if len(series) <= seqLen {
		return nil, nil
	}
	for i := seqLen; i < len(series); i++ {
		windows = append(windows, series[i-seqLen:i])
		targets = append(targets, series[i])
	}
	return windows, targets
}

// SequenceModel predicts the next sample of a multivariate series from the
// preceding window. It is a single-hidden-layer dense network over the
// flattened window, trained by stochastic gradient descent on mean-squared
// error. Weights are exported so the trained model gob-serializes.
type SequenceModel struct {
	SeqLen      int
	NumFeatures int
	HiddenSize  int

	// W1 is hidden x (seqLen*features); W2 is features x hidden.
	W1 [][]float64
	B1 []float64
	W2 [][]float64
	B2 []float64
}

// NewSequenceModel initializes a model with small random weights drawn from
// the seeded generator, so training is reproducible.
func NewSequenceModel(seqLen, numFeatures, hiddenSize int, seed int64) *SequenceModel {
	rng := rand.New(rand.NewSource(seed))
	inDim := seqLen * numFeatures

	m := &SequenceModel{
		SeqLen:      seqLen,
		NumFeatures: numFeatures,
		HiddenSize:  hiddenSize,
		W1:          make([][]float64, hiddenSize),
		B1:          make([]float64, hiddenSize),
		W2:          make([][]float64, numFeatures),
		B2:          make([]float64, numFeatures),
	}

	// Xavier-style init keeps tanh activations out of saturation.
	scale1 := math.Sqrt(1.0 / float64(inDim))
	for h := range m.W1 {
		m.W1[h] = make([]float64, inDim)
		for i := range m.W1[h] {
			m.W1[h][i] = (rng.Float64()*2 - 1) * scale1
		}
	}
	scale2 := math.Sqrt(1.0 / float64(hiddenSize))
	for f := range m.W2 {
		m.W2[f] = make([]float64, hiddenSize)
		for h := range m.W2[f] {
			m.W2[f][h] = (rng.Float64()*2 - 1) * scale2
		}
	}
	return m
}

// Fit trains the model on window/target pairs for the given number of epochs.
// Samples are visited in order so repeated runs with the same seed produce
// identical weights.
func (m *SequenceModel) Fit(windows [][][]float64, targets [][]float64, epochs int, learningRate float64) {
	for epoch := 0; epoch < epochs; epoch++ {
		for i, window := range windows {
			m.step(flatten(window), targets[i], learningRate)
		}
	}
}

// Predict returns the model's estimate of the sample following the window.
func (m *SequenceModel) Predict(window [][]float64) []float64 {
	_, out := m.forward(flatten(window))
	return out
}

func (m *SequenceModel) forward(x []float64) (hidden, out []float64) {
	hidden = make([]float64, m.HiddenSize)
	for h := range hidden {
		sum := m.B1[h]
		for i, v := range x {
			sum += m.W1[h][i] * v
		}
		hidden[h] = math.Tanh(sum)
	}
	out = make([]float64, m.NumFeatures)
	for f := range out {
		sum := m.B2[f]
		for h, v := range hidden {
			sum += m.W2[f][h] * v
		}
		out[f] = sum
	}
	return hidden, out
}

// step performs one SGD update against the MSE loss for a single sample.
func (m *SequenceModel) step(x, target []float64, lr float64) {
	hidden, out := m.forward(x)

	// Output layer gradient: dL/dy = 2(y - t)/n.
	dOut := make([]float64, m.NumFeatures)
	for f := range out {
		dOut[f] = 2 * (out[f] - target[f]) / float64(m.NumFeatures)
	}

	// Backprop into the hidden layer through tanh.
	dHidden := make([]float64, m.HiddenSize)
	for h := range dHidden {
		var sum float64
		for f := range dOut {
			sum += dOut[f] * m.W2[f][h]
		}
		dHidden[h] = sum * (1 - hidden[h]*hidden[h])
	}

	for f := range m.W2 {
		for h := range m.W2[f] {
			m.W2[f][h] -= lr * dOut[f] * hidden[h]
		}
		m.B2[f] -= lr * dOut[f]
	}
	for h := range m.W1 {
		for i := range m.W1[h] {
			m.W1[h][i] -= lr * dHidden[h] * x[i]
		}
		m.B1[h] -= lr * dHidden[h]
	}
}

func flatten(window [][]float64) []float64 {
	if len(window) == 0 {
		return nil
	}
	flat := make([]float64, 0, len(window)*len(window[0]))
	for _, row := range window {
		flat = append(flat, row...)
	}
	return flat
}
