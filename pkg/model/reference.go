package model

// ReferenceInput is the input tensor name of the embedded reference graph.
const ReferenceInput = "x:0"

// The reference graph scores a severity from over-temperature, vibration
// away from the 1 g rest position, and motor current, then picks the class
// whose centre (Normal=0 ... Fault=5) is nearest to it.
var (
	referenceHidden = [6][8]float32{
		// heat   +vx     -vx     +vy     -vy     +vz     -vz     current
		{0, 0, 0, 0, 0, 0, 0, 0.1}, // active_current
		{0, 0, 0, 0, 0, 0, 0, 0},   // dc_link_voltage
		{0.1, 0, 0, 0, 0, 0, 0, 0}, // temperature
		{0, 0.004, -0.004, 0, 0, 0, 0, 0},
		{0, 0, 0, 0.004, -0.004, 0, 0, 0},
		{0, 0, 0, 0, 0, 0.004, -0.004, 0},
	}
	referenceHiddenBias = [8]float32{-4, 0, 0, 0, 0, -1, 1, -2}
	referenceLogits     = [6]float32{10, 8, 6, 4, 2, 0}
	referenceLogitsBias = [6]float32{-25, -16, -9, -4, -1, 0}
)

// ReferenceSpec returns the spec of the embedded reference graph, quantized
// exactly as an exported model would be.
func ReferenceSpec() Spec {
	hidden := make([]float32, 0, 6*8)
	for _, row := range referenceHidden {
		hidden = append(hidden, row[:]...)
	}
	ones := make([]float32, 8)
	for i := range ones {
		ones[i] = 1
	}
	return Spec{
		Input:      ReferenceInput,
		Output:     OutputName,
		InputShape: []int{1, 6},
		Layers: []LayerSpec{
			{
				Name: "dense_1", In: 6, Out: 8, Activation: "relu",
				Weights: Quantize(hidden),
				Bias:    Quantize(referenceHiddenBias[:]),
			},
			{
				Name: "severity", In: 8, Out: 1, Activation: "linear",
				Weights: Quantize(ones),
				Bias:    Quantize([]float32{0}),
			},
			{
				Name: "logits", In: 1, Out: 6, Activation: "linear",
				Weights: Quantize(referenceLogits[:]),
				Bias:    Quantize(referenceLogitsBias[:]),
			},
		},
	}
}

// Reference compiles the embedded reference graph.
func Reference() *FeedForward {
	g, err := Compile(ReferenceSpec())
	if err != nil {
		panic("model: reference graph: " + err.Error())
	}
	return g
}
