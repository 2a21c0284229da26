package network

import (
	"bytes"
	"encoding/gob"
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// mlp implements a multi-layered perceptron with multiple output
// nodes, one for each value that should be predicted.
type mlp struct {
	g          *G.ExprGraph
	layers     []Layer
	input      *G.Node
	numOutputs int
	numInputs  int
	batchSize  int

	// Architecture, needed for cloning and gobbing. These include the
	// final linear layer.
	hiddenSizes []int
	biases      []bool
	activations []*Activation

	learnables G.Nodes
	model      []G.ValueGrad

	prediction *G.Node
	predVal    G.Value
}

// NewMultiHeadMLP creates and returns a new multi-layered perceptron
// that has multiple output nodes, The number of outputs nodes is equal
// to outputs. The graph parameter g is populated with the MLP.
//
// The MLP has number of layers equal to len(hiddenSizes) + 1. A final
// layer is always added such that given any input, the output will
// be outputs. The final layer also contains a bias unit, and bias units
// for each additional hidden layer is specified by biases. The final
// layer will contain no activations, and the activations of additional
// hidden layers is specified by activations. The parameter init
// determines the weight initialization scheme.
//
// The function works such that for index i, hiddenSizes[i] is the
// number of nodes in hidden layer i; biases[i] is true if the
// hidden layer will contain a bias unit and false otherwise; and
// activations[i] is the activation function for hidden layer i.
func NewMultiHeadMLP(features, batch, outputs int, g *G.ExprGraph,
	hiddenSizes []int, biases []bool, init G.InitWFn,
	activations []*Activation) (NeuralNet, error) {
	if len(hiddenSizes) != len(activations) {
		msg := "newMultiHeadMLP: invalid number of activations" +
			"\n\twant(%d)\n\thave(%d)"
		return nil, fmt.Errorf(msg, len(hiddenSizes), len(activations))
	}
	if len(hiddenSizes) != len(biases) {
		msg := "newMultiHeadMLP: invalid number of biases\n\twant(%d)" +
			"\n\thave(%d)"
		return nil, fmt.Errorf(msg, len(hiddenSizes), len(biases))
	}
	if features < 1 || batch < 1 || outputs < 1 {
		return nil, fmt.Errorf("newMultiHeadMLP: features, batch, and " +
			"outputs must be positive")
	}

	// Add a final linear layer to predict the output heads. Copy so the
	// caller's slices are never appended to.
	sizes := append(append([]int(nil), hiddenSizes...), outputs)
	bias := append(append([]bool(nil), biases...), true)
	acts := append(append([]*Activation(nil), activations...), Identity())

	net, err := newMLP(features, batch, outputs, g, sizes, bias, init, acts)
	if err != nil {
		return nil, err
	}
	return net, nil
}

// newMLP creates an mlp whose layers are fully described by the
// arguments, including the output layer
func newMLP(features, batch, outputs int, g *G.ExprGraph, sizes []int,
	biases []bool, init G.InitWFn, activations []*Activation) (*mlp, error) {
	network := &mlp{}
	err := network.build(features, batch, outputs, g, sizes, biases, init,
		activations)
	if err != nil {
		return nil, fmt.Errorf("newMLP: %v", err)
	}
	return network, nil
}

// build constructs the mlp in place. The output value is read into the
// receiver's own field, so the mlp must not be copied afterwards.
func (e *mlp) build(features, batch, outputs int, g *G.ExprGraph,
	sizes []int, biases []bool, init G.InitWFn,
	activations []*Activation) error {
	input := G.NewMatrix(g, tensor.Float64, G.WithShape(batch, features),
		G.WithName("input"), G.WithInit(G.Zeroes()))

	layers := addfcLayers(g, features, sizes, biases, activations, init)

	*e = mlp{
		g:           g,
		layers:      layers,
		input:       input,
		numOutputs:  outputs,
		numInputs:   features,
		batchSize:   batch,
		hiddenSizes: sizes,
		biases:      biases,
		activations: activations,
	}

	if _, err := e.fwd(input); err != nil {
		return fmt.Errorf("build: could not compute forward pass: %v", err)
	}
	return nil
}

// Graph returns the computational graph of the mlp.
func (e *mlp) Graph() *G.ExprGraph {
	return e.g
}

// CloneWithBatch clones an mlp into a new computational graph with a
// new input batch size. The clone has the same weights as the
// original, but the weights are not shared.
func (e *mlp) CloneWithBatch(batchSize int) (NeuralNet, error) {
	g := G.NewGraph()
	net, err := newMLP(e.numInputs, batchSize, e.numOutputs, g,
		e.hiddenSizes, e.biases, G.Zeroes(), e.activations)
	if err != nil {
		return nil, fmt.Errorf("cloneWithBatch: could not clone: %v", err)
	}

	if err := Set(net, e); err != nil {
		return nil, fmt.Errorf("cloneWithBatch: could not copy weights: %v",
			err)
	}
	return net, nil
}

// BatchSize returns the batch size of inputs to the network
func (e *mlp) BatchSize() int {
	return e.batchSize
}

// Features returns the number of features in a single observation
// vector that the network takes as input.
func (e *mlp) Features() int {
	return e.numInputs
}

// Outputs returns the number of outputs from the network
func (e *mlp) Outputs() int {
	return e.numOutputs
}

// SetInput sets the value of the input node before running the forward
// pass.
func (e *mlp) SetInput(input []float64) error {
	if len(input) != e.numInputs*e.batchSize {
		return fmt.Errorf("setInput: invalid number of inputs\n\twant(%v)"+
			"\n\thave(%v)", e.numInputs*e.batchSize, len(input))
	}
	inputTensor := tensor.New(
		tensor.WithBacking(input),
		tensor.WithShape(e.input.Shape()...),
	)
	return G.Let(e.input, inputTensor)
}

// Learnables returns the learnable nodes in an mlp
func (e *mlp) Learnables() G.Nodes {
	if e.learnables == nil {
		learnables := make([]*G.Node, 0, 2*len(e.layers))
		for i := range e.layers {
			learnables = append(learnables, e.layers[i].Weights())
			if bias := e.layers[i].Bias(); bias != nil {
				learnables = append(learnables, bias)
			}
		}
		e.learnables = G.Nodes(learnables)
	}
	return e.learnables
}

// Model returns the learnables nodes with their gradients.
func (e *mlp) Model() []G.ValueGrad {
	if e.model == nil {
		e.model = G.NodesToValueGrads(e.Learnables())
	}
	return e.model
}

// fwd performs the forward pass of the mlp on the input node
func (e *mlp) fwd(input *G.Node) (*G.Node, error) {
	inputShape := input.Shape()[len(input.Shape())-1]
	if inputShape != e.numInputs {
		return nil, fmt.Errorf("fwd: invalid shape for input to neural net:"+
			" \n\twant(%v) \n\thave(%v)", e.numInputs, inputShape)
	}

	pred := input
	var err error
	for i, l := range e.layers {
		if pred, err = l.fwd(pred); err != nil {
			msg := "fwd: could not compute forward pass of layer %v: %v"
			return nil, fmt.Errorf(msg, i, err)
		}
	}

	e.prediction = pred
	G.Read(e.prediction, &e.predVal)

	return pred, nil
}

// Output returns the output of the mlp from the last run of its graph
func (e *mlp) Output() G.Value {
	return e.predVal
}

// Prediction returns the node of the computational graph the stores
// the output of the mlp
func (e *mlp) Prediction() *G.Node {
	return e.prediction
}

// GobEncode implements the gob.GobEncoder interface. Both the
// architecture and the current weights are encoded.
func (e *mlp) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)

	activations := make([]string, len(e.activations))
	for i := range e.activations {
		activations[i] = e.activations[i].String()
	}

	weights, err := Weights(e)
	if err != nil {
		return nil, fmt.Errorf("gobEncode: could not get weights: %v", err)
	}

	for _, field := range []interface{}{
		e.numInputs,
		e.numOutputs,
		e.batchSize,
		e.hiddenSizes,
		e.biases,
		activations,
		weights,
	} {
		if err := enc.Encode(field); err != nil {
			return nil, fmt.Errorf("gobEncode: could not encode mlp: %v", err)
		}
	}

	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface. The decoded mlp
// lives in a new computational graph.
func (e *mlp) GobDecode(in []byte) error {
	dec := gob.NewDecoder(bytes.NewReader(in))

	var numInputs, numOutputs, batchSize int
	var hiddenSizes []int
	var biases []bool
	var activationNames []string
	var weights [][]float64

	for _, field := range []interface{}{
		&numInputs,
		&numOutputs,
		&batchSize,
		&hiddenSizes,
		&biases,
		&activationNames,
		&weights,
	} {
		if err := dec.Decode(field); err != nil {
			return fmt.Errorf("gobDecode: could not decode mlp: %v", err)
		}
	}

	activations := make([]*Activation, len(activationNames))
	for i, name := range activationNames {
		act, err := NewActivation(name)
		if err != nil {
			return fmt.Errorf("gobDecode: %v", err)
		}
		activations[i] = act
	}

	err := e.build(numInputs, batchSize, numOutputs, G.NewGraph(),
		hiddenSizes, biases, G.Zeroes(), activations)
	if err != nil {
		return fmt.Errorf("gobDecode: could not construct mlp: %v", err)
	}
	if err := SetWeights(e, weights); err != nil {
		return fmt.Errorf("gobDecode: %v", err)
	}
	return nil
}

// Encode serializes a network created by this package
func Encode(net NeuralNet) ([]byte, error) {
	m, ok := net.(*mlp)
	if !ok {
		return nil, fmt.Errorf("encode: cannot serialize network of type %T",
			net)
	}
	return m.GobEncode()
}

// Decode deserializes a network serialized with Encode
func Decode(data []byte) (NeuralNet, error) {
	var m mlp
	if err := m.GobDecode(data); err != nil {
		return nil, err
	}
	return &m, nil
}
