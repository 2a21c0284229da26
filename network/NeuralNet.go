// Package network implements neural network function approximators
// built on Gorgonia computational graphs
package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// NeuralNet is a neural network that populates a Gorgonia
// computational graph. A NeuralNet does not own a VM; the graph
// returned by Graph() must be run externally before Output() is valid.
type NeuralNet interface {
	Graph() *G.ExprGraph
	CloneWithBatch(int) (NeuralNet, error)
	BatchSize() int
	Features() int
	Outputs() int
	SetInput([]float64) error
	Learnables() G.Nodes
	Model() []G.ValueGrad
	Output() G.Value
	Prediction() *G.Node
}

// Set sets the weights of dest to be equal to the weights of source.
// The two networks must have the same architecture, but may have
// different batch sizes.
func Set(dest, source NeuralNet) error {
	sourceNodes := source.Learnables()
	nodes := dest.Learnables()
	if len(sourceNodes) != len(nodes) {
		return fmt.Errorf("set: incompatible networks \n\twant(%v learnables)"+
			"\n\thave(%v learnables)", len(nodes), len(sourceNodes))
	}

	for i := range nodes {
		destWeights, err := weights(nodes[i])
		if err != nil {
			return fmt.Errorf("set: %v", err)
		}
		sourceWeights, err := weights(sourceNodes[i])
		if err != nil {
			return fmt.Errorf("set: %v", err)
		}
		if len(destWeights) != len(sourceWeights) {
			return fmt.Errorf("set: learnable %v has incompatible shape", i)
		}
		copy(destWeights, sourceWeights)
	}
	return nil
}

// Polyak sets the weights of dest to be a polyak average between its
// existing weights and the weights of source:
//
//	dest <- (1 - tau) * dest + tau * source
func Polyak(dest, source NeuralNet, tau float64) error {
	sourceNodes := source.Learnables()
	nodes := dest.Learnables()
	if len(sourceNodes) != len(nodes) {
		return fmt.Errorf("polyak: incompatible networks")
	}

	for i := range nodes {
		destWeights, err := weights(nodes[i])
		if err != nil {
			return fmt.Errorf("polyak: %v", err)
		}
		sourceWeights, err := weights(sourceNodes[i])
		if err != nil {
			return fmt.Errorf("polyak: %v", err)
		}
		for j := range destWeights {
			destWeights[j] = (1-tau)*destWeights[j] + tau*sourceWeights[j]
		}
	}
	return nil
}

// Weights returns a copy of the values of each learnable node of a
// network, in the order given by Learnables()
func Weights(net NeuralNet) ([][]float64, error) {
	learnables := net.Learnables()
	out := make([][]float64, len(learnables))
	for i, node := range learnables {
		w, err := weights(node)
		if err != nil {
			return nil, err
		}
		out[i] = append([]float64(nil), w...)
	}
	return out, nil
}

// SetWeights copies values into each learnable node of a network, in
// the order given by Learnables()
func SetWeights(net NeuralNet, values [][]float64) error {
	learnables := net.Learnables()
	if len(learnables) != len(values) {
		return fmt.Errorf("setWeights: invalid number of weight tensors "+
			"\n\twant(%v)\n\thave(%v)", len(learnables), len(values))
	}
	for i, node := range learnables {
		w, err := weights(node)
		if err != nil {
			return err
		}
		if len(w) != len(values[i]) {
			return fmt.Errorf("setWeights: invalid size for learnable %v "+
				"\n\twant(%v)\n\thave(%v)", i, len(w), len(values[i]))
		}
		copy(w, values[i])
	}
	return nil
}

// weights returns the backing data of a learnable node
func weights(node *G.Node) ([]float64, error) {
	dense, ok := node.Value().(*tensor.Dense)
	if !ok {
		return nil, fmt.Errorf("node %v has no dense value", node.Name())
	}
	data, ok := dense.Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("node %v is not float64", node.Name())
	}
	return data, nil
}
