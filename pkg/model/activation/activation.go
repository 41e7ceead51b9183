// Package activation names the non-linearities a tabular model can place after its hidden layers.
package activation

import (
	"fmt"

	"github.com/nlpodyssey/spago/pkg/ml/ag"
)

type Kind string

const (
	// None leaves its input untouched. It is reserved for the output layer.
	None    Kind = ""
	ReLU    Kind = "relu"
	Tanh    Kind = "tanh"
	Sigmoid Kind = "sigmoid"
)

// Parse returns the Kind named by name.
func Parse(name string) (Kind, error) {
	k := Kind(name)
	if !k.Valid() {
		return None, fmt.Errorf("unknown activation %q", name)
	}
	return k, nil
}

func (k Kind) Valid() bool {
	switch k {
	case None, ReLU, Tanh, Sigmoid:
		return true
	}
	return false
}

func (k Kind) String() string {
	if k == None {
		return "none"
	}
	return string(k)
}

// Apply adds the activation of x to g.
func (k Kind) Apply(g *ag.Graph, x ag.Node) ag.Node {
	switch k {
	case ReLU:
		return g.ReLU(x)
	case Tanh:
		return g.Tanh(x)
	case Sigmoid:
		return g.Sigmoid(x)
	default:
		return x
	}
}

// Op is the graph operator of the activation, used to pick initialisation gains.
func (k Kind) Op() ag.OpName {
	switch k {
	case ReLU:
		return ag.OpReLU
	case Tanh:
		return ag.OpTanh
	case Sigmoid:
		return ag.OpSigmoid
	default:
		return ag.OpIdentity
	}
}
