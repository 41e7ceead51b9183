package embedding

import (
	"testing"

	mat "github.com/nlpodyssey/spago/pkg/mat32"
	"github.com/nlpodyssey/spago/pkg/mat32/rand"
	"github.com/nlpodyssey/spago/pkg/ml/ag"
	"github.com/nlpodyssey/spago/pkg/ml/nn"
	"github.com/stretchr/testify/require"
)

func TestModel_Lookup(t *testing.T) {
	m := New(4, 3)
	for row := 0; row < 3; row++ {
		for col := 0; col < 4; col++ {
			m.W.Value().Set(row, col, mat.Float(10*col+row))
		}
	}

	g := ag.NewGraph(ag.Rand(rand.NewLockedRand(42)))
	proc := nn.Reify(nn.Context{Graph: g, Mode: nn.Inference}, m).(*Model)
	out := proc.Lookup(2, 0, 2)

	require.Len(t, out, 3)
	require.Equal(t, []mat.Float{20, 21, 22}, out[0].Value().Data())
	require.Equal(t, []mat.Float{0, 1, 2}, out[1].Value().Data())
	require.Equal(t, out[0].Value().Data(), out[2].Value().Data())
}

func TestModel_Init(t *testing.T) {
	m := New(50, 8)
	m.Init(rand.NewLockedRand(42))
	nonZero := 0
	for _, v := range m.W.Value().Data() {
		require.Less(t, v, mat.Float(10*InitStdDev))
		require.Greater(t, v, mat.Float(-10*InitStdDev))
		if v != 0 {
			nonZero++
		}
	}
	require.Greater(t, nonZero, 0)
}
