// Package lstm is the in-process model backend: a single LSTM layer followed
// by dropout and a dense readout.
//
// The recurrent layer's weights are drawn once from a seeded generator and
// kept fixed. Only the dense readout is fitted, in closed form, by ridge
// regression over the final hidden states. This keeps the backend free of any
// gradient machinery while honouring every hyperparameter the remote trainer
// accepts: units, activation, feature count, window width, L2 strength,
// dropout rate and epochs (one fresh dropout mask per epoch).
package lstm

import (
	"fmt"
	"math"

	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/mat"

	"pm10cast/internal/models"
)

const formatVersion = 1

// Network is a trained model. Gate blocks are ordered input, forget, cell,
// output, matching the usual Keras layout.
type Network struct {
	Version     int                `msgpack:"version"`
	Hyperparams models.Hyperparams `msgpack:"hyperparams"`
	// Kernel is 4U x F, Recurrent is 4U x U, both row-major.
	Kernel      []float64 `msgpack:"kernel"`
	Recurrent   []float64 `msgpack:"recurrent"`
	Bias        []float64 `msgpack:"bias"`
	Readout     []float64 `msgpack:"readout"`
	ReadoutBias float64   `msgpack:"readout_bias"`

	act activation
}

func (n *Network) units() int    { return n.Hyperparams.Units }
func (n *Network) features() int { return n.Hyperparams.FeatureCount }

// hidden runs the recurrent layer over seq (T*F values, step-major) and
// returns the final hidden state.
func (n *Network) hidden(seq []float64) ([]float64, error) {
	u, f := n.units(), n.features()
	if len(seq) == 0 || len(seq)%f != 0 {
		return nil, fmt.Errorf("input of length %d is not a whole number of %d-feature steps", len(seq), f)
	}

	kernel := mat.NewDense(4*u, f, n.Kernel)
	recurrent := mat.NewDense(4*u, u, n.Recurrent)

	h := mat.NewVecDense(u, nil)
	c := make([]float64, u)
	z := mat.NewVecDense(4*u, nil)
	zr := mat.NewVecDense(4*u, nil)

	for t := 0; t < len(seq)/f; t++ {
		x := mat.NewVecDense(f, seq[t*f:(t+1)*f])
		z.MulVec(kernel, x)
		zr.MulVec(recurrent, h)
		z.AddVec(z, zr)

		for j := 0; j < u; j++ {
			i := sigmoid(z.AtVec(j) + n.Bias[j])
			fg := sigmoid(z.AtVec(u+j) + n.Bias[u+j])
			g := n.act(z.AtVec(2*u+j) + n.Bias[2*u+j])
			o := sigmoid(z.AtVec(3*u+j) + n.Bias[3*u+j])

			c[j] = fg*c[j] + i*g
			h.SetVec(j, o*n.act(c[j]))
		}
	}

	return h.RawVector().Data, nil
}

// Predict maps each input sequence to one value
func (n *Network) Predict(inputs [][]float64) ([]float64, error) {
	out := make([]float64, len(inputs))
	readout := mat.NewVecDense(n.units(), n.Readout)
	for i, seq := range inputs {
		h, err := n.hidden(seq)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		out[i] = mat.Dot(readout, mat.NewVecDense(len(h), h)) + n.ReadoutBias
		if math.IsNaN(out[i]) || math.IsInf(out[i], 0) {
			return nil, fmt.Errorf("input %d: prediction is not finite", i)
		}
	}
	return out, nil
}

// Summary lists the layers with Keras-style parameter counts
func (n *Network) Summary() models.ModelSummary {
	u, f := n.units(), n.features()
	layers := []models.LayerSummary{
		{Name: "lstm (LSTM)", OutputShape: fmt.Sprintf("(None, %d)", u), Params: 4 * (u*(f+u) + u)},
		{Name: "dropout (Dropout)", OutputShape: fmt.Sprintf("(None, %d)", u), Params: 0},
		{Name: "dense (Dense)", OutputShape: "(None, 1)", Params: u + 1},
	}

	total := 0
	for _, l := range layers {
		total += l.Params
	}
	return models.ModelSummary{Layers: layers, TotalParams: total, Hyperparams: n.Hyperparams}
}

// wireNetwork has Network's fields but none of its methods, so msgpack
// encodes it field by field instead of calling MarshalBinary again.
type wireNetwork Network

// MarshalBinary encodes the network with msgpack
func (n *Network) MarshalBinary() ([]byte, error) {
	return msgpack.Marshal((*wireNetwork)(n))
}

// Decode restores a network written by MarshalBinary
func Decode(data []byte) (*Network, error) {
	var n Network
	if err := msgpack.Unmarshal(data, (*wireNetwork)(&n)); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}
	if n.Version != formatVersion {
		return nil, fmt.Errorf("unsupported model format version %d", n.Version)
	}

	act, err := lookupActivation(n.Hyperparams.Activation)
	if err != nil {
		return nil, err
	}
	n.act = act

	u, f := n.units(), n.features()
	if u < 1 || f < 1 ||
		len(n.Kernel) != 4*u*f ||
		len(n.Recurrent) != 4*u*u ||
		len(n.Bias) != 4*u ||
		len(n.Readout) != u {
		return nil, fmt.Errorf("model weights do not match %d units and %d features", u, f)
	}
	return &n, nil
}
