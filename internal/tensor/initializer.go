package tensor

import (
	"math"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/distuv"
)

// Initializer selects how a freshly allocated tensor is filled.
//
// Scaled initializers treat the tensor as a Height x Width weight matrix:
// fan-in is Height and fan-out is Width.
type Initializer int

// Supported initializers.
const (
	InitZeros Initializer = iota
	InitOnes
	InitLeCunNormal
	InitLeCunUniform
	InitXavierNormal
	InitXavierUniform
	InitHeNormal
	InitHeUniform
	InitNone // allocate without filling (buffer is still zeroed)
	InitUnknown
)

var initializerNames = map[Initializer]string{
	InitZeros:         "zeros",
	InitOnes:          "ones",
	InitLeCunNormal:   "lecun_normal",
	InitLeCunUniform:  "lecun_uniform",
	InitXavierNormal:  "xavier_normal",
	InitXavierUniform: "xavier_uniform",
	InitHeNormal:      "he_normal",
	InitHeUniform:     "he_uniform",
	InitNone:          "none",
}

// String returns the configuration name of the initializer.
func (i Initializer) String() string {
	if name, ok := initializerNames[i]; ok {
		return name
	}
	return "unknown"
}

// ParseInitializer parses a configuration name such as "xavier_uniform".
func ParseInitializer(s string) (Initializer, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for init, name := range initializerNames {
		if name == s {
			return init, nil
		}
	}
	return InitUnknown, errors.Errorf("unknown initializer %q", s)
}

// initialize fills an allocated tensor according to init.
func (t *Tensor) initialize(init Initializer) error {
	fanIn := float64(t.dim.Height)
	fanOut := float64(t.dim.Width)

	switch init {
	case InitZeros, InitNone:
		t.SetZero()
	case InitOnes:
		t.Fill(1)
	case InitLeCunNormal:
		t.fillNormal(math.Sqrt(1.0 / fanIn))
	case InitLeCunUniform:
		t.fillUniform(math.Sqrt(3.0 / fanIn))
	case InitXavierNormal:
		t.fillNormal(math.Sqrt(2.0 / (fanIn + fanOut)))
	case InitXavierUniform:
		t.fillUniform(math.Sqrt(6.0 / (fanIn + fanOut)))
	case InitHeNormal:
		t.fillNormal(math.Sqrt(2.0 / fanIn))
	case InitHeUniform:
		t.fillUniform(math.Sqrt(6.0 / fanIn))
	default:
		return errors.Errorf("cannot initialize tensor with initializer %s", init)
	}
	return nil
}

func (t *Tensor) fillNormal(stddev float64) {
	dist := distuv.Normal{Mu: 0, Sigma: stddev}
	for i := range t.data {
		t.data[i] = float32(dist.Rand())
	}
}

func (t *Tensor) fillUniform(bound float64) {
	dist := distuv.Uniform{Min: -bound, Max: bound}
	for i := range t.data {
		t.data[i] = float32(dist.Rand())
	}
}
