package nn

import (
	"math"

	"github.com/lulzzz/self-driving-pi-car/internal/config"
)

// Optimizer applies one update step to a parameter set. Implementations
// keep per-parameter slot state keyed by position, so the same Params
// slice ordering must be passed on every call.
type Optimizer interface {
	Apply(params []Param)
}

// NewOptimizer builds the update rule for the algorithm the run was
// configured with. The algorithm set is closed; config.ParseOptimizer
// already rejected unknown names at wiring time.
func NewOptimizer(algo config.Optimizer, lr float64) Optimizer {
	switch algo {
	case config.Adadelta:
		return &adadelta{lr: lr, rho: 0.95, eps: 1e-8}
	case config.Adagrad:
		return &adagrad{lr: lr, initAcc: 0.1, eps: 1e-7}
	case config.Adam:
		return &adam{lr: lr, beta1: 0.9, beta2: 0.999, eps: 1e-8}
	case config.Ftrl:
		return &ftrl{lr: lr, initAcc: 0.1, l1: 0, l2: 0}
	case config.ProximalGradientDescent:
		// Zero regularization reduces the proximal step to plain descent.
		return &gradientDescent{lr: lr}
	case config.ProximalAdagrad:
		return &adagrad{lr: lr, initAcc: 0.1, eps: 1e-7}
	case config.RMSProp:
		return &rmsprop{lr: lr, decay: 0.9, eps: 1e-10}
	default:
		return &gradientDescent{lr: lr}
	}
}

type gradientDescent struct {
	lr float64
}

func (o *gradientDescent) Apply(params []Param) {
	for _, p := range params {
		for i, g := range p.Grad {
			p.Value[i] -= o.lr * g
		}
	}
}

// slots lazily allocates one state vector per parameter tensor.
type slots struct {
	vecs [][]float64
}

func (s *slots) get(idx, size int, init float64) []float64 {
	for len(s.vecs) <= idx {
		s.vecs = append(s.vecs, nil)
	}
	if s.vecs[idx] == nil {
		v := make([]float64, size)
		if init != 0 {
			for i := range v {
				v[i] = init
			}
		}
		s.vecs[idx] = v
	}
	return s.vecs[idx]
}

type adagrad struct {
	lr      float64
	initAcc float64
	eps     float64
	acc     slots
}

func (o *adagrad) Apply(params []Param) {
	for idx, p := range params {
		acc := o.acc.get(idx, len(p.Value), o.initAcc)
		for i, g := range p.Grad {
			acc[i] += g * g
			p.Value[i] -= o.lr * g / (math.Sqrt(acc[i]) + o.eps)
		}
	}
}

type adadelta struct {
	lr      float64
	rho     float64
	eps     float64
	accGrad slots
	accUpd  slots
}

func (o *adadelta) Apply(params []Param) {
	for idx, p := range params {
		accGrad := o.accGrad.get(idx, len(p.Value), 0)
		accUpd := o.accUpd.get(idx, len(p.Value), 0)
		for i, g := range p.Grad {
			accGrad[i] = o.rho*accGrad[i] + (1-o.rho)*g*g
			upd := math.Sqrt(accUpd[i]+o.eps) / math.Sqrt(accGrad[i]+o.eps) * g
			accUpd[i] = o.rho*accUpd[i] + (1-o.rho)*upd*upd
			p.Value[i] -= o.lr * upd
		}
	}
}

type adam struct {
	lr    float64
	beta1 float64
	beta2 float64
	eps   float64
	step  int
	m     slots
	v     slots
}

func (o *adam) Apply(params []Param) {
	o.step++
	c1 := 1 - math.Pow(o.beta1, float64(o.step))
	c2 := 1 - math.Pow(o.beta2, float64(o.step))
	for idx, p := range params {
		m := o.m.get(idx, len(p.Value), 0)
		v := o.v.get(idx, len(p.Value), 0)
		for i, g := range p.Grad {
			m[i] = o.beta1*m[i] + (1-o.beta1)*g
			v[i] = o.beta2*v[i] + (1-o.beta2)*g*g
			p.Value[i] -= o.lr * (m[i] / c1) / (math.Sqrt(v[i]/c2) + o.eps)
		}
	}
}

type rmsprop struct {
	lr    float64
	decay float64
	eps   float64
	ms    slots
}

func (o *rmsprop) Apply(params []Param) {
	for idx, p := range params {
		ms := o.ms.get(idx, len(p.Value), 0)
		for i, g := range p.Grad {
			ms[i] = o.decay*ms[i] + (1-o.decay)*g*g
			p.Value[i] -= o.lr * g / math.Sqrt(ms[i]+o.eps)
		}
	}
}

// ftrl is the FTRL-proximal rule with learning-rate power -1/2.
type ftrl struct {
	lr      float64
	initAcc float64
	l1      float64
	l2      float64
	n       slots
	z       slots
}

func (o *ftrl) Apply(params []Param) {
	for idx, p := range params {
		n := o.n.get(idx, len(p.Value), o.initAcc)
		z := o.z.get(idx, len(p.Value), 0)
		for i, g := range p.Grad {
			nNew := n[i] + g*g
			sigma := (math.Sqrt(nNew) - math.Sqrt(n[i])) / o.lr
			z[i] += g - sigma*p.Value[i]
			n[i] = nNew
			if math.Abs(z[i]) <= o.l1 {
				p.Value[i] = 0
				continue
			}
			sign := 1.0
			if z[i] < 0 {
				sign = -1.0
			}
			p.Value[i] = -(z[i] - sign*o.l1) / (math.Sqrt(n[i])/o.lr + o.l2)
		}
	}
}
