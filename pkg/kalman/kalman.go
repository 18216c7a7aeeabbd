// Package kalman estimates the external load on an arm with a linear
// discrete Kalman filter over a value/rate state.
package kalman

import (
	"math"

	"github.com/gwillem/hapticteleop/pkg/fault"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/lapack"
	"gonum.org/v1/gonum/lapack/lapack64"
	"gonum.org/v1/gonum/mat"
)

// MaxCondition is the largest innovation covariance condition number Update accepts.
const MaxCondition = 1e12

// Params holds the filter tick interval and noise variances.
type Params struct {
	// DT is the tick interval in seconds
	DT float64 `yaml:"dt"`
	// PositionNoise is the process noise variance of the value block
	PositionNoise float64 `yaml:"position_noise"`
	// RateNoise is the process noise variance of the rate block
	RateNoise float64 `yaml:"rate_noise"`
	// ObservationNoise is the observation noise variance
	ObservationNoise float64 `yaml:"observation_noise"`
}

// DefaultParams returns the noise settings tuned for joint torque sensing at 1 kHz.
func DefaultParams() Params {
	return Params{
		DT:               0.001,
		PositionNoise:    1.0e-7,
		RateNoise:        0.0,
		ObservationNoise: 1.2e-3,
	}
}

// Validate returns a configuration error for non-positive dt or degenerate noise.
func (p Params) Validate() error {
	for name, v := range map[string]float64{
		"dt":                p.DT,
		"position noise":    p.PositionNoise,
		"rate noise":        p.RateNoise,
		"observation noise": p.ObservationNoise,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fault.Configf("%s is not finite", name)
		}
	}
	if p.DT <= 0 {
		return fault.Configf("dt must be positive, got %v", p.DT)
	}
	if p.PositionNoise <= 0 {
		return fault.Configf("position noise must be positive, got %v", p.PositionNoise)
	}
	if p.RateNoise < 0 {
		return fault.Configf("rate noise must not be negative, got %v", p.RateNoise)
	}
	if p.ObservationNoise <= 0 {
		return fault.Configf("observation noise must be positive, got %v", p.ObservationNoise)
	}
	return nil
}

// Filter is a Kalman filter whose 2N state stacks N observed values on top of
// their N rates. All buffers are allocated by New and reused by Update, so
// Update does not allocate.
type Filter struct {
	n int

	// x is the filter state [value; rate]
	x *mat.VecDense
	// f is the constant-rate propagation matrix
	f *mat.Dense
	// q is the process noise covariance
	q *mat.Dense
	// h selects the value block
	h *mat.Dense
	// r is the observation noise covariance
	r *mat.Dense
	// p is the error covariance
	p *mat.Dense

	// transposed views of f, h, ph, kt and k
	fT, hT, phT, ktT, kT mat.Matrix

	xPred *mat.VecDense
	pPred *mat.Dense
	fp    *mat.Dense
	ph    *mat.Dense
	hph   *mat.Dense
	s     *mat.SymDense
	// chol holds the Cholesky factor of s
	chol  blas64.Symmetric
	work  []float64
	iwork []int
	kt    *mat.Dense
	k     *mat.Dense
	ks    *mat.Dense
	kskt  *mat.Dense
	z     *mat.VecDense
	hx    *mat.VecDense
	inn   *mat.VecDense
	corr  *mat.VecDense
	out   []float64
}

// New creates a filter whose value block starts at x0 with zero rate.
// The error covariance starts at the process noise covariance.
func New(x0 []float64, p Params) (*Filter, error) {
	n := len(x0)
	if n == 0 {
		return nil, fault.Configf("initial observation is empty")
	}
	for i, v := range x0 {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fault.Configf("initial observation[%d] is not finite", i)
		}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	x := mat.NewVecDense(2*n, nil)
	for i, v := range x0 {
		x.SetVec(i, v)
	}

	f := mat.NewDense(2*n, 2*n, nil)
	q := mat.NewDense(2*n, 2*n, nil)
	h := mat.NewDense(n, 2*n, nil)
	r := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		f.Set(i, i, 1)
		f.Set(n+i, n+i, 1)
		f.Set(i, n+i, p.DT)
		q.Set(i, i, p.PositionNoise)
		q.Set(n+i, n+i, p.RateNoise)
		h.Set(i, i, 1)
		r.Set(i, i, p.ObservationNoise)
	}

	cov := mat.NewDense(2*n, 2*n, nil)
	cov.Copy(q)

	ph := mat.NewDense(2*n, n, nil)
	kt := mat.NewDense(n, 2*n, nil)
	k := mat.NewDense(2*n, n, nil)
	return &Filter{
		n:     n,
		x:     x,
		f:     f,
		q:     q,
		h:     h,
		r:     r,
		p:     cov,
		fT:    mat.Transpose{Matrix: f},
		hT:    mat.Transpose{Matrix: h},
		phT:   mat.Transpose{Matrix: ph},
		ktT:   mat.Transpose{Matrix: kt},
		kT:    mat.Transpose{Matrix: k},
		xPred: mat.NewVecDense(2*n, nil),
		pPred: mat.NewDense(2*n, 2*n, nil),
		fp:    mat.NewDense(2*n, 2*n, nil),
		ph:    ph,
		hph:   mat.NewDense(n, n, nil),
		s:     mat.NewSymDense(n, nil),
		chol: blas64.Symmetric{
			Uplo:   blas.Upper,
			N:      n,
			Stride: n,
			Data:   make([]float64, n*n),
		},
		work:  make([]float64, 3*n),
		iwork: make([]int, n),
		kt:    kt,
		k:     k,
		ks:    mat.NewDense(2*n, n, nil),
		kskt:  mat.NewDense(2*n, 2*n, nil),
		z:     mat.NewVecDense(n, nil),
		hx:    mat.NewVecDense(n, nil),
		inn:   mat.NewVecDense(n, nil),
		corr:  mat.NewVecDense(2*n, nil),
		out:   make([]float64, n),
	}, nil
}

// Dim returns the number of observed values N.
func (f *Filter) Dim() int {
	return f.n
}

// Update runs one predict/correct cycle with observation z and returns the
// value estimate. The returned slice is owned by the filter and overwritten
// by the next Update. On error the filter state is left unchanged.
func (f *Filter) Update(z []float64) ([]float64, error) {
	if len(z) != f.n {
		return nil, fault.Configf("observation has %d values, filter has %d", len(z), f.n)
	}
	for i, v := range z {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fault.Numericalf("observation[%d] is not finite", i)
		}
		f.z.SetVec(i, v)
	}

	// predict: X = F X, P = F P F' + Q
	f.xPred.MulVec(f.f, f.x)
	f.fp.Mul(f.f, f.p)
	f.pPred.Mul(f.fp, f.fT)
	f.pPred.Add(f.pPred, f.q)

	// innovation covariance: S = H P H' + R
	f.ph.Mul(f.pPred, f.hT)
	f.hph.Mul(f.h, f.ph)
	f.hph.Add(f.hph, f.r)
	for i := 0; i < f.n; i++ {
		for j := i; j < f.n; j++ {
			f.s.SetSym(i, j, (f.hph.At(i, j)+f.hph.At(j, i))/2)
		}
	}

	// gain: K = P H' S^-1, solved as S K' = H P'
	sym := f.s.RawSymmetric()
	anorm := lapack64.Lansy(lapack.MaxColumnSum, sym, f.work)
	copy(f.chol.Data, sym.Data)
	t, ok := lapack64.Potrf(f.chol)
	if !ok {
		return nil, fault.Numericalf("innovation covariance is not positive definite")
	}
	rcond := lapack64.Pocon(f.chol, anorm, f.work, f.iwork)
	if c := 1 / rcond; c > MaxCondition || math.IsNaN(c) {
		return nil, fault.Numericalf("innovation covariance is ill-conditioned (cond %g)", c)
	}
	f.kt.Copy(f.phT)
	lapack64.Potrs(t, f.kt.RawMatrix())
	f.k.Copy(f.ktT)

	// correct: X = X + K (z - H X), P = P - K S K'
	f.hx.MulVec(f.h, f.xPred)
	f.inn.SubVec(f.z, f.hx)
	f.corr.MulVec(f.k, f.inn)
	f.x.AddVec(f.xPred, f.corr)

	f.ks.Mul(f.k, f.s)
	f.kskt.Mul(f.ks, f.kT)
	f.p.Sub(f.pPred, f.kskt)
	symmetrize(f.p)

	for i := range f.out {
		f.out[i] = f.x.AtVec(i)
	}
	return f.out, nil
}

// State returns a copy of the full [value; rate] state.
func (f *Filter) State() []float64 {
	out := make([]float64, 2*f.n)
	for i := range out {
		out[i] = f.x.AtVec(i)
	}
	return out
}

// Cov returns a copy of the error covariance.
func (f *Filter) Cov() *mat.SymDense {
	cov := mat.NewSymDense(2*f.n, nil)
	for i := 0; i < 2*f.n; i++ {
		for j := i; j < 2*f.n; j++ {
			cov.SetSym(i, j, f.p.At(i, j))
		}
	}
	return cov
}

// Trace returns the trace of the error covariance.
func (f *Filter) Trace() float64 {
	return mat.Trace(f.p)
}

// Gain returns a copy of the last Kalman gain.
func (f *Filter) Gain() *mat.Dense {
	gain := &mat.Dense{}
	gain.CloneFrom(f.k)
	return gain
}

// symmetrize replaces m with (m + m')/2 in place.
func symmetrize(m *mat.Dense) {
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		for j := i + 1; j < r; j++ {
			v := (m.At(i, j) + m.At(j, i)) / 2
			m.Set(i, j, v)
			m.Set(j, i, v)
		}
	}
}
