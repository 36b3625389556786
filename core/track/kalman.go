// Package track filters noisy unit telemetry into smoothed position and
// velocity estimates using a constant-velocity Kalman filter.
package track

import (
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/kestrel-ops/kestrel/core/model"
)

// Config defines filter noise parameters and staleness thresholds.
type Config struct {
	// ProcessNoise is the white-noise acceleration density (m/s^2)^2 driving
	// covariance inflation during prediction.
	ProcessNoise float64 `json:"process_noise"`
	// MeasurementNoiseM is the position measurement standard deviation in meters.
	MeasurementNoiseM float64 `json:"measurement_noise_m"`
	// StaleAfter marks the track stale once no measurement arrived for this long.
	// A stale track is reinitialized on the next measurement.
	StaleAfter time.Duration `json:"stale_after"`
	// HardLimit is the gap after which the track can no longer back mission
	// decisions and a forced return is escalated.
	HardLimit time.Duration `json:"hard_limit"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.ProcessNoise <= 0 {
		c.ProcessNoise = 0.5
	}
	if c.MeasurementNoiseM <= 0 {
		c.MeasurementNoiseM = 5
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = 10 * time.Second
	}
	if c.HardLimit <= 0 {
		c.HardLimit = time.Minute
	}
}

// Estimate is the filtered state of one unit.
type Estimate struct {
	UnitID     string
	Position   model.Position
	VelEastMS  float64
	VelNorthMS float64
	Covariance *mat.SymDense // 4x4, row order [x y vx vy]
	LastUpdate time.Time
	Stale      bool
	Gap        time.Duration
}

// SpeedMS returns the magnitude of the estimated velocity.
func (e Estimate) SpeedMS() float64 {
	return mat.Norm(mat.NewVecDense(2, []float64{e.VelEastMS, e.VelNorthMS}), 2)
}

const initPosVar = 100.0 // m^2, loose prior on a fresh track

// Filter is a four-state [x y vx vy] recursive estimator for a single unit.
// It is not safe for concurrent use; the fleet registry serializes access
// under the per-unit lock.
type Filter struct {
	cfg   Config
	frame model.LocalFrame

	x *mat.VecDense // state
	p *mat.Dense    // covariance

	initialized bool
	lastMeas    time.Time
	lastStep    time.Time
}

// NewFilter creates a filter with the given configuration.
func NewFilter(cfg Config) *Filter {
	cfg.SetDefaults()
	return &Filter{cfg: cfg}
}

func (f *Filter) reset(pos model.Position, at time.Time) {
	f.frame = model.NewLocalFrame(pos)
	f.x = mat.NewVecDense(4, nil)
	f.p = mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		f.p.Set(i, i, initPosVar)
	}
	f.initialized = true
	f.lastMeas = at
	f.lastStep = at
}

// predict advances the state by dt seconds under the constant-velocity model
// and inflates the covariance by process noise.
func (f *Filter) predict(dt float64) {
	if dt <= 0 {
		return
	}
	fm := mat.NewDense(4, 4, []float64{
		1, 0, dt, 0,
		0, 1, 0, dt,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
	var x mat.VecDense
	x.MulVec(fm, f.x)
	f.x.CopyVec(&x)

	var fp, fpf mat.Dense
	fp.Mul(fm, f.p)
	fpf.Mul(&fp, fm.T())

	// Discrete white-noise acceleration model, per axis.
	q := f.cfg.ProcessNoise
	q11 := q * dt * dt * dt * dt / 4
	q12 := q * dt * dt * dt / 2
	q22 := q * dt * dt
	qm := mat.NewDense(4, 4, []float64{
		q11, 0, q12, 0,
		0, q11, 0, q12,
		q12, 0, q22, 0,
		0, q12, 0, q22,
	})
	fpf.Add(&fpf, qm)
	f.p.Copy(&fpf)
}

// update corrects the state with a position measurement in frame meters.
func (f *Filter) update(zx, zy float64) {
	h := mat.NewDense(2, 4, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
	})
	r := f.cfg.MeasurementNoiseM * f.cfg.MeasurementNoiseM

	// S = H P H' + R
	var hp, s mat.Dense
	hp.Mul(h, f.p)
	s.Mul(&hp, h.T())
	s.Set(0, 0, s.At(0, 0)+r)
	s.Set(1, 1, s.At(1, 1)+r)

	// 2x2 inverse by determinant; S is positive definite by construction.
	det := s.At(0, 0)*s.At(1, 1) - s.At(0, 1)*s.At(1, 0)
	sInv := mat.NewDense(2, 2, []float64{
		s.At(1, 1) / det, -s.At(0, 1) / det,
		-s.At(1, 0) / det, s.At(0, 0) / det,
	})

	// K = P H' S^-1
	var ph, k mat.Dense
	ph.Mul(f.p, h.T())
	k.Mul(&ph, sInv)

	// x = x + K (z - H x)
	innov := mat.NewVecDense(2, []float64{
		zx - f.x.AtVec(0),
		zy - f.x.AtVec(1),
	})
	var corr mat.VecDense
	corr.MulVec(&k, innov)
	f.x.AddVec(f.x, &corr)

	// P = (I - K H) P
	var kh mat.Dense
	kh.Mul(&k, h)
	ikh := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		ikh.Set(i, i, 1)
	}
	ikh.Sub(ikh, &kh)
	var p mat.Dense
	p.Mul(ikh, f.p)
	f.p.Copy(&p)
}

// Observe ingests a measurement. Tracks whose measurement gap exceeded the
// stale threshold are reinitialized at the measurement instead of corrected.
func (f *Filter) Observe(pos model.Position, at time.Time) {
	if !f.initialized || at.Sub(f.lastMeas) > f.cfg.StaleAfter {
		f.reset(pos, at)
		return
	}
	if dt := at.Sub(f.lastStep).Seconds(); dt > 0 {
		f.predict(dt)
		f.lastStep = at
	}
	zx, zy := f.frame.ToXY(pos)
	f.update(zx, zy)
	f.lastMeas = at
}

// Advance extrapolates the state to the given time without a measurement.
func (f *Filter) Advance(now time.Time) {
	if !f.initialized {
		return
	}
	if dt := now.Sub(f.lastStep).Seconds(); dt > 0 {
		f.predict(dt)
		f.lastStep = now
	}
}

// Estimate returns the current filtered state. Stale is set when the gap
// since the last measurement exceeds the configured threshold.
func (f *Filter) Estimate(unitID string, now time.Time) (Estimate, bool) {
	if !f.initialized {
		return Estimate{}, false
	}
	gap := now.Sub(f.lastMeas)
	cov := mat.NewSymDense(4, nil)
	for i := 0; i < 4; i++ {
		for j := i; j < 4; j++ {
			cov.SetSym(i, j, (f.p.At(i, j)+f.p.At(j, i))/2)
		}
	}
	return Estimate{
		UnitID:     unitID,
		Position:   f.frame.FromXY(f.x.AtVec(0), f.x.AtVec(1)),
		VelEastMS:  f.x.AtVec(2),
		VelNorthMS: f.x.AtVec(3),
		Covariance: cov,
		LastUpdate: f.lastMeas,
		Stale:      gap > f.cfg.StaleAfter,
		Gap:        gap,
	}, true
}

// Degraded reports whether the gap exceeds the hard limit, meaning the track
// can no longer back mission decisions.
func (f *Filter) Degraded(now time.Time) bool {
	if !f.initialized {
		return false
	}
	return now.Sub(f.lastMeas) > f.cfg.HardLimit
}
