package indicators

import (
	"fmt"
	"math"

	"signal-trader/internal/errors"
)

// AR4 constants.
const (
	ar4Lags         = 4
	AR4MinObs       = 6
	pivotEpsilon    = 1e-8
	ar4Coefficients = ar4Lags + 1
)

// AR4Model is a fitted x(i) = b0 + b1*x(i-1) + b2*x(i-2) + b3*x(i-3) + b4*x(i-4).
type AR4Model struct {
	Coefficients [ar4Coefficients]float64
}

// Predict applies the model to the last four observations of values.
func (m AR4Model) Predict(values []float64) Value {
	n := len(values)
	if n < ar4Lags {
		return None
	}
	f := m.Coefficients[0]
	for lag := 1; lag <= ar4Lags; lag++ {
		f += m.Coefficients[lag] * values[n-lag]
	}
	return Some(f)
}

// FitAR4 fits the model by ordinary least squares over every target with four
// predecessors. It returns errors.ErrSingularMatrix when the normal equations
// cannot be solved.
func FitAR4(values []float64) (AR4Model, error) {
	if len(values) < AR4MinObs {
		return AR4Model{}, fmt.Errorf("AR4 needs %d observations, got %d", AR4MinObs, len(values))
	}

	// Normal equations: (X^T X) beta = X^T y with rows [1, x(i-1), ..., x(i-4)].
	xtx := make([][]float64, ar4Coefficients)
	for i := range xtx {
		xtx[i] = make([]float64, ar4Coefficients)
	}
	xty := make([]float64, ar4Coefficients)

	row := make([]float64, ar4Coefficients)
	for i := ar4Lags; i < len(values); i++ {
		row[0] = 1
		for lag := 1; lag <= ar4Lags; lag++ {
			row[lag] = values[i-lag]
		}
		for r := 0; r < ar4Coefficients; r++ {
			xty[r] += row[r] * values[i]
			for c := 0; c < ar4Coefficients; c++ {
				xtx[r][c] += row[r] * row[c]
			}
		}
	}

	beta, err := SolveLinear(xtx, xty)
	if err != nil {
		return AR4Model{}, err
	}

	var m AR4Model
	copy(m.Coefficients[:], beta)
	return m, nil
}

// AR4Forecast returns the one-step-ahead AR4 forecast of values. When the
// regression is singular it falls back to the last observed value. Fewer
// than AR4MinObs observations give an undefined result.
//
// Input spanned by the intercept and a linear trend is singular: the lag
// columns are collinear, so a straight line such as 1..6 forecasts 6, not
// the extrapolated 7. Constant input likewise returns its value.
func AR4Forecast(values []float64) Value {
	if len(values) < AR4MinObs {
		return None
	}
	model, err := FitAR4(values)
	if err != nil {
		return Some(values[len(values)-1])
	}
	f := model.Predict(values)
	if !f.Valid || math.IsNaN(f.Float) || math.IsInf(f.Float, 0) {
		return Some(values[len(values)-1])
	}
	return f
}

// SolveLinear solves a x = b by Gaussian elimination with partial pivoting.
// Inputs are not modified. A pivot below 1e-8 in magnitude yields
// errors.ErrSingularMatrix.
func SolveLinear(a [][]float64, b []float64) ([]float64, error) {
	n := len(b)
	if len(a) != n {
		return nil, fmt.Errorf("matrix has %d rows, vector has %d", len(a), n)
	}

	m := make([][]float64, n)
	for i := range a {
		if len(a[i]) != n {
			return nil, fmt.Errorf("row %d has %d columns, want %d", i, len(a[i]), n)
		}
		m[i] = make([]float64, n+1)
		copy(m[i], a[i])
		m[i][n] = b[i]
	}

	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(m[r][col]) > math.Abs(m[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(m[pivot][col]) < pivotEpsilon {
			return nil, fmt.Errorf("%w: pivot %g at column %d", errors.ErrSingularMatrix, m[pivot][col], col)
		}
		m[col], m[pivot] = m[pivot], m[col]

		for r := col + 1; r < n; r++ {
			factor := m[r][col] / m[col][col]
			for c := col; c <= n; c++ {
				m[r][c] -= factor * m[col][c]
			}
		}
	}

	x := make([]float64, n)
	for r := n - 1; r >= 0; r-- {
		acc := m[r][n]
		for c := r + 1; c < n; c++ {
			acc -= m[r][c] * x[c]
		}
		x[r] = acc / m[r][r]
	}

	return x, nil
}
