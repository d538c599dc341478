package solver

import (
	"context"
	"math"
)

// jacobian estimates dr/dx column by column with forward differences of relative size
// step. A column whose forward evaluation fails is retried once backwards.
func (a *Assembler) jacobian(ctx context.Context, x []float64, r Residuals, step float64) ([][]float64, error) {
	n := len(x)
	j := make([][]float64, len(r))
	for i := range j {
		j[i] = make([]float64, n)
	}
	xp := make([]float64, n)
	for col := 0; col < n; col++ {
		h := step * math.Abs(x[col])
		if h == 0 {
			h = step
		}
		copy(xp, x)
		xp[col] = x[col] + h
		rp, err := a.Residuals(ctx, xp)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			xp[col] = x[col] - h
			rm, errBack := a.Residuals(ctx, xp)
			if errBack != nil {
				return nil, err
			}
			for i := range r {
				j[i][col] = (r[i] - rm[i]) / h
			}
			continue
		}
		for i := range r {
			j[i][col] = (rp[i] - r[i]) / h
		}
	}
	return j, nil
}
