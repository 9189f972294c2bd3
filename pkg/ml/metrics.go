package ml

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Scores are the regression metrics reported per model.
type Scores struct {
	RMSE float64 `json:"RMSE"`
	MAE  float64 `json:"MAE"`
	R2   float64 `json:"R2"`
}

// Evaluate compares predictions against the true targets.
func Evaluate(yTrue, yPred []float64) (Scores, error) {
	if len(yTrue) != len(yPred) {
		return Scores{}, fmt.Errorf("have %d targets and %d predictions", len(yTrue), len(yPred))
	}
	if len(yTrue) == 0 {
		return Scores{}, fmt.Errorf("no rows to evaluate")
	}
	var sq, abs float64
	for i := range yTrue {
		diff := yTrue[i] - yPred[i]
		sq += diff * diff
		abs += math.Abs(diff)
	}
	n := float64(len(yTrue))
	return Scores{
		RMSE: math.Sqrt(sq / n),
		MAE:  abs / n,
		R2:   R2(yTrue, yPred),
	}, nil
}

// R2 is the coefficient of determination. With a constant target it is 1 for a perfect
// fit and 0 otherwise, so the result is never NaN.
func R2(yTrue, yPred []float64) float64 {
	mean := stat.Mean(yTrue, nil)
	var res, tot float64
	for i := range yTrue {
		d := yTrue[i] - yPred[i]
		res += d * d
		m := yTrue[i] - mean
		tot += m * m
	}
	if tot == 0 {
		if res == 0 {
			return 1
		}
		return 0
	}
	return 1 - res/tot
}

// Better reports whether a beats b under metric: larger R2, smaller RMSE or MAE.
func Better(metric string, a, b Scores) bool {
	switch metric {
	case "R2":
		return a.R2 > b.R2
	case "MAE":
		return a.MAE < b.MAE
	default:
		return a.RMSE < b.RMSE
	}
}
