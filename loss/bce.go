package loss

import "math"

const (
	posWeight    = 5
	logitClamp   = 4
	logFloor     = -100
	bceEpsilon   = 1e-12
	dtwBCEWeight = .1
)

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

// softplus is log(1+exp(x)).
func softplus(x float64) float64 {
	if x > 30 {
		return x
	}
	return math.Log1p(math.Exp(x))
}

// bceWithLogits is the mean positive-weighted binary cross entropy of the
// logits xs against ys, with its gradient. Logits are clamped to
// [-logitClamp, logitClamp] first when clamp is set.
func bceWithLogits(xs, ys []float64, clamp bool) (float64, []float64) {
	n := float64(len(xs))
	grad := make([]float64, len(xs))
	if n == 0 {
		return 0, grad
	}
	total := 0.0
	for i, x := range xs {
		y := ys[i]
		pass := 1.0
		if clamp && (x < -logitClamp || x > logitClamp) {
			x = math.Max(-logitClamp, math.Min(logitClamp, x))
			pass = 0
		}
		// -[pw*y*log(s) + (1-y)*log(1-s)]
		total += posWeight*y*softplus(-x) + (1-y)*softplus(x)
		grad[i] = pass * (sigmoid(x)*(posWeight*y+1-y) - posWeight*y) / n
	}
	return total / n, grad
}

// bce is the mean binary cross entropy of probabilities ps against ys.
// Logs are floored at logFloor.
func bce(ps, ys []float64) (float64, []float64) {
	n := float64(len(ps))
	grad := make([]float64, len(ps))
	if n == 0 {
		return 0, grad
	}
	total := 0.0
	for i, p := range ps {
		y := ys[i]
		total -= y*math.Max(math.Log(p), logFloor) + (1-y)*math.Max(math.Log(1-p), logFloor)
		grad[i] = (p - y) / math.Max(p*(1-p), bceEpsilon) / n
	}
	return total / n, grad
}
