package service

import (
	"errors"
	"math/rand/v2"
)

// SpinTier es un premio de la ruleta con su probabilidad.
type SpinTier struct {
	Amount      int64   `json:"amount"`
	Probability float64 `json:"probability"`
}

// DefaultSpinTiers: 40% / 30% / 15% / 10% / 5%.
var DefaultSpinTiers = []SpinTier{
	{Amount: 5, Probability: 0.40},
	{Amount: 10, Probability: 0.30},
	{Amount: 20, Probability: 0.15},
	{Amount: 50, Probability: 0.10},
	{Amount: 100, Probability: 0.05},
}

// SpinWheel muestrea premios por CDF inversa sobre un uniforme en [0, 1).
type SpinWheel struct {
	tiers      []SpinTier
	cumulative []float64
	draw       func() float64
}

func NewSpinWheel(tiers []SpinTier, draw func() float64) (*SpinWheel, error) {
	if len(tiers) == 0 {
		return nil, errors.New("spin wheel needs at least one tier")
	}
	cumulative := make([]float64, len(tiers))
	total := 0.0
	for i, t := range tiers {
		if t.Probability <= 0 || t.Amount <= 0 {
			return nil, errors.New("spin tiers need positive amount and probability")
		}
		total += t.Probability
		cumulative[i] = total
	}
	if total < 0.999 || total > 1.001 {
		return nil, errors.New("spin tier probabilities must sum to 1")
	}
	if draw == nil {
		draw = rand.Float64
	}
	return &SpinWheel{
		tiers:      append([]SpinTier(nil), tiers...),
		cumulative: cumulative,
		draw:       draw,
	}, nil
}

// Spin devuelve uno de los montos configurados.
func (w *SpinWheel) Spin() int64 {
	return w.pick(w.draw())
}

func (w *SpinWheel) pick(u float64) int64 {
	for i, c := range w.cumulative {
		if u < c {
			return w.tiers[i].Amount
		}
	}
	// Redondeo flotante: la suma puede quedar apenas por debajo de 1.
	return w.tiers[len(w.tiers)-1].Amount
}

func (w *SpinWheel) Tiers() []SpinTier {
	return append([]SpinTier(nil), w.tiers...)
}
