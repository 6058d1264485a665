package predictor

import (
	"fmt"
	"math"
	"math/rand/v2"

	"demand_forecast/internal/features"
	"demand_forecast/internal/model"
)

// Policy selects how rows are held out for evaluation.
type Policy string

const (
	// PolicyRandom holds out a seeded random sample of rows.
	PolicyRandom Policy = "random"
	// PolicyTemporal holds out the latest rows.
	PolicyTemporal Policy = "temporal"
)

// SplitConfig configures the held-out partition.
type SplitConfig struct {
	Policy       Policy  `yaml:"policy" json:"policy"`
	TestFraction float64 `yaml:"test_fraction" json:"test_fraction"`
	Seed         uint64  `yaml:"seed" json:"seed"`
}

// DefaultSplitConfig holds out a random 20% of rows with seed 42.
func DefaultSplitConfig() SplitConfig {
	return SplitConfig{Policy: PolicyRandom, TestFraction: 0.2, Seed: 42}
}

// HeldOutSize returns ceil(n*fraction) clamped to [1, n-1].
func HeldOutSize(n int, fraction float64) int {
	size := int(math.Ceil(float64(n) * fraction))
	return max(1, min(size, n-1))
}

// Split partitions ds into training and test datasets. The same rows, config
// and seed always give the same partition; both halves stay in date order.
func Split(ds *features.Dataset, cfg SplitConfig) (train, test *features.Dataset, err error) {
	if cfg.TestFraction <= 0 || cfg.TestFraction >= 1 {
		return nil, nil, fmt.Errorf("test fraction %v out of range (0, 1)", cfg.TestFraction)
	}
	n := len(ds.Rows)
	if n < 2 {
		return nil, nil, &model.EmptyTrainingSetError{Target: ds.Target}
	}
	nTest := HeldOutSize(n, cfg.TestFraction)

	held := make([]bool, n)
	switch cfg.Policy {
	case PolicyTemporal:
		for i := n - nTest; i < n; i++ {
			held[i] = true
		}
	case PolicyRandom, "":
		rng := rand.New(rand.NewPCG(cfg.Seed, 0))
		for _, i := range rng.Perm(n)[:nTest] {
			held[i] = true
		}
	default:
		return nil, nil, fmt.Errorf("unknown split policy %q", cfg.Policy)
	}

	train = &features.Dataset{Target: ds.Target, Features: ds.Features}
	test = &features.Dataset{Target: ds.Target, Features: ds.Features}
	for i, row := range ds.Rows {
		if held[i] {
			test.Rows = append(test.Rows, row)
		} else {
			train.Rows = append(train.Rows, row)
		}
	}
	return train, test, nil
}

// shuffleSplit returns a shuffled 90/10 partition of n row indices used to
// score candidates inside a training set.
func shuffleSplit(n int, rng *rand.Rand) (trainIdx, valIdx []int) {
	nVal := max(n/10, 1)
	indices := rng.Perm(n)
	return indices[nVal:], indices[:nVal]
}
