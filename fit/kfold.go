package fit

import (
	"math/rand/v2"

	"github.com/YuminosukeSato/tce/pkg/errors"
)

// Fold holds the row indices of one cross-validation split.
type Fold struct {
	Train []int
	Test  []int
}

// KFold implements k-fold cross-validation splitting
type KFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed int
}

// NewKFold creates a new k-fold splitter
func NewKFold(nSplits int, shuffle bool, randomSeed int) *KFold {
	return &KFold{
		NSplits:    nSplits,
		Shuffle:    shuffle,
		RandomSeed: randomSeed,
	}
}

// Split partitions n rows into NSplits contiguous test blocks. The first
// n % NSplits folds get one extra row. Train indices are ascending.
func (kf *KFold) Split(n int) ([]Fold, error) {
	const op = "KFold.Split"
	if kf.NSplits < 2 {
		return nil, errors.NewFitErrorf(op, "need at least 2 folds, got %d", kf.NSplits)
	}
	if kf.NSplits > n {
		return nil, errors.NewFitErrorf(op, "%d folds requested for %d rows", kf.NSplits, n)
	}

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		r := rand.New(rand.NewPCG(uint64(kf.RandomSeed), uint64(kf.RandomSeed)))
		r.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	folds := make([]Fold, kf.NSplits)
	foldSize := n / kf.NSplits
	remainder := n % kf.NSplits

	current := 0
	for i := range folds {
		testSize := foldSize
		if i < remainder {
			testSize++
		}
		test := append([]int(nil), indices[current:current+testSize]...)

		inTest := make(map[int]bool, testSize)
		for _, t := range test {
			inTest[t] = true
		}
		train := make([]int, 0, n-testSize)
		for j := 0; j < n; j++ {
			if !inTest[j] {
				train = append(train, j)
			}
		}

		folds[i] = Fold{Train: train, Test: test}
		current += testSize
	}
	return folds, nil
}
