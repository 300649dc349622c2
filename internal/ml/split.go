package ml

import (
	"math"
	"math/rand"
	"sort"
)

// Split shuffles row indices with the given seed and holds out a test share.
// The test set always has at least one row and the training set keeps at least one.
func Split(n int, testSize float64, seed int64) (train, test []int) {
	if n < 2 {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx, nil
	}
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	nTest := int(math.Round(float64(n) * testSize))
	if nTest < 1 {
		nTest = 1
	}
	if nTest > n-1 {
		nTest = n - 1
	}
	test = append([]int(nil), perm[:nTest]...)
	train = append([]int(nil), perm[nTest:]...)
	sort.Ints(test)
	sort.Ints(train)
	return train, test
}
