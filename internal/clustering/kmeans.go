package clustering

import (
	"math"
	"math/rand"
)

const (
	maxIterations        = 100
	convergenceThreshold = 1 - 1e-4
)

// kmeans partitions the vectors into k clusters by cosine similarity.
// Centroids are seeded from k distinct random vectors; iteration stops when
// every centroid's similarity to its previous value exceeds the convergence
// threshold, or after the iteration cap. Returns the assignment index per
// vector and the final unit-length centroids.
func kmeans(vectors [][]float64, k int, rng *rand.Rand) ([]int, [][]float64) {
	n := len(vectors)
	if k > n {
		k = n
	}
	if k < 1 {
		return nil, nil
	}

	centroids := make([][]float64, k)
	for i, idx := range rng.Perm(n)[:k] {
		centroids[i] = append([]float64(nil), vectors[idx]...)
		normalize(centroids[i])
	}

	assignments := make([]int, n)
	for iter := 0; iter < maxIterations; iter++ {
		for i, v := range vectors {
			assignments[i] = nearestCentroid(v, centroids)
		}

		converged := true
		for c := range centroids {
			var members [][]float64
			for i, a := range assignments {
				if a == c {
					members = append(members, vectors[i])
				}
			}
			if len(members) == 0 {
				// Empty cluster: reseed from a random vector so k is
				// preserved.
				reseed := append([]float64(nil), vectors[rng.Intn(n)]...)
				normalize(reseed)
				centroids[c] = reseed
				converged = false
				continue
			}

			next := meanVector(members)
			normalize(next)
			if cosineSimilarity(next, centroids[c]) <= convergenceThreshold {
				converged = false
			}
			centroids[c] = next
		}

		if converged {
			break
		}
	}

	return assignments, centroids
}

// defaultK computes the default cluster count for n articles:
// min(maxClusters, max(2, floor(sqrt(n/2)))).
func defaultK(n, maxClusters int) int {
	k := int(math.Floor(math.Sqrt(float64(n) / 2)))
	if k < 2 {
		k = 2
	}
	if maxClusters > 0 && k > maxClusters {
		k = maxClusters
	}
	return k
}

func nearestCentroid(v []float64, centroids [][]float64) int {
	best := 0
	bestSim := math.Inf(-1)
	for i, c := range centroids {
		if sim := cosineSimilarity(v, c); sim > bestSim {
			bestSim = sim
			best = i
		}
	}
	return best
}
