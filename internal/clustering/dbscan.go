package clustering

// dbscan groups the vectors density-wise: an unvisited point whose
// neighborhood (cosine distance <= eps) holds at least minPts members seeds
// a cluster that expands breadth-first through dense neighbors. Points that
// never reach a dense neighborhood keep assignment -1 (orphan). Returns the
// cluster index per vector and the number of clusters formed.
func dbscan(vectors [][]float64, eps float64, minPts int) ([]int, int) {
	n := len(vectors)
	assignments := make([]int, n)
	for i := range assignments {
		assignments[i] = -1
	}
	visited := make([]bool, n)

	clusters := 0
	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		visited[i] = true

		neighbors := regionQuery(vectors, i, eps)
		if len(neighbors) < minPts {
			continue
		}

		cluster := clusters
		clusters++
		assignments[i] = cluster

		// Breadth-first expansion; the queue may grow as dense neighbors
		// contribute their own neighborhoods.
		queue := neighbors
		for qi := 0; qi < len(queue); qi++ {
			j := queue[qi]
			if !visited[j] {
				visited[j] = true
				if next := regionQuery(vectors, j, eps); len(next) >= minPts {
					queue = append(queue, next...)
				}
			}
			if assignments[j] == -1 {
				assignments[j] = cluster
			}
		}
	}

	return assignments, clusters
}

// regionQuery returns the indexes of all vectors within cosine distance eps
// of vectors[i], excluding i itself.
func regionQuery(vectors [][]float64, i int, eps float64) []int {
	var neighbors []int
	for j, v := range vectors {
		if j == i {
			continue
		}
		if 1-cosineSimilarity(vectors[i], v) <= eps {
			neighbors = append(neighbors, j)
		}
	}
	return neighbors
}
