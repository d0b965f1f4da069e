package aggregator

import "github.com/helixir/literature-aggregation-service/internal/domain"

// Deduplicate removes articles that share a dedup key with an earlier entry.
// The key is priority-ordered: DOI when present, otherwise the normalized
// (lowercased, whitespace-collapsed) title. First-seen wins; callers needing
// "most complete record wins" semantics must pre-sort the input accordingly.
//
// Returns the unique articles in input order and the number of duplicates
// removed. Articles with neither DOI nor title are dropped and counted as
// duplicates of nothing useful.
func Deduplicate(articles []*domain.Article) ([]*domain.Article, int) {
	seen := make(map[string]struct{}, len(articles))
	unique := make([]*domain.Article, 0, len(articles))
	duplicates := 0

	for _, article := range articles {
		key := article.DedupKey()
		if key == "title:" {
			// No DOI and no title: unidentifiable, drop.
			duplicates++
			continue
		}
		if _, ok := seen[key]; ok {
			duplicates++
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, article)
	}

	return unique, duplicates
}
