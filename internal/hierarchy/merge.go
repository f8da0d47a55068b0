package hierarchy

import (
	"github.com/rk-analyzer/internal/normalize"
	"github.com/rk-analyzer/internal/store"
)

// Group is one collated value group with its normalized form
type Group struct {
	Raw        string
	Normalized string
	Count      int
	// text is false for non-string values, which never merge
	text bool
}

// Cluster is a group after merging with a similar partner
type Cluster struct {
	Raw   string
	Count int
}

// Normalize strips punctuation and stop-words from each group value
func Normalize(groups []store.ValueCount, stop *normalize.WordSet) []Group {
	out := make([]Group, len(groups))
	for i, g := range groups {
		s, ok := g.Value.(string)
		if !ok {
			out[i] = Group{Raw: valueString(g.Value), Count: g.Count}
			continue
		}
		out[i] = Group{Raw: s, Normalized: normalize.RemoveWords(s, stop), Count: g.Count, text: true}
	}
	return out
}

// Merge pairs groups whose normalized values are more than 80% similar.
// It is a single pass: every pair (i, j) above the threshold yields a
// cluster of i's value with both counts, and the row of the last merged
// partner is skipped when the outer loop reaches it. There is no transitive
// closure, so three mutually similar groups yield several clusters. When no
// pair merges, every group is its own cluster, so a field whose values all
// fall into one collated group counts as a single cluster.
func Merge(groups []Group) []Cluster {
	var clusters []Cluster
	k := -1
	for i := range groups {
		if i == k || !groups[i].text {
			continue
		}
		for j := range groups {
			if i == j || !groups[j].text {
				continue
			}
			if normalize.Similarity(groups[i].Normalized, groups[j].Normalized) > mergeSimilarity {
				k = j
				clusters = append(clusters, Cluster{Raw: groups[i].Raw, Count: groups[i].Count + groups[j].Count})
			}
		}
	}
	if len(clusters) > 0 {
		return clusters
	}

	clusters = make([]Cluster, len(groups))
	for i, g := range groups {
		clusters[i] = Cluster{Raw: g.Raw, Count: g.Count}
	}
	return clusters
}
