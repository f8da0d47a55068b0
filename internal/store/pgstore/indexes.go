package pgstore

import (
	"regexp"
	"strings"
)

var (
	// doc -> 'a' ->> 'b', possibly wrapped in parentheses between steps
	arrowChain   = regexp.MustCompile(`doc\s*((?:\)*\s*->>?\s*'[^']*'(?:::text)?)+)`)
	arrowSegment = regexp.MustCompile(`'([^']*)'`)
	// doc #> '{a,b}' and doc #>> '{a,b}'
	hashPath = regexp.MustCompile(`doc\s*#>>?\s*'\{([^}]*)\}'`)
)

// ParseIndexDef extracts the dotted document paths an index definition from
// pg_indexes covers. Paths inside to_tsvector are returned as text keys.
func ParseIndexDef(def string) (keys, textKeys []string) {
	paths := documentPaths(def)
	if strings.Contains(strings.ToLower(def), "to_tsvector") {
		return nil, paths
	}
	return paths, nil
}

func documentPaths(def string) []string {
	var paths []string
	seen := make(map[string]bool)
	add := func(p string) {
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		paths = append(paths, p)
	}

	for _, m := range arrowChain.FindAllStringSubmatch(def, -1) {
		var segments []string
		for _, seg := range arrowSegment.FindAllStringSubmatch(m[1], -1) {
			segments = append(segments, seg[1])
		}
		add(strings.Join(segments, "."))
	}
	for _, m := range hashPath.FindAllStringSubmatch(def, -1) {
		parts := strings.Split(m[1], ",")
		for i := range parts {
			parts[i] = strings.Trim(strings.TrimSpace(parts[i]), `"`)
		}
		add(strings.Join(parts, "."))
	}
	return paths
}
