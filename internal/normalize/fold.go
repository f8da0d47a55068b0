package normalize

import (
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Folder compares strings at primary strength: case, diacritics and width
// are ignored under the locale's collation rules. A Folder is not safe for
// concurrent use.
type Folder struct {
	col *collate.Collator
	buf collate.Buffer
}

// NewFolder creates a primary-strength folder for the locale
func NewFolder(tag language.Tag) *Folder {
	return &Folder{
		col: collate.New(tag, collate.IgnoreCase, collate.IgnoreDiacritics, collate.IgnoreWidth),
	}
}

// NewFolderForLocale parses a BCP 47 locale, falling back to Russian
func NewFolderForLocale(locale string) *Folder {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.Russian
	}
	return NewFolder(tag)
}

// Key returns the collation key of s; equal keys mean primary-equal strings
func (f *Folder) Key(s string) string {
	key := string(f.col.KeyFromString(&f.buf, s))
	f.buf.Reset()
	return key
}

// WordSet is a set of words compared at primary strength
type WordSet struct {
	folder *Folder
	keys   map[string]struct{}
}

// NewWordSet builds a word set using the folder's collation
func (f *Folder) NewWordSet(words []string) *WordSet {
	set := &WordSet{folder: f, keys: make(map[string]struct{}, len(words))}
	for _, w := range words {
		set.keys[f.Key(w)] = struct{}{}
	}
	return set
}

// Contains reports whether w is primary-equal to a word of the set
func (s *WordSet) Contains(w string) bool {
	_, ok := s.keys[s.folder.Key(w)]
	return ok
}

// Len returns the number of distinct words
func (s *WordSet) Len() int {
	return len(s.keys)
}

// IntersectionSize counts distinct tokens that belong to the set
func (s *WordSet) IntersectionSize(tokens []string) int {
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		key := s.folder.Key(t)
		if _, ok := s.keys[key]; !ok {
			continue
		}
		seen[key] = struct{}{}
	}
	return len(seen)
}
