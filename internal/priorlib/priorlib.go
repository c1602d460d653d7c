// Package priorlib implements the filesystem-backed thesis/pattern prior
// belief library the router consults. It is a formerly out-of-scope
// collaborator (spec §1) given a concrete implementation here: documents are
// YAML-frontmatter markdown files, loaded once and matched either by plain
// keyword scoring or, when an embedder is configured, semantic similarity
// over github.com/philippgille/chromem-go.
package priorlib

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/philippgille/chromem-go"
)

// Thesis is a previously-established position the router can match FIT
// queries against.
type Thesis struct {
	ID        string
	Title     string
	Domain    string
	Tags      []string
	Body      string
	UpdatedAt time.Time
}

// Pattern is a reusable analytical framework the router can match ADJACENT
// queries against.
type Pattern struct {
	ID        string
	Title     string
	Tags      []string
	Body      string
	UpdatedAt time.Time
}

// Library answers SearchTheses/SearchPatterns for the router. The router's
// contract (spec §4.4) requires that an empty library be tolerated and
// trivially route everything NET_NEW; the zero-value Library (no documents
// loaded, no embedder configured) satisfies this by returning empty slices.
type Library struct {
	theses   []Thesis
	patterns []Pattern

	collection *chromem.Collection
}

// NewEmpty returns a library with no documents — the trivial NET_NEW
// default the router contract requires to always be supported.
func NewEmpty() *Library {
	return &Library{}
}

// LoadDir loads theses from <dir>/theses/*.md and patterns from
// <dir>/patterns/*.md, each a YAML-frontmatter markdown file in the shape
// the original filesystem-backed memory manager used. Missing directories
// are treated as zero documents of that kind, not errors.
func LoadDir(dir string) (*Library, error) {
	lib := &Library{}

	theses, err := loadFrontmatterDocs(filepath.Join(dir, "theses"))
	if err != nil {
		return nil, err
	}
	for _, d := range theses {
		lib.theses = append(lib.theses, Thesis{
			ID:        d.id,
			Title:     d.fields["title"],
			Domain:    d.fields["domain"],
			Tags:      splitTags(d.fields["tags"]),
			Body:      d.body,
			UpdatedAt: time.Now(),
		})
	}

	patterns, err := loadFrontmatterDocs(filepath.Join(dir, "patterns"))
	if err != nil {
		return nil, err
	}
	for _, d := range patterns {
		lib.patterns = append(lib.patterns, Pattern{
			ID:        d.id,
			Title:     d.fields["title"],
			Tags:      splitTags(d.fields["tags"]),
			Body:      d.body,
			UpdatedAt: time.Now(),
		})
	}

	return lib, nil
}

// WithEmbeddings attaches an in-memory chromem-go collection for semantic
// matching, upserting every loaded thesis and pattern as a document keyed by
// its ID. When embedFunc is nil chromem-go's default embedding function is
// used. Callers that only need keyword matching can skip this entirely.
func (l *Library) WithEmbeddings(embedFunc chromem.EmbeddingFunc) error {
	db := chromem.NewDB()
	coll, err := db.CreateCollection("priors", nil, embedFunc)
	if err != nil {
		return err
	}

	for _, t := range l.theses {
		if err := coll.AddDocument(context.Background(), chromem.Document{
			ID:      "thesis:" + t.ID,
			Content: t.Title + "\n" + t.Body,
			Metadata: map[string]string{
				"kind":   "thesis",
				"domain": t.Domain,
			},
		}); err != nil {
			return err
		}
	}
	for _, p := range l.patterns {
		if err := coll.AddDocument(context.Background(), chromem.Document{
			ID:       "pattern:" + p.ID,
			Content:  p.Title + "\n" + p.Body,
			Metadata: map[string]string{"kind": "pattern"},
		}); err != nil {
			return err
		}
	}

	l.collection = coll
	return nil
}

// SearchTheses returns up to limit theses matching text, keyword-scored by
// title/tag overlap (the router's own classifier additionally checks
// keyword overlap itself; this is the library's independent recall step).
func (l *Library) SearchTheses(text string, limit int) []Thesis {
	if len(l.theses) == 0 {
		return nil
	}
	terms := tokenize(text)

	type scored struct {
		t     Thesis
		score int
	}
	var results []scored
	for _, t := range l.theses {
		score := overlapScore(terms, tokenize(t.Title))
		for _, tag := range t.Tags {
			if terms[strings.ToLower(tag)] {
				score += 2
			}
		}
		if score > 0 {
			results = append(results, scored{t, score})
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].score > results[j].score })

	out := make([]Thesis, 0, limit)
	for i := 0; i < len(results) && i < limit; i++ {
		out = append(out, results[i].t)
	}
	return out
}

// SearchPatterns returns up to limit patterns matching text, same scoring
// approach as SearchTheses.
func (l *Library) SearchPatterns(text string, limit int) []Pattern {
	if len(l.patterns) == 0 {
		return nil
	}
	terms := tokenize(text)

	type scored struct {
		p     Pattern
		score int
	}
	var results []scored
	for _, p := range l.patterns {
		score := overlapScore(terms, tokenize(p.Title))
		for _, tag := range p.Tags {
			if terms[strings.ToLower(tag)] {
				score += 2
			}
		}
		if score > 0 {
			results = append(results, scored{p, score})
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].score > results[j].score })

	out := make([]Pattern, 0, limit)
	for i := 0; i < len(results) && i < limit; i++ {
		out = append(out, results[i].p)
	}
	return out
}

func overlapScore(a, b map[string]bool) int {
	score := 0
	for term := range a {
		if b[term] {
			score++
		}
	}
	return score
}

func tokenize(s string) map[string]bool {
	words := strings.Fields(strings.ToLower(s))
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[strings.Trim(w, ".,;:!?()\"'")] = true
	}
	return set
}

func splitTags(raw string) []string {
	raw = strings.Trim(raw, "[] ")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		tags = append(tags, strings.Trim(strings.TrimSpace(p), "\"'"))
	}
	return tags
}

type frontmatterDoc struct {
	id     string
	fields map[string]string
	body   string
}

// loadFrontmatterDocs reads every *.md file in dir as
// "---\nkey: value\n---\nbody". A missing directory yields zero documents.
func loadFrontmatterDocs(dir string) ([]frontmatterDoc, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var docs []frontmatterDoc
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		f, err := os.Open(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		doc, err := parseFrontmatter(f, strings.TrimSuffix(e.Name(), ".md"))
		f.Close()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func parseFrontmatter(f *os.File, id string) (frontmatterDoc, error) {
	scanner := bufio.NewScanner(f)
	doc := frontmatterDoc{id: id, fields: make(map[string]string)}

	if !scanner.Scan() || strings.TrimSpace(scanner.Text()) != "---" {
		// No frontmatter block: whole file is body.
		var body strings.Builder
		if scanner.Text() != "" {
			body.WriteString(scanner.Text())
			body.WriteString("\n")
		}
		for scanner.Scan() {
			body.WriteString(scanner.Text())
			body.WriteString("\n")
		}
		doc.body = body.String()
		return doc, scanner.Err()
	}

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "---" {
			break
		}
		if k, v, ok := strings.Cut(line, ":"); ok {
			doc.fields[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}

	var body strings.Builder
	for scanner.Scan() {
		body.WriteString(scanner.Text())
		body.WriteString("\n")
	}
	doc.body = body.String()
	return doc, scanner.Err()
}
