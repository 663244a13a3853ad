// Package search ranks listings against free-text queries. Every query builds
// a throwaway in-memory bleve index from a fresh scan of the store, so results
// always reflect committed data and there is no index to keep in sync.
package search

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/edgengram"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"conduit-registry/internal/registry"
)

const (
	plainAnalyzerName  = "registryPlain"
	prefixAnalyzerName = "registryPrefix"
	prefixFilterName   = "registryEdgeNgram"

	// maxPrefixLen bounds the edge n-grams. Longer query tokens still match
	// whole words through the *_exact fields.
	maxPrefixLen = 32
)

// Indexed fields. Each text field is indexed twice: whole words for exact
// matches and edge n-grams for prefix matches.
const (
	fieldTitleExact        = "title_exact"
	fieldTitle             = "title"
	fieldDescriptionExact  = "description_exact"
	fieldDescription       = "description"
	fieldFileNameExact     = "file_name_exact"
	fieldFileName          = "file_name"
	fieldCreatorAliasExact = "creator_alias_exact"
	fieldCreatorAlias      = "creator_alias"
)

var queryFields = []string{
	fieldTitleExact, fieldTitle,
	fieldDescriptionExact, fieldDescription,
	fieldFileNameExact, fieldFileName,
	fieldCreatorAliasExact, fieldCreatorAlias,
}

// Per-token title weights.
const (
	scoreTitlePrefix = 1
	scoreTitleExact  = 2
)

// ListingSource supplies the listings a query runs over.
type ListingSource interface {
	ListListings(ctx context.Context) ([]registry.Listing, error)
}

// Engine implements registry.Searcher.
type Engine struct {
	source ListingSource
	logger registry.Logger
}

func NewEngine(source ListingSource, logger registry.Logger) *Engine {
	return &Engine{source: source, logger: logger}
}

var _ registry.Searcher = (*Engine)(nil)

func buildIndexMapping() (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()

	if err := im.AddCustomTokenFilter(prefixFilterName, map[string]any{
		"type": edgengram.Name,
		"min":  1.0,
		"max":  float64(maxPrefixLen),
	}); err != nil {
		return nil, fmt.Errorf("add token filter: %w", err)
	}
	if err := im.AddCustomAnalyzer(plainAnalyzerName, map[string]any{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	}); err != nil {
		return nil, fmt.Errorf("add plain analyzer: %w", err)
	}
	if err := im.AddCustomAnalyzer(prefixAnalyzerName, map[string]any{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name, prefixFilterName},
	}); err != nil {
		return nil, fmt.Errorf("add prefix analyzer: %w", err)
	}

	textField := func(analyzer string) *mapping.FieldMapping {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = analyzer
		f.Store = false
		f.IncludeInAll = false
		f.IncludeTermVectors = false
		return f
	}

	doc := bleve.NewDocumentMapping()
	doc.Dynamic = false
	doc.AddFieldMappingsAt(fieldTitleExact, textField(plainAnalyzerName))
	doc.AddFieldMappingsAt(fieldTitle, textField(prefixAnalyzerName))
	doc.AddFieldMappingsAt(fieldDescriptionExact, textField(plainAnalyzerName))
	doc.AddFieldMappingsAt(fieldDescription, textField(prefixAnalyzerName))
	doc.AddFieldMappingsAt(fieldFileNameExact, textField(plainAnalyzerName))
	doc.AddFieldMappingsAt(fieldFileName, textField(prefixAnalyzerName))
	doc.AddFieldMappingsAt(fieldCreatorAliasExact, textField(plainAnalyzerName))
	doc.AddFieldMappingsAt(fieldCreatorAlias, textField(prefixAnalyzerName))

	im.DefaultMapping = doc
	im.DefaultAnalyzer = plainAnalyzerName
	return im, nil
}

// Search returns listings matching every token of q, ordered by title score
// (see titleScore), then newest first, then by content hash.
//
// Tokens match whole words in any field, or word prefixes of up to
// maxPrefixLen runes. A token longer than that matches only whole words.
func (e *Engine) Search(ctx context.Context, q string, opts registry.SearchOptions) ([]registry.Listing, error) {
	im, err := buildIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("building index mapping: %w", err)
	}

	plain := im.AnalyzerNamed(plainAnalyzerName)
	if plain == nil {
		return nil, fmt.Errorf("analyzer %s not registered", plainAnalyzerName)
	}
	tokens := analyze(plain, q)
	if len(tokens) == 0 {
		return []registry.Listing{}, nil
	}

	listings, err := e.source.ListListings(ctx)
	if err != nil {
		return nil, fmt.Errorf("scanning listings: %w", err)
	}

	byHash := make(map[string]registry.Listing, len(listings))
	for _, l := range listings {
		if matchesFilters(l, opts) {
			byHash[l.ContentHash] = l
		}
	}
	if len(byHash) == 0 {
		return []registry.Listing{}, nil
	}

	idx, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("creating index: %w", err)
	}
	defer idx.Close()

	batch := idx.NewBatch()
	for h, l := range byHash {
		if err := batch.Index(h, document(l)); err != nil {
			return nil, fmt.Errorf("indexing %s: %w", h, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		return nil, fmt.Errorf("indexing listings: %w", err)
	}

	req := bleve.NewSearchRequestOptions(buildQuery(tokens), len(byHash), 0, false)
	res, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("running query: %w", err)
	}

	type ranked struct {
		listing registry.Listing
		score   int
	}
	hits := make([]ranked, 0, len(res.Hits))
	for _, hit := range res.Hits {
		l, ok := byHash[hit.ID]
		if !ok {
			continue
		}
		hits = append(hits, ranked{listing: l, score: titleScore(tokens, analyze(plain, l.Title))})
	}

	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if !a.listing.CreatedAt.Equal(b.listing.CreatedAt) {
			return a.listing.CreatedAt.After(b.listing.CreatedAt)
		}
		return a.listing.ContentHash < b.listing.ContentHash
	})

	if opts.Limit > 0 && len(hits) > opts.Limit {
		hits = hits[:opts.Limit]
	}

	out := make([]registry.Listing, len(hits))
	for i, h := range hits {
		out[i] = h.listing
	}

	e.logger.Debug("search completed", "query", q, "tokens", len(tokens), "scanned", len(listings), "hits", len(out))
	return out, nil
}

// analyze returns the distinct terms a produces for text, in order.
func analyze(a analysis.Analyzer, text string) []string {
	stream := a.Analyze([]byte(text))
	terms := make([]string, 0, len(stream))
	seen := make(map[string]struct{}, len(stream))
	for _, tok := range stream {
		term := string(tok.Term)
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}
	return terms
}

func document(l registry.Listing) map[string]any {
	return map[string]any{
		fieldTitleExact:        l.Title,
		fieldTitle:             l.Title,
		fieldDescriptionExact:  l.Description,
		fieldDescription:       l.Description,
		fieldFileNameExact:     l.FileName,
		fieldFileName:          l.FileName,
		fieldCreatorAliasExact: l.CreatorAlias,
		fieldCreatorAlias:      l.CreatorAlias,
	}
}

// buildQuery requires every token to match some field, either as a whole
// word or as a word prefix.
func buildQuery(tokens []string) query.Query {
	must := make([]query.Query, 0, len(tokens))
	for _, tok := range tokens {
		either := make([]query.Query, 0, len(queryFields))
		for _, f := range queryFields {
			tq := bleve.NewTermQuery(tok)
			tq.SetField(f)
			either = append(either, tq)
		}
		must = append(must, bleve.NewDisjunctionQuery(either...))
	}
	return bleve.NewConjunctionQuery(must...)
}

// titleScore weighs how well the title covers the query: each query token
// that is a whole title word scores scoreTitleExact, one that only prefixes a
// title word scores scoreTitlePrefix. Listings matching only in other fields
// score zero.
func titleScore(queryTokens, titleTokens []string) int {
	score := 0
	for _, q := range queryTokens {
		best := 0
		for _, w := range titleTokens {
			if w == q {
				best = scoreTitleExact
				break
			}
			if strings.HasPrefix(w, q) {
				best = scoreTitlePrefix
			}
		}
		score += best
	}
	return score
}

// matchesFilters applies the optional content type and price filters.
func matchesFilters(l registry.Listing, opts registry.SearchOptions) bool {
	if opts.MaxPrice > 0 && l.PriceSats > opts.MaxPrice {
		return false
	}
	if opts.ContentType != "" && !matchesContentType(l, opts.ContentType) {
		return false
	}
	return true
}

// matchesContentType accepts a file extension ("mp4"), a mime subtype
// ("mp4") or a full mime type ("video/mp4").
func matchesContentType(l registry.Listing, want string) bool {
	want = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(want), "."))
	if want == "" {
		return true
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(l.FileName), "."))
	if ext == want {
		return true
	}
	mime := strings.ToLower(l.MimeType)
	if mime == want {
		return true
	}
	_, subtype, ok := strings.Cut(mime, "/")
	return ok && subtype == want
}
