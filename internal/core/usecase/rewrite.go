package usecase

import (
	"sort"
	"strings"

	"github.com/jungujeong/GovRAG-sub000/internal/core/domain"
)

// RewriteConfig holds the closed grammatical sets and thresholds of the
// follow-up query rewriter. The sets name grammatical roles (meta-question
// markers, demonstratives, generic document references), never corpus
// vocabulary.
type RewriteConfig struct {
	ContentWords ContentWordConfig

	// MetaKeywords mark meta-questions that should be redirected to the
	// most recent actual user question.
	MetaKeywords []string
	// Demonstratives and GenericReferences are excluded when deciding
	// whether the query carries its own topic.
	Demonstratives    map[string]struct{}
	GenericReferences map[string]struct{}
	Interrogatives    map[string]struct{}

	// MaxCarriedEntities bounds the entity pool considered per turn.
	MaxCarriedEntities int
	// MinEntityLen: minimum rune length for a carried entity candidate.
	MinEntityLen int
}

func DefaultRewriteConfig() RewriteConfig {
	return RewriteConfig{
		ContentWords: DefaultContentWordConfig(),
		MetaKeywords: []string{
			"요약", "정리", "다시", "간단히", "짧게", "한줄로",
			"summarize", "again", "briefly",
		},
		Demonstratives: toSet("그", "이", "저", "그거", "그것", "이거", "이것", "해당", "위"),
		GenericReferences: toSet(
			"문서", "내용", "자료", "파일", "부분", "설명", "관련",
			"질문", "답변", "대답", "정보",
		),
		Interrogatives: toSet(
			"뭐", "뭐야", "무엇", "뭔가", "어때", "어떻게", "어떤",
			"왜", "언제", "어디", "누구", "얼마", "알려줘", "궁금",
		),
		MaxCarriedEntities: 8,
		MinEntityLen:       3,
	}
}

// Rewriter resolves pronouns and ellipsis in follow-up queries by carrying
// over entities from conversation history. Entirely heuristic; it never
// calls a model.
type Rewriter struct {
	cfg RewriteConfig
}

func NewRewriter(cfg RewriteConfig) *Rewriter {
	if cfg.MaxCarriedEntities <= 0 {
		cfg.MaxCarriedEntities = 8
	}
	if cfg.MinEntityLen <= 0 {
		cfg.MinEntityLen = 3
	}
	return &Rewriter{cfg: cfg}
}

// Rewrite builds the retrieval query for one turn. The returned query
// always carries at least one sub-query.
func (rw *Rewriter) Rewrite(
	current string,
	recent []domain.ConversationMessage,
	summary string,
	carried []string,
) domain.RetrievalQuery {
	current = strings.TrimSpace(current)
	query := domain.RetrievalQuery{
		RawText:       current,
		RewrittenText: current,
		RewriteReason: domain.RewriteNone,
	}

	// Meta-questions ("summarize that", "say it again") retrieve nothing
	// useful themselves; redirect to the last substantive user question.
	if rw.isMetaQuestion(current) {
		if prev := lastUserQuestion(recent, current); prev != "" {
			query.RewrittenText = prev
			query.RewriteReason = domain.RewriteMetaRedirect
		}
		query.SubQueries = buildSubQueries(query)
		return query
	}

	entity := rw.CarryOverEntity(recent, summary, carried)
	if entity == "" {
		query.SubQueries = buildSubQueries(query)
		return query
	}

	if strings.Contains(current, entity) {
		query.RewriteReason = domain.RewriteEntityPresent
		query.SubQueries = buildSubQueries(query)
		return query
	}

	// Topic-continuity gate: a query that brings its own substantial topic
	// words with zero overlap against the carried entity is a fresh topic;
	// injecting stale context would only pollute retrieval.
	substantial := rw.substantialTokens(current)
	if len(substantial) > 0 && !overlapsEntity(substantial, entity) {
		query.RewriteReason = domain.RewriteTopicChangeNoOverlap
		query.SubQueries = buildSubQueries(query)
		return query
	}

	query.RewrittenText = entity + " " + current
	query.RewriteReason = domain.RewriteContextEnrichedTag + ":" + entity
	query.SubQueries = buildSubQueries(query)
	return query
}

// CarryOverEntity picks the canonical entity to carry into this turn.
// Assistant turns outrank user turns (assistant text reflects confirmed,
// grounded context); near-duplicate strings are clustered by substring
// containment with the shortest member chosen as canonical.
func (rw *Rewriter) CarryOverEntity(
	recent []domain.ConversationMessage,
	summary string,
	carried []string,
) string {
	entities := rw.Entities(recent, summary, carried)
	if len(entities) == 0 {
		return ""
	}
	return entities[0]
}

// Entities returns the clustered carry-over entity pool in priority
// order; callers persist it as the next turn's carried context.
func (rw *Rewriter) Entities(
	recent []domain.ConversationMessage,
	summary string,
	carried []string,
) []string {
	candidates := rw.entityCandidates(recent, summary, carried)
	if len(candidates) == 0 {
		return nil
	}
	return clusterByContainment(candidates)
}

// entityCandidates gathers entity-like content words in priority order:
// explicitly carried entities, assistant turns (most recent first), then
// user turns, then the rolling summary.
func (rw *Rewriter) entityCandidates(
	recent []domain.ConversationMessage,
	summary string,
	carried []string,
) []string {
	out := make([]string, 0, rw.cfg.MaxCarriedEntities)
	seen := make(map[string]struct{})
	add := func(words []string) {
		for _, w := range words {
			if len(out) >= rw.cfg.MaxCarriedEntities {
				return
			}
			if len([]rune(w)) < rw.cfg.MinEntityLen {
				continue
			}
			if rw.isStructural(w) {
				continue
			}
			if _, dup := seen[w]; dup {
				continue
			}
			seen[w] = struct{}{}
			out = append(out, w)
		}
	}

	add(carried)
	for _, role := range []string{"assistant", "user"} {
		for i := len(recent) - 1; i >= 0; i-- {
			if !strings.EqualFold(strings.TrimSpace(recent[i].Role), role) {
				continue
			}
			add(extractContentWords(recent[i].Content, rw.cfg.ContentWords))
		}
	}
	add(extractContentWords(summary, rw.cfg.ContentWords))
	return out
}

// substantialTokens returns the query's own topic-bearing tokens: content
// words that are not demonstratives, interrogatives or generic document
// references.
func (rw *Rewriter) substantialTokens(query string) []string {
	words := extractContentWords(query, rw.cfg.ContentWords)
	out := make([]string, 0, len(words))
	for _, w := range words {
		if rw.isStructural(w) {
			continue
		}
		out = append(out, w)
	}
	return out
}

func (rw *Rewriter) isStructural(token string) bool {
	stripped := stripParticle(token, rw.cfg.ContentWords.ParticleSuffixes)
	for _, t := range []string{token, stripped} {
		if _, ok := rw.cfg.Demonstratives[t]; ok {
			return true
		}
		if _, ok := rw.cfg.GenericReferences[t]; ok {
			return true
		}
		if _, ok := rw.cfg.Interrogatives[t]; ok {
			return true
		}
		for _, meta := range rw.cfg.MetaKeywords {
			if t == meta {
				return true
			}
		}
	}
	return false
}

func (rw *Rewriter) isMetaQuestion(query string) bool {
	if query == "" {
		return false
	}
	hasMeta := false
	for _, kw := range rw.cfg.MetaKeywords {
		if strings.Contains(query, kw) {
			hasMeta = true
			break
		}
	}
	if !hasMeta {
		return false
	}
	// A meta keyword amid substantial topic words is a real question
	// ("summarize the budget plan"), not a bare meta-question.
	return len(rw.substantialTokens(query)) == 0
}

// overlapsEntity reports whether any substantial token shares material
// with the entity: containment either way or any common character bigram.
func overlapsEntity(tokens []string, entity string) bool {
	entityBigrams := charBigrams(entity)
	for _, token := range tokens {
		if strings.Contains(entity, token) || strings.Contains(token, entity) {
			return true
		}
		for g := range charBigrams(token) {
			if _, ok := entityBigrams[g]; ok {
				return true
			}
		}
	}
	return false
}

// clusterByContainment groups near-duplicate entity strings (root word
// plus particle-suffixed variants) and returns one canonical member per
// cluster, preserving the priority order of the input. The shortest member
// of a cluster is canonical.
func clusterByContainment(candidates []string) []string {
	type cluster struct {
		canonical string
		order     int
	}
	clusters := make([]cluster, 0, len(candidates))
	for i, cand := range candidates {
		merged := false
		for j := range clusters {
			c := &clusters[j]
			if strings.Contains(cand, c.canonical) || strings.Contains(c.canonical, cand) {
				if len([]rune(cand)) < len([]rune(c.canonical)) {
					c.canonical = cand
				}
				merged = true
				break
			}
		}
		if !merged {
			clusters = append(clusters, cluster{canonical: cand, order: i})
		}
	}
	sort.SliceStable(clusters, func(i, j int) bool { return clusters[i].order < clusters[j].order })
	out := make([]string, len(clusters))
	for i, c := range clusters {
		out[i] = c.canonical
	}
	return out
}

func lastUserQuestion(recent []domain.ConversationMessage, current string) string {
	for i := len(recent) - 1; i >= 0; i-- {
		if !strings.EqualFold(strings.TrimSpace(recent[i].Role), "user") {
			continue
		}
		content := strings.TrimSpace(recent[i].Content)
		if content == "" || content == current {
			continue
		}
		return content
	}
	return ""
}

func buildSubQueries(q domain.RetrievalQuery) []string {
	if q.RewrittenText == q.RawText || q.RawText == "" {
		return []string{q.RewrittenText}
	}
	return []string{q.RewrittenText, q.RawText}
}
