package usecase

import (
	"strings"
	"testing"

	"github.com/jungujeong/GovRAG-sub000/internal/core/domain"
)

func assistantSaid(content string) []domain.ConversationMessage {
	return []domain.ConversationMessage{
		{Role: "user", Content: "홍티예술촌에 대해 알려줘"},
		{Role: "assistant", Content: content},
	}
}

func TestRewriteEnrichesEllipticalFollowup(t *testing.T) {
	rw := NewRewriter(DefaultRewriteConfig())
	recent := assistantSaid("홍티예술촌은 사하구에 위치한 예술 공간입니다.")

	q := rw.Rewrite("그 문서 내용이 뭐야", recent, "", nil)
	if !strings.Contains(q.RewrittenText, "홍티예술촌") {
		t.Fatalf("expected carried entity in rewritten query, got %q", q.RewrittenText)
	}
	if !strings.HasPrefix(q.RewriteReason, domain.RewriteContextEnrichedTag+":") {
		t.Fatalf("expected context_enriched reason, got %q", q.RewriteReason)
	}
	if len(q.SubQueries) != 2 || q.SubQueries[0] != q.RewrittenText || q.SubQueries[1] != q.RawText {
		t.Fatalf("expected [rewritten, raw] sub-queries, got %v", q.SubQueries)
	}
}

func TestRewriteTopicChangeNoOverlapLeavesQueryUntouched(t *testing.T) {
	rw := NewRewriter(DefaultRewriteConfig())
	recent := assistantSaid("홍티예술촌은 사하구에 위치한 예술 공간입니다.")

	q := rw.Rewrite("오늘 날씨 어때", recent, "", nil)
	if q.RewrittenText != "오늘 날씨 어때" {
		t.Fatalf("expected unmodified query, got %q", q.RewrittenText)
	}
	if q.RewriteReason != domain.RewriteTopicChangeNoOverlap {
		t.Fatalf("expected topic_change_no_overlap, got %q", q.RewriteReason)
	}
}

func TestRewriteEntityAlreadyPresent(t *testing.T) {
	rw := NewRewriter(DefaultRewriteConfig())
	recent := assistantSaid("홍티예술촌은 사하구에 위치한 예술 공간입니다.")

	q := rw.Rewrite("홍티예술촌 운영 시간은?", recent, "", nil)
	if q.RewrittenText != q.RawText {
		t.Fatalf("expected unchanged query, got %q", q.RewrittenText)
	}
	if q.RewriteReason != domain.RewriteEntityPresent {
		t.Fatalf("expected entity_already_present, got %q", q.RewriteReason)
	}
}

func TestRewriteNoHistoryNoRewrite(t *testing.T) {
	rw := NewRewriter(DefaultRewriteConfig())
	q := rw.Rewrite("홍티예술촌 소개", nil, "", nil)
	if q.RewriteReason != domain.RewriteNone {
		t.Fatalf("expected no_rewrite, got %q", q.RewriteReason)
	}
	if len(q.SubQueries) != 1 {
		t.Fatalf("expected single sub-query, got %v", q.SubQueries)
	}
}

func TestRewriteMetaQuestionRedirectsToLastUserQuestion(t *testing.T) {
	rw := NewRewriter(DefaultRewriteConfig())
	recent := []domain.ConversationMessage{
		{Role: "user", Content: "홍티예술촌 입주 절차 알려줘"},
		{Role: "assistant", Content: "입주 절차는 다음과 같습니다."},
	}

	q := rw.Rewrite("다시 요약 좀", recent, "", nil)
	if q.RewriteReason != domain.RewriteMetaRedirect {
		t.Fatalf("expected meta redirect, got %q", q.RewriteReason)
	}
	if q.RewrittenText != "홍티예술촌 입주 절차 알려줘" {
		t.Fatalf("expected redirect to prior question, got %q", q.RewrittenText)
	}
}

func TestRewriteMetaKeywordWithSubstantialTopicIsNotMeta(t *testing.T) {
	rw := NewRewriter(DefaultRewriteConfig())
	recent := assistantSaid("홍티예술촌은 사하구에 위치한 예술 공간입니다.")

	// Carries its own topic word; the meta keyword alone must not trigger
	// a redirect.
	q := rw.Rewrite("예산안 요약해줘", recent, "", nil)
	if q.RewriteReason == domain.RewriteMetaRedirect {
		t.Fatalf("substantial query misclassified as meta-question")
	}
}

func TestCarryOverPrioritizesAssistantTurns(t *testing.T) {
	rw := NewRewriter(DefaultRewriteConfig())
	recent := []domain.ConversationMessage{
		{Role: "user", Content: "감천문화마을 얘기도 궁금해"},
		{Role: "assistant", Content: "홍티예술촌은 입주 작가를 모집합니다."},
	}
	entity := rw.CarryOverEntity(recent, "", nil)
	if entity != "홍티예술촌" {
		t.Fatalf("expected assistant-derived entity, got %q", entity)
	}
}

func TestCarryOverClustersParticleVariants(t *testing.T) {
	rw := NewRewriter(DefaultRewriteConfig())
	recent := []domain.ConversationMessage{
		{Role: "assistant", Content: "홍티예술촌은 공간입니다. 홍티예술촌에서 전시가 열립니다."},
	}
	entities := rw.Entities(recent, "", nil)
	count := 0
	for _, e := range entities {
		if strings.Contains(e, "홍티예술촌") {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected particle variants clustered to one canonical entity, got %v", entities)
	}
}

func TestCarryOverExplicitEntitiesWinOverHistory(t *testing.T) {
	rw := NewRewriter(DefaultRewriteConfig())
	recent := assistantSaid("감천문화마을 이야기입니다.")
	entity := rw.CarryOverEntity(recent, "", []string{"홍티예술촌"})
	if entity != "홍티예술촌" {
		t.Fatalf("expected explicitly carried entity first, got %q", entity)
	}
}
