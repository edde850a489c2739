package extract

import (
	"reflect"
	"strings"
	"testing"

	"github.com/pavelanni/interviewer/internal/model"
)

func keywordSpec(keywords string, count int) model.GenerationSpec {
	return model.GenerationSpec{Mode: model.ModeKeyword, Keywords: keywords, Difficulty: model.DifficultyIntermediate, Count: count}
}

func TestQuestionsJSONDefaults(t *testing.T) {
	raw := `{"questions":[{"question":"What is a hash table?","difficulty":"中级"}]}`
	out := Questions(raw, keywordSpec("", 1))

	if out.Tier != TierJSON || out.Degraded {
		t.Fatalf("Tier = %v, Degraded = %v; want json, false", out.Tier, out.Degraded)
	}
	want := []model.Question{{
		Text:            "What is a hash table?",
		Difficulty:      model.DifficultyIntermediate,
		Category:        model.CategoryGeneral,
		KnowledgePoints: []string{},
	}}
	if !reflect.DeepEqual(out.Questions, want) {
		t.Errorf("Questions = %#v, want %#v", out.Questions, want)
	}
}

func TestQuestionsInlineEnumeration(t *testing.T) {
	raw := "1. What is Redis persistence? 2. How does Redis do replication?"
	out := Questions(raw, keywordSpec("", 2))

	if out.Tier != TierHeuristic || out.Padded != 0 || out.Degraded {
		t.Fatalf("Tier = %v, Padded = %d, Degraded = %v", out.Tier, out.Padded, out.Degraded)
	}
	if len(out.Questions) != 2 {
		t.Fatalf("got %d questions, want 2", len(out.Questions))
	}
	tests := []struct {
		text     string
		category string
	}{
		{"What is Redis persistence?", model.CategoryTheory},
		{"How does Redis do replication?", model.CategoryPractice},
	}
	for i, tt := range tests {
		q := out.Questions[i]
		if q.Text != tt.text || q.Category != tt.category {
			t.Errorf("question %d = %q/%q, want %q/%q", i, q.Text, q.Category, tt.text, tt.category)
		}
		if !contains(q.KnowledgePoints, "持久化") {
			t.Errorf("question %d knowledge points %v should include redis concepts", i, q.KnowledgePoints)
		}
	}
}

func TestQuestionsDefaultTemplates(t *testing.T) {
	out := Questions("sorry I cannot help", keywordSpec("Kubernetes", 3))

	if out.Tier != TierDefault || !out.Degraded || out.Padded != 3 {
		t.Fatalf("Tier = %v, Degraded = %v, Padded = %d", out.Tier, out.Degraded, out.Padded)
	}
	if len(out.Questions) != 3 {
		t.Fatalf("got %d questions, want 3", len(out.Questions))
	}
	for i, q := range out.Questions {
		if !strings.Contains(q.Text, "Kubernetes") {
			t.Errorf("question %d %q does not reference Kubernetes", i, q.Text)
		}
		if !contains(q.KnowledgePoints, "Kubernetes") || !contains(q.KnowledgePoints, "容器编排") {
			t.Errorf("question %d knowledge points = %v", i, q.KnowledgePoints)
		}
	}
}

func TestQuestionsExactCount(t *testing.T) {
	replies := map[string]string{
		"empty":            "",
		"whitespace":       "   \n\n ",
		"prose":            "I am unable to comply.",
		"empty json array": `{"questions": []}`,
		"json wrong key":   `{"items": [{"question": "a?"}]}`,
		"json not array":   `{"questions": "a?"}`,
		"broken json":      `{"questions": [{"question": "a?"`,
		"fenced json":      "```json\n{\"questions\": [{\"question\": \"a?\"}, {\"question\": \"b?\"}, {\"question\": \"c?\"}]}\n```",
		"long list":        strings.Repeat("Question about Go?\n", 30),
		"lonely brace":     "}{",
		"binary junk":      "\x00\xff{\x01}",
	}
	modes := []model.Mode{model.ModeCompany, model.ModeKeyword, model.ModeResume}

	for name, raw := range replies {
		for _, mode := range modes {
			for _, count := range []int{1, 2, 5, 8, 20} {
				spec := model.GenerationSpec{Mode: mode, Company: "Acme", Position: "SRE", Keywords: "Go, Kafka", Count: count}
				out := Questions(raw, spec)
				if len(out.Questions) != count {
					t.Errorf("%s/%s/count=%d: got %d questions", name, mode, count, len(out.Questions))
				}
				for i, q := range out.Questions {
					if strings.TrimSpace(q.Text) == "" || q.Category == "" || q.Difficulty == "" || q.KnowledgePoints == nil {
						t.Errorf("%s/%s/count=%d: question %d incomplete: %#v", name, mode, count, i, q)
					}
				}
			}
		}
	}
}

func TestQuestionsTruncatesInOrder(t *testing.T) {
	raw := `{"questions": ["first?", "second?", "third?"]}`
	out := Questions(raw, keywordSpec("", 2))
	if len(out.Questions) != 2 || out.Questions[0].Text != "first?" || out.Questions[1].Text != "second?" {
		t.Errorf("Questions = %#v", out.Questions)
	}
}

func TestQuestionsPadsAfterModelOutput(t *testing.T) {
	raw := "Here you go:\n1. What is Go?\n2. How do channels work?"
	out := Questions(raw, keywordSpec("Go", 4))
	if out.Tier != TierHeuristic || out.Padded != 2 || !out.Degraded {
		t.Fatalf("Tier = %v, Padded = %d, Degraded = %v", out.Tier, out.Padded, out.Degraded)
	}
	if out.Questions[0].Text != "What is Go?" || out.Questions[1].Text != "How do channels work?" {
		t.Errorf("model questions not first: %#v", out.Questions[:2])
	}
	if out.Questions[2].Text == out.Questions[0].Text {
		t.Error("padding should come from the templates")
	}
}

func TestSegmentQuestions(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"continuation lines", "1. Explain the CAP theorem\nand its trade-offs\n2. Compare Raft and Paxos", []string{"Explain the CAP theorem and its trade-offs", "Compare Raft and Paxos"}},
		{"preamble dropped", "Sure, here they are\nWhat is a mutex?", []string{"What is a mutex?"}},
		{"topic marker", "题目1：什么是索引\n题目2：事务隔离级别有哪些", []string{"什么是索引", "事务隔离级别有哪些"}},
		{"markdown", "**1. 什么是Redis？**\n- 2) 如何实现分布式锁？", []string{"什么是Redis？", "如何实现分布式锁？"}},
		{"ten items prefix", "10. Last one?", []string{"Last one?"}},
		{"decimal not a marker", "3.5 seconds is the timeout, why?", []string{"3.5 seconds is the timeout, why?"}},
		{"json leftovers", "{\n\"questions\": [\n{\"question\": \"What is gRPC?\",\n\"difficulty\": \"中级\"\n}", []string{"What is gRPC?"}},
		{"full-width question mark", "解释一下GC？", []string{"解释一下GC？"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qs, ok := SegmentQuestions(tt.raw, keywordSpec("", 1))
			if !ok {
				t.Fatal("SegmentQuestions failed")
			}
			var got []string
			for _, q := range qs {
				got = append(got, q.Text)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("texts = %q, want %q", got, tt.want)
			}
		})
	}

	if _, ok := SegmentQuestions("no markers here at all", keywordSpec("", 1)); ok {
		t.Error("expected failure without marker lines")
	}
}

func TestParseJSONQuestionsNormalizes(t *testing.T) {
	raw := `Sure! {"questions": [
		{"question": "  ", "category": "x"},
		{"text": "Describe Kafka partitions", "difficulty": "hard", "category": "架构设计", "knowledge_points": "Kafka, 分区"},
		{"question": "What is an index?", "difficulty": "unknown", "knowledge_points": ["索引", 42, "索引"]},
		17
	]} Thanks`
	qs, ok := ParseJSONQuestions(raw, model.GenerationSpec{Difficulty: model.DifficultyBeginner})
	if !ok {
		t.Fatal("ParseJSONQuestions failed")
	}
	want := []model.Question{
		{Text: "Describe Kafka partitions", Difficulty: model.DifficultyAdvanced, Category: "架构设计", KnowledgePoints: []string{"Kafka", "分区"}},
		{Text: "What is an index?", Difficulty: model.DifficultyBeginner, Category: model.CategoryGeneral, KnowledgePoints: []string{"索引", "42"}},
	}
	if !reflect.DeepEqual(qs, want) {
		t.Errorf("questions = %#v\nwant %#v", qs, want)
	}
}

func TestResumeAnalysis(t *testing.T) {
	raw := `{"analysis": {"skills": ["Go", "Kafka"], "keywords": "distributed systems", "projects": []}, "questions": []}`
	got := ResumeAnalysis(raw)
	if !reflect.DeepEqual(got.Skills, []string{"Go", "Kafka"}) {
		t.Errorf("Skills = %v", got.Skills)
	}
	if !reflect.DeepEqual(got.Keywords, []string{"distributed systems"}) {
		t.Errorf("Keywords = %v", got.Keywords)
	}
	for name, field := range map[string][]string{"education": got.EducationBackground, "work": got.WorkExperience, "projects": got.Projects} {
		if !reflect.DeepEqual(field, []string{model.Pending}) {
			t.Errorf("%s = %v, want pending", name, field)
		}
	}

	if got := ResumeAnalysis("no json"); !reflect.DeepEqual(got, model.DefaultResumeAnalysis()) {
		t.Errorf("ResumeAnalysis(no json) = %#v", got)
	}
}

func TestQuestionsResumeMode(t *testing.T) {
	spec := model.GenerationSpec{Mode: model.ModeResume, TargetPosition: "Platform Engineer", Count: 8}
	out := Questions(`{"analysis": {"skills": ["Go"]}, "questions": [{"question": "Tell me about your Go service?"}]}`, spec)
	if out.Analysis == nil || out.Analysis.Skills[0] != "Go" {
		t.Fatalf("Analysis = %#v", out.Analysis)
	}
	if len(out.Questions) != 8 || out.Padded != 7 {
		t.Errorf("len = %d, padded = %d", len(out.Questions), out.Padded)
	}
	found := false
	for _, q := range out.Questions {
		if strings.Contains(q.Text, "Platform Engineer") {
			found = true
		}
	}
	if !found {
		t.Error("resume templates should mention the target position")
	}
}

func TestDefaultQuestionsWrapsWithRoundSuffix(t *testing.T) {
	spec := model.GenerationSpec{Mode: model.ModeCompany, Company: "Acme", Position: "SRE", Count: 20}
	qs := DefaultQuestions(spec, 0, 20)
	seen := make(map[string]bool)
	for _, q := range qs {
		if seen[q.Text] {
			t.Errorf("duplicate default question %q", q.Text)
		}
		seen[q.Text] = true
	}
	if !strings.Contains(qs[len(companyTemplates)].Text, "第2轮") {
		t.Errorf("wrapped question = %q", qs[len(companyTemplates)].Text)
	}
	if DefaultQuestions(spec, 0, 0) != nil {
		t.Error("zero questions requested should return nil")
	}
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"什么是CAP定理？", model.CategoryTheory},
		{"如何实现限流？", model.CategoryPractice},
		{"请设计一个短链系统", model.CategoryArchitecture},
		{"如何优化慢查询？", model.CategoryPractice},
		{"接口性能下降怎么排查", model.CategoryPractice},
		{"GC停顿过长的性能瓶颈", model.CategoryProblem},
		{"TCP和UDP的区别", model.CategoryComparison},
		{"Compare gRPC and REST", model.CategoryComparison},
		{"聊聊你的职业规划", model.CategoryComprehensive},
	}
	for _, tt := range tests {
		if got := Categorize(tt.text); got != tt.want {
			t.Errorf("Categorize(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestKnowledgePoints(t *testing.T) {
	got := KnowledgePoints("How does MySQL use indexes with Redis caching?", []string{"数据库", "Go"})
	want := []string{"数据库", "Go", "缓存", "数据结构", "持久化", "SQL", "索引", "事务"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("KnowledgePoints = %v, want %v", got, want)
	}
}

func TestTechConcepts(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"Explain closures in JavaScript", nil},
		{"Compare Java and JavaScript generics", []string{"面向对象", "JVM", "多线程", "集合框架"}},
		{"How does the Java GC work?", []string{"面向对象", "JVM", "多线程", "集合框架"}},
		{"Golang channels vs Kafka", []string{"goroutine", "channel", "并发模型", "消息队列", "分区", "消费者组"}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := TechConcepts(tt.text); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("TechConcepts(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestEvaluateJSON(t *testing.T) {
	raw := "```json\n" + `{
		"score": "85分",
		"knowledge_points": ["Redis", "持久化", "Redis"],
		"weak_aspects": "技术深度",
		"detailed_feedback": {"正确性": "基本正确", "完整性": 7, "空": ""},
		"improvement_suggestions": ["多举例"]
	}` + "\n```"
	ev := Evaluate(raw, "answer")
	if ev.Tier != TierJSON || ev.Degraded {
		t.Fatalf("Tier = %v, Degraded = %v", ev.Tier, ev.Degraded)
	}
	if ev.Score != 85 {
		t.Errorf("Score = %v, want 85", ev.Score)
	}
	if !reflect.DeepEqual(ev.KnowledgePoints, []string{"Redis", "持久化"}) {
		t.Errorf("KnowledgePoints = %v", ev.KnowledgePoints)
	}
	if !reflect.DeepEqual(ev.WeakAspects, []string{"技术深度"}) {
		t.Errorf("WeakAspects = %v", ev.WeakAspects)
	}
	if !reflect.DeepEqual(ev.DetailedFeedback, map[string]string{"正确性": "基本正确", "完整性": "7"}) {
		t.Errorf("DetailedFeedback = %v", ev.DetailedFeedback)
	}
}

func TestEvaluateFallbacks(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		answer    string
		wantTier  Tier
		wantScore float64
	}{
		{"short answer, no json", "The candidate answered.", strings.Repeat("a", 30), TierDefault, 30},
		{"medium answer", "Great effort overall.", strings.Repeat("答", 120), TierDefault, 60},
		{"long answer", "", strings.Repeat("x", 250), TierDefault, 75},
		{"json without score", `{"feedback": "ok"}`, "short", TierDefault, 30},
		{"unrelated minutes in prose", "建议你再花5分钟复习一下哈希冲突的处理方式。", strings.Repeat("答", 25), TierDefault, 30},
		{"full marks mentioned", "本题满分100分，回答比较简略。", strings.Repeat("答", 25), TierDefault, 30},
		{"labelled score in prose", "Overall score: 72. Good grasp of the basics.", strings.Repeat("a", 30), TierDefault, 30},
		{"padded answer counted as given", "no json", strings.Repeat(" ", 40) + strings.Repeat("a", 10), TierDefault, 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := Evaluate(tt.raw, tt.answer)
			if ev.Tier != tt.wantTier || ev.Score != tt.wantScore {
				t.Errorf("Tier = %v, Score = %v; want %v, %v", ev.Tier, ev.Score, tt.wantTier, tt.wantScore)
			}
			if len(ev.DetailedFeedback) == 0 {
				t.Error("detailed feedback should not be empty")
			}
			if !ev.Degraded || len(ev.WeakAspects) == 0 || len(ev.ImprovementSuggestions) == 0 {
				t.Errorf("default evaluation incomplete: %#v", ev)
			}
		})
	}
}

func TestSummary(t *testing.T) {
	long := strings.Repeat("评", SummaryRunes+1)
	got := Summary(long)
	if !strings.HasSuffix(got, "...") || len([]rune(got)) != SummaryRunes+3 {
		t.Errorf("Summary(long) has %d runes", len([]rune(got)))
	}
	if Summary("  fine  ") != "fine" {
		t.Errorf("Summary(short) = %q", Summary("  fine  "))
	}
	if Summary("") == "" {
		t.Error("Summary(empty) should not be empty")
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
