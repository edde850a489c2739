package extract

import (
	"strings"

	"github.com/pavelanni/interviewer/internal/model"
)

type categoryRule struct {
	category string
	terms    []string
}

// categoryRules is matched top to bottom against the lowercased question
// text; the first rule with a matching term wins.
var categoryRules = []categoryRule{
	{model.CategoryTheory, []string{"原理", "概念", "定义", "什么是", "what is", "what are", "principle", "concept", "definition", "define"}},
	{model.CategoryPractice, []string{"实现", "如何", "怎么", "步骤", "how ", "how do", "implement", "steps"}},
	{model.CategoryArchitecture, []string{"架构", "设计", "方案", "选择", "architecture", "design", "choose"}},
	{model.CategoryProblem, []string{"优化", "性能", "问题", "解决", "optimi", "performance", "problem", "troubleshoot"}},
	{model.CategoryComparison, []string{"区别", "比较", "对比", "compare", "comparison", "difference", " vs"}},
}

// Categorize assigns a category to a question by the ordered lexicon.
func Categorize(text string) string {
	lower := strings.ToLower(text)
	for _, rule := range categoryRules {
		for _, term := range rule.terms {
			if strings.Contains(lower, term) {
				return rule.category
			}
		}
	}
	return model.CategoryComprehensive
}

type techConcepts struct {
	tech     string
	concepts []string
	// longer names that contain tech without naming it
	unless []string
}

func (tc techConcepts) named(lower string) bool {
	n := strings.Count(lower, tc.tech)
	for _, u := range tc.unless {
		n -= strings.Count(lower, u)
	}
	return n > 0
}

// techLexicon maps a technology name to the concepts it implies.
var techLexicon = []techConcepts{
	{"redis", []string{"缓存", "数据结构", "持久化"}, nil},
	{"mysql", []string{"数据库", "SQL", "索引", "事务"}, nil},
	{"java", []string{"面向对象", "JVM", "多线程", "集合框架"}, []string{"javascript"}},
	{"python", []string{"数据结构", "装饰器", "生成器", "GIL"}, nil},
	{"spring", []string{"IOC", "AOP", "依赖注入", "MVC"}, nil},
	{"docker", []string{"容器化", "镜像", "编排"}, nil},
	{"kubernetes", []string{"容器编排", "微服务", "集群管理"}, nil},
	{"golang", []string{"goroutine", "channel", "并发模型"}, nil},
	{"kafka", []string{"消息队列", "分区", "消费者组"}, nil},
	{"react", []string{"组件化", "虚拟DOM", "Hooks"}, nil},
}

// TechConcepts returns the concepts of every technology named in text.
func TechConcepts(text string) []string {
	lower := strings.ToLower(text)
	var out []string
	for _, tc := range techLexicon {
		if tc.named(lower) {
			out = append(out, tc.concepts...)
		}
	}
	return out
}

// KnowledgePoints is the caller's keywords plus the concepts of every
// technology named in text, de-duplicated.
func KnowledgePoints(text string, keywords []string) []string {
	return model.Dedupe(append(append([]string{}, keywords...), TechConcepts(text)...))
}
