package extract

import (
	"fmt"
	"strings"

	"github.com/pavelanni/interviewer/internal/model"
)

type questionTemplate struct {
	text     string
	category string
	points   []string
}

var companyTemplates = []questionTemplate{
	{"请介绍一下你对{company}公司的了解？", model.CategoryGeneral, []string{"公司认知"}},
	{"为什么选择{company}公司？", model.CategoryGeneral, []string{"求职动机"}},
	{"你认为{position}这个职位需要具备哪些核心能力？", model.CategoryGeneral, []string{"岗位理解"}},
	{"请描述一个你在{position}相关工作中遇到的挑战及解决方案？", model.CategoryGeneral, []string{"问题解决"}},
	{"你如何看待{company}所在行业的发展趋势？", model.CategoryGeneral, []string{"行业洞察"}},
	{"如果加入{company}，你计划在前三个月为{position}岗位做出哪些贡献？", model.CategoryGeneral, []string{"职业规划"}},
	{"请分享一次你与团队意见不一致时的处理经历？", model.CategoryGeneral, []string{"团队协作"}},
	{"你未来三到五年在{position}方向上的职业规划是什么？", model.CategoryGeneral, []string{"职业规划"}},
}

var keywordTemplates = []questionTemplate{
	{"请详细解释{kw}的核心概念和原理？", model.CategoryTheory, nil},
	{"在实际项目中，你是如何使用{kw}的？请举个具体例子。", model.CategoryPractice, nil},
	{"{kw}有哪些优缺点？在什么场景下会选择使用它？", model.CategoryComparison, nil},
	{"请描述一个使用{kw}解决技术难题的经历？", model.CategoryProblem, nil},
	{"如何优化{kw}的性能？有哪些最佳实践？", model.CategoryPerformance, nil},
	{"如果让你基于{kw}设计一个高可用系统，你会如何设计架构？", model.CategoryArchitecture, nil},
	{"{kw}与同类技术相比有什么区别？", model.CategoryComparison, nil},
	{"使用{kw}时遇到过哪些常见问题？你是如何排查的？", model.CategoryProblem, nil},
	{"{kw}的底层实现机制是怎样的？", model.CategoryTheory, nil},
	{"如何监控和保障{kw}在生产环境中的稳定性？", model.CategoryPractice, nil},
}

var resumeTemplates = []questionTemplate{
	{"请介绍一下你最有成就感的项目，以及你在其中承担的角色？", model.CategoryPractice, []string{"项目经验"}},
	{"在你的项目中遇到的最大技术挑战是什么？你是如何解决的？", model.CategoryProblem, []string{"问题解决", "技术难点"}},
	{"请结合简历谈谈你最熟悉的技术栈，以及你对它的理解深度？", model.CategoryTheory, []string{"技术栈"}},
	{"你是如何进行技术选型的？请举例说明。", model.CategoryArchitecture, []string{"技术选型"}},
	{"请描述一次你与团队协作完成任务的经历？", model.CategoryGeneral, []string{"团队协作", "沟通能力"}},
	{"你为什么想应聘{position}这个职位？", model.CategoryGeneral, []string{"求职动机"}},
	{"你在工作中是如何持续学习新技术的？", model.CategoryGeneral, []string{"学习能力"}},
	{"请谈谈你未来的职业发展规划？", model.CategoryGeneral, []string{"职业规划"}},
}

// DefaultQuestions is the default tier. It returns n template questions for
// spec starting at position offset of the overall set, so padding continues
// the template sequence instead of repeating its head. Past the end of the
// template list the sequence wraps with a round suffix.
func DefaultQuestions(spec model.GenerationSpec, offset, n int) []model.Question {
	if n <= 0 {
		return nil
	}

	var templates []questionTemplate
	keywordMode := false
	switch spec.Mode {
	case model.ModeCompany:
		templates = companyTemplates
	case model.ModeResume:
		templates = resumeTemplates
	default:
		templates = keywordTemplates
		keywordMode = true
	}

	keywords := spec.KeywordList()
	difficulty := requestedDifficulty(spec)
	company := orDefault(spec.Company, "目标公司")
	position := orDefault(spec.Position, orDefault(spec.TargetPosition, "目标"))

	out := make([]model.Question, 0, n)
	for i := offset; i < offset+n; i++ {
		t := templates[i%len(templates)]

		kw := "相关技术"
		if len(keywords) > 0 {
			kw = keywords[i%len(keywords)]
		}
		text := strings.NewReplacer(
			"{company}", company,
			"{position}", position,
			"{kw}", kw,
		).Replace(t.text)
		if round := i / len(templates); round > 0 {
			text = fmt.Sprintf("%s（第%d轮追问）", text, round+1)
		}

		points := t.points
		if keywordMode && len(keywords) > 0 {
			points = KnowledgePoints(kw, []string{kw})
		}

		out = append(out, model.Question{
			Text:            text,
			Difficulty:      difficulty,
			Category:        t.category,
			KnowledgePoints: model.Dedupe(points),
		})
	}
	return out
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}
