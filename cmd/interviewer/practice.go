package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/pavelanni/interviewer/internal/model"
)

const (
	practiceCompany = "Company interview"
	practiceSelf    = "Keyword self-interview"
	practiceResume  = "Questions from my stored resume"

	actionSave = "Save to my history"
	actionNext = "Next question"
	actionQuit = "Quit"
)

var practiceModes = promptui.Select{
	Label: "What do you want to practice?",
	Items: []string{practiceCompany, practiceSelf, practiceResume},
}

func practiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "practice",
		Short: "Interactive drill: answer generated questions and get scored",
		RunE:  runPractice,
	}
	cmd.Flags().StringP("user", "u", "cli", "User id for history and stored resume")
	return commonFlags(cmd, true)
}

func runPractice(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	user := v.GetString("user")

	svc, err := newServices(ctx, v)
	if err != nil {
		return err
	}
	defer svc.Close()

	questions, err := practiceQuestions(ctx, svc, user)
	if err != nil {
		return quietInterrupt(err)
	}

	for i, q := range questions {
		fmt.Fprintf(out, "\n[%d/%d] (%s, %s)\n%s\n\n", i+1, len(questions), q.Difficulty.Label(), q.Category, q.Text)

		answer, err := (&promptui.Prompt{Label: "Your answer"}).Run()
		if err != nil {
			return quietInterrupt(err)
		}
		if strings.TrimSpace(answer) == "" {
			fmt.Fprintln(out, "skipped")
			continue
		}

		rec, err := svc.evaluator.Evaluate(ctx, user, q.Text, answer, q.KnowledgePoints)
		if err != nil {
			return err
		}
		printEvaluation(out, rec)

		next := promptui.Select{Label: "Next", Items: []string{actionSave, actionNext, actionQuit}}
		_, action, err := next.Run()
		if err != nil {
			return quietInterrupt(err)
		}
		if action == actionSave {
			if _, err := svc.evaluator.Save(ctx, user, rec); err != nil {
				return err
			}
			fmt.Fprintln(out, "saved")
		}
		if action == actionQuit {
			return nil
		}
	}
	return nil
}

func practiceQuestions(ctx context.Context, svc *services, user string) ([]model.Question, error) {
	_, mode, err := practiceModes.Run()
	if err != nil {
		return nil, err
	}
	count, err := promptCount()
	if err != nil {
		return nil, err
	}

	if mode == practiceResume {
		res, err := svc.catalog.GenerateFromKnowledgeBase(ctx, user, count)
		if err != nil {
			return nil, err
		}
		return res.Questions, nil
	}

	spec := model.GenerationSpec{Mode: model.ModeKeyword, UserID: user, Count: count, Difficulty: model.DifficultyIntermediate}
	if mode == practiceCompany {
		spec.Mode = model.ModeCompany
		if spec.Company, err = promptRequired("Company"); err != nil {
			return nil, err
		}
		if spec.Position, err = promptRequired("Position"); err != nil {
			return nil, err
		}
	} else if spec.Keywords, err = promptRequired("Keywords (comma separated)"); err != nil {
		return nil, err
	}

	res, err := svc.catalog.Generate(ctx, spec)
	if err != nil {
		return nil, err
	}
	return res.Questions, nil
}

func promptRequired(label string) (string, error) {
	p := promptui.Prompt{
		Label: label,
		Validate: func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("required")
			}
			return nil
		},
	}
	s, err := p.Run()
	return strings.TrimSpace(s), err
}

func promptCount() (int, error) {
	p := promptui.Prompt{
		Label:   "How many questions",
		Default: strconv.Itoa(model.DefaultQuestionCount),
		Validate: func(s string) error {
			n, err := strconv.Atoi(strings.TrimSpace(s))
			if err != nil || n < 1 || n > model.MaxQuestionCount {
				return fmt.Errorf("enter a number from 1 to %d", model.MaxQuestionCount)
			}
			return nil
		},
	}
	s, err := p.Run()
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(s))
}

func printEvaluation(w io.Writer, rec model.EvaluationRecord) {
	fmt.Fprintf(w, "\nScore: %d/100\n", rec.Score)
	if len(rec.WeakAspects) > 0 {
		fmt.Fprintf(w, "Weak aspects: %s\n", strings.Join(rec.WeakAspects, ", "))
	}
	keys := make([]string, 0, len(rec.DetailedFeedback))
	for k := range rec.DetailedFeedback {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %s\n", k, rec.DetailedFeedback[k])
	}
	for _, s := range rec.ImprovementSuggestions {
		fmt.Fprintf(w, "  - %s\n", s)
	}
}

// quietInterrupt turns Ctrl-C and Ctrl-D at a prompt into a normal exit.
func quietInterrupt(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		return nil
	}
	return err
}
