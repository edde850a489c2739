package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pavelanni/interviewer/internal/knowledge"
	"github.com/pavelanni/interviewer/internal/model"
	"github.com/pavelanni/interviewer/internal/weakness"
)

// commonFlags registers storage and logging flags, plus model flags when the
// command calls the model.
func commonFlags(cmd *cobra.Command, usesModel bool) *cobra.Command {
	f := cmd.Flags()
	addStoreFlags(f)
	if usesModel {
		addLLMFlags(f)
	}
	addLogFlags(f)
	return cmd
}

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate interview questions",
	}
	cmd.AddCommand(generateCompanyCmd(), generateSelfCmd(), generateResumeCmd())
	return cmd
}

func addGenerationFlags(cmd *cobra.Command, count int) {
	f := cmd.Flags()
	f.StringP("difficulty", "d", string(model.DifficultyIntermediate), "Difficulty (beginner, intermediate, advanced)")
	f.IntP("count", "n", count, "Number of questions (1-20)")
}

func generationSpec(cmd *cobra.Command, mode model.Mode) (model.GenerationSpec, error) {
	v := viperForCmd(cmd)
	d, ok := model.ParseDifficulty(v.GetString("difficulty"))
	if !ok {
		return model.GenerationSpec{}, fmt.Errorf("unknown difficulty %q", v.GetString("difficulty"))
	}
	return model.GenerationSpec{Mode: mode, Difficulty: d, Count: v.GetInt("count")}, nil
}

func generateCompanyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "company",
		Short: "Questions for a company and position",
		RunE: func(cmd *cobra.Command, _ []string) error {
			spec, err := generationSpec(cmd, model.ModeCompany)
			if err != nil {
				return err
			}
			v := viperForCmd(cmd)
			spec.Company = v.GetString("company")
			spec.Position = v.GetString("position")
			return runGenerate(cmd, spec)
		},
	}
	cmd.Flags().String("company", "", "Company name (required)")
	cmd.Flags().String("position", "", "Position (required)")
	_ = cmd.MarkFlagRequired("company")
	_ = cmd.MarkFlagRequired("position")
	addGenerationFlags(cmd, model.DefaultQuestionCount)
	return commonFlags(cmd, true)
}

func generateSelfCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "self",
		Short: "Questions around technical keywords",
		RunE: func(cmd *cobra.Command, _ []string) error {
			spec, err := generationSpec(cmd, model.ModeKeyword)
			if err != nil {
				return err
			}
			spec.Keywords = viperForCmd(cmd).GetString("keywords")
			return runGenerate(cmd, spec)
		},
	}
	cmd.Flags().StringP("keywords", "k", "", "Comma separated keywords (required)")
	_ = cmd.MarkFlagRequired("keywords")
	addGenerationFlags(cmd, model.DefaultQuestionCount)
	return commonFlags(cmd, true)
}

func generateResumeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume <file>",
		Short: "Analyze a resume and generate questions about it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := generationSpec(cmd, model.ModeResume)
			if err != nil {
				return err
			}
			text, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read resume: %w", err)
			}
			v := viperForCmd(cmd)
			spec.ResumeText = string(text)
			spec.UserID = v.GetString("user")
			spec.TargetPosition = v.GetString("target-position")
			return runGenerate(cmd, spec)
		},
	}
	cmd.Flags().StringP("user", "u", "", "User id; the resume is kept for later generation when set")
	cmd.Flags().String("target-position", "", "Target position")
	addGenerationFlags(cmd, model.DefaultResumeQuestionCount)
	return commonFlags(cmd, true)
}

func runGenerate(cmd *cobra.Command, spec model.GenerationSpec) error {
	setupLogging(cmd)
	svc, err := newServices(cmd.Context(), viperForCmd(cmd))
	if err != nil {
		return err
	}
	defer svc.Close()

	res, err := svc.catalog.Generate(cmd.Context(), spec)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), res)
}

func evaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score one answer",
		RunE:  runEvaluate,
	}
	f := cmd.Flags()
	f.StringP("user", "u", "cli", "User id")
	f.StringP("question", "q", "", "Question text (required)")
	f.String("answer", "", "Answer text; read from stdin when empty")
	f.StringSlice("kp", nil, "Known knowledge points")
	f.Bool("save", false, "Append the evaluation to the user's history")
	_ = cmd.MarkFlagRequired("question")
	return commonFlags(cmd, true)
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	answer := v.GetString("answer")
	if answer == "" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read answer: %w", err)
		}
		answer = strings.TrimSpace(string(data))
	}
	if answer == "" {
		return errors.New("answer is empty")
	}

	svc, err := newServices(cmd.Context(), v)
	if err != nil {
		return err
	}
	defer svc.Close()

	user := v.GetString("user")
	rec, err := svc.evaluator.Evaluate(cmd.Context(), user, v.GetString("question"), answer, v.GetStringSlice("kp"))
	if err != nil {
		return err
	}
	if v.GetBool("save") {
		if rec, err = svc.evaluator.Save(cmd.Context(), user, rec); err != nil {
			return err
		}
	}
	return printJSON(cmd.OutOrStdout(), rec)
}

func evaluateBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate-batch <file>",
		Short: "Score a JSON array of answers concurrently",
		Long: `Reads a JSON array of {"user_id", "question", "user_answer", "knowledge_points"}
objects and prints one result per item, in input order.`,
		Args: cobra.ExactArgs(1),
		RunE: runEvaluateBatch,
	}
	f := cmd.Flags()
	f.IntP("concurrency", "c", 4, "Maximum concurrent model calls")
	f.Bool("save", false, "Append each evaluation to its user's history")
	return commonFlags(cmd, true)
}

type batchResult struct {
	Index  int                     `json:"index"`
	Record *model.EvaluationRecord `json:"record,omitempty"`
	Error  string                  `json:"error,omitempty"`
}

// readBatch decodes and validates batch items.
func readBatch(r io.Reader) ([]model.SubmitAnswerRequest, error) {
	var items []model.SubmitAnswerRequest
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}
	for i := range items {
		if err := items[i].Validate(); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}
	return items, nil
}

func runEvaluateBatch(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open batch: %w", err)
	}
	items, err := readBatch(f)
	f.Close()
	if err != nil {
		return err
	}

	svc, err := newServices(cmd.Context(), v)
	if err != nil {
		return err
	}
	defer svc.Close()

	limit := max(v.GetInt("concurrency"), 1)
	save := v.GetBool("save")
	results := make([]batchResult, len(items))

	g, gctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(limit)
	for i, it := range items {
		g.Go(func() error {
			rec, err := svc.evaluator.Evaluate(gctx, it.UserID, it.Question, it.UserAnswer, it.KnowledgePoints)
			if err != nil {
				// A failed model call only fails its own item.
				results[i] = batchResult{Index: i, Error: err.Error()}
				return nil
			}
			if save {
				if rec, err = svc.evaluator.Save(gctx, it.UserID, rec); err != nil {
					return fmt.Errorf("item %d: %w", i, err)
				}
			}
			results[i] = batchResult{Index: i, Record: &rec}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}
	slog.Info("batch evaluated", "items", len(items), "failed", failed, "concurrency", limit)
	return printJSON(cmd.OutOrStdout(), results)
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print a user's evaluation history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			setupLogging(cmd)
			v := viperForCmd(cmd)
			st, err := openStore(v)
			if err != nil {
				return err
			}
			defer st.Close()

			records, err := st.Records(cmd.Context(), v.GetString("user"))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), records)
		},
	}
	cmd.Flags().StringP("user", "u", "", "User id (required)")
	_ = cmd.MarkFlagRequired("user")
	return commonFlags(cmd, false)
}

func weaknessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weakness",
		Short: "Analyze a user's weak points",
		RunE: func(cmd *cobra.Command, _ []string) error {
			setupLogging(cmd)
			v := viperForCmd(cmd)
			st, err := openStore(v)
			if err != nil {
				return err
			}
			defer st.Close()

			user := v.GetString("user")
			records, err := st.Records(cmd.Context(), user)
			if err != nil {
				return err
			}
			profile, err := weakness.Analyze(records)
			if errors.Is(err, weakness.ErrNoHistory) {
				fmt.Fprintf(cmd.OutOrStdout(), "no evaluation history for %s\n", user)
				return nil
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), profile)
		},
	}
	cmd.Flags().StringP("user", "u", "", "User id (required)")
	_ = cmd.MarkFlagRequired("user")
	return commonFlags(cmd, false)
}

func kbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Manage knowledge bases",
	}
	cmd.AddCommand(kbUploadCmd(), kbListCmd(), kbDeleteCmd(), kbQueryCmd())
	return cmd
}

func kbUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Store a txt, md, csv or html file as a knowledge base",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(cmd)
			v := viperForCmd(cmd)
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read file: %w", err)
			}
			st, err := openStore(v)
			if err != nil {
				return err
			}
			defer st.Close()

			res, err := knowledge.New(nil, st, slog.Default()).Upload(cmd.Context(), args[0], v.GetString("name"), data)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().String("name", "", "Knowledge base name (default kb_<file name>)")
	return commonFlags(cmd, false)
}

func kbListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List knowledge bases",
		RunE: func(cmd *cobra.Command, _ []string) error {
			setupLogging(cmd)
			st, err := openStore(viperForCmd(cmd))
			if err != nil {
				return err
			}
			defer st.Close()

			entries, err := st.ListKnowledgeBases(cmd.Context())
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%v\t%v\n", e.Name, e.Metadata["filename"], e.Metadata["created_at"])
			}
			return nil
		},
	}
	return commonFlags(cmd, false)
}

func kbDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a knowledge base",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(cmd)
			st, err := openStore(viperForCmd(cmd))
			if err != nil {
				return err
			}
			defer st.Close()
			return knowledge.New(nil, st, slog.Default()).Delete(cmd.Context(), args[0])
		},
	}
	return commonFlags(cmd, false)
}

func kbQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Ask a question, optionally against a knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(cmd)
			v := viperForCmd(cmd)
			svc, err := newServices(cmd.Context(), v)
			if err != nil {
				return err
			}
			defer svc.Close()

			ans, err := svc.knowledge.Query(cmd.Context(), strings.Join(args, " "), v.GetString("name"))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), ans)
		},
	}
	cmd.Flags().String("name", "", "Knowledge base to use as context")
	return commonFlags(cmd, true)
}
