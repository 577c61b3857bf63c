package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/policy-advisor/internal/bootstrap"
	"github.com/kirillkom/policy-advisor/internal/core/domain"
	"github.com/kirillkom/policy-advisor/internal/infrastructure/catalogfile"
	"github.com/kirillkom/policy-advisor/internal/infrastructure/export/xlsx"
)

func newSeedCatalogCommand(s *cliState) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed-catalog",
		Short: "Load catalog policies from a YAML or JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return s.withApp(cmd, func(app *bootstrap.App) error {
				path := file
				if path == "" {
					path = app.Config.CatalogFile
				}
				policies, err := catalogfile.LoadFile(path)
				if err != nil {
					return err
				}
				n, err := app.Catalog.Seed(cmd.Context(), policies)
				if err != nil {
					return err
				}
				return s.printJSON(map[string]any{"file": path, "seeded": n})
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Catalog file (defaults to CATALOG_FILE)")
	return cmd
}

func newIngestCommand(s *cliState) *cobra.Command {
	var dir, file, insurer string
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Upload one policy PDF or index every PDF under a directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dir != "" && file != "" {
				return errors.New("--dir and --file are mutually exclusive")
			}
			return s.withApp(cmd, func(app *bootstrap.App) error {
				if file != "" {
					return s.uploadFile(cmd, app, file, insurer)
				}
				if dir == "" {
					dir = app.Config.PoliciesDir
				}
				report, err := app.Ingest.IngestDirectory(cmd.Context(), dir)
				if err != nil {
					return err
				}
				return s.printJSON(report)
			})
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Directory of policy PDFs, insurer taken from each parent folder (defaults to POLICIES_DIR)")
	cmd.Flags().StringVar(&file, "file", "", "Single policy PDF to upload and queue for processing")
	cmd.Flags().StringVar(&insurer, "insurer", "", "Insurer name attached to --file")
	return cmd
}

func (s *cliState) uploadFile(cmd *cobra.Command, app *bootstrap.App, path, insurer string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	doc, err := app.Ingest.Upload(cmd.Context(), filepath.Base(path), insurer, f)
	if err != nil {
		return err
	}
	return s.printJSON(doc)
}

func newProcessCommand(s *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "process <document-id>",
		Short: "Chunk, embed and index an uploaded document synchronously",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.withApp(cmd, func(app *bootstrap.App) error {
				if err := app.Process.ProcessByID(cmd.Context(), args[0]); err != nil {
					return err
				}
				doc, err := app.Documents.GetByID(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return s.printJSON(doc)
			})
		},
	}
}

func newDocumentsCommand(s *cliState) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "documents",
		Short: "List uploaded policy documents, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return s.withApp(cmd, func(app *bootstrap.App) error {
				docs, err := app.Documents.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				return s.printJSON(docs)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of documents")
	return cmd
}

func newAskCommand(s *cliState) *cobra.Command {
	var documentID string
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a coverage question against one uploaded policy",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.withApp(cmd, func(app *bootstrap.App) error {
				verdict, err := app.Verdicts.SynthesizeVerdict(cmd.Context(), strings.Join(args, " "), documentID)
				if err != nil {
					return err
				}
				return s.printJSON(verdict)
			})
		},
	}
	cmd.Flags().StringVar(&documentID, "doc", "", "Uploaded document id")
	_ = cmd.MarkFlagRequired("doc")
	return cmd
}

func newExplainCommand(s *cliState) *cobra.Command {
	var documentIDs []string
	cmd := &cobra.Command{
		Use:   "explain <term>",
		Short: "Explain an insurance term, grounded in uploaded wordings when possible",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.withApp(cmd, func(app *bootstrap.App) error {
				resp, err := app.Explainer.ExplainTerm(cmd.Context(), strings.Join(args, " "), documentIDs)
				if err != nil {
					return err
				}
				return s.printJSON(resp)
			})
		},
	}
	cmd.Flags().StringSliceVar(&documentIDs, "doc", nil, "Uploaded document ids to search")
	return cmd
}

func newClaimCommand(s *cliState) *cobra.Command {
	var documentID, diagnosis, treatment string
	cmd := &cobra.Command{
		Use:   "claim",
		Short: "Estimate claim feasibility for a diagnosis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return s.withApp(cmd, func(app *bootstrap.App) error {
				assessment, err := app.Claims.CheckClaim(cmd.Context(), documentID, diagnosis, treatment)
				if err != nil {
					return err
				}
				return s.printJSON(assessment)
			})
		},
	}
	cmd.Flags().StringVar(&documentID, "doc", "", "Uploaded document id")
	cmd.Flags().StringVar(&diagnosis, "diagnosis", "", "Diagnosis or procedure to claim for")
	cmd.Flags().StringVar(&treatment, "treatment", "hospitalization", "Treatment type (hospitalization, surgery, maternity, opd, critical_illness)")
	_ = cmd.MarkFlagRequired("doc")
	_ = cmd.MarkFlagRequired("diagnosis")
	return cmd
}

func newGapsCommand(s *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "gaps <policy-id>",
		Short: "Scan a catalog policy's wording for coverage gaps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.withApp(cmd, func(app *bootstrap.App) error {
				report, err := app.Gaps.Analyze(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return s.printJSON(report)
			})
		},
	}
}

func newDiscoverCommand(s *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "discover <query>",
		Short: "Rank catalog policies for a free-text description of needs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.withApp(cmd, func(app *bootstrap.App) error {
				resp, err := app.Discover.Discover(cmd.Context(), strings.Join(args, " "))
				if err != nil {
					return err
				}
				return s.printJSON(map[string]any{"type": resp.Mode(), "response": resp})
			})
		},
	}
}

func newRankCommand(s *cliState) *cobra.Command {
	var (
		budget, sumInsured float64
		members            int
		needs, conditions  []string
		policyType         string
	)
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Hard-filter and rank catalog policies for an explicit requirement profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := domain.RequirementProfile{
				Needs:                 needs,
				PreexistingConditions: conditions,
				PreferredType:         domain.PolicyType(strings.ToLower(strings.TrimSpace(policyType))),
			}
			if cmd.Flags().Changed("budget") {
				req.BudgetMax = &budget
			}
			if cmd.Flags().Changed("members") {
				req.Members = &members
			}
			if cmd.Flags().Changed("sum-insured") {
				req.SumInsuredMin = &sumInsured
			}
			return s.withApp(cmd, func(app *bootstrap.App) error {
				resp, err := app.Discover.Rank(cmd.Context(), req)
				if err != nil {
					return err
				}
				return s.printJSON(map[string]any{"type": resp.Mode(), "response": resp})
			})
		},
	}
	cmd.Flags().Float64Var(&budget, "budget", 0, "Maximum yearly premium in rupees")
	cmd.Flags().IntVar(&members, "members", 0, "Number of people to cover")
	cmd.Flags().Float64Var(&sumInsured, "sum-insured", 0, "Minimum sum insured in rupees")
	cmd.Flags().StringSliceVar(&needs, "need", nil, "Need tag, repeatable (maternity, opd, mental_health, critical_illness, ...)")
	cmd.Flags().StringSliceVar(&conditions, "condition", nil, "Pre-existing condition, repeatable")
	cmd.Flags().StringVar(&policyType, "type", "", "Preferred policy type")
	return cmd
}

func newCompareCommand(s *cliState) *cobra.Command {
	var xlsxPath string
	cmd := &cobra.Command{
		Use:   "compare <policy-id> <policy-id> [policy-id]",
		Short: "Compare two or three catalog policies side by side",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.withApp(cmd, func(app *bootstrap.App) error {
				comparison, err := app.Compare.Compare(cmd.Context(), args)
				if err != nil {
					return err
				}
				if xlsxPath == "" {
					return s.printJSON(comparison)
				}
				f, err := os.Create(xlsxPath)
				if err != nil {
					return fmt.Errorf("create %s: %w", xlsxPath, err)
				}
				if err := xlsx.WriteComparison(f, comparison); err != nil {
					_ = f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return fmt.Errorf("close %s: %w", xlsxPath, err)
				}
				return s.printJSON(map[string]any{"xlsx": xlsxPath, "policies": len(comparison.Policies)})
			})
		},
	}
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Write the comparison to this spreadsheet instead of stdout")
	return cmd
}

func newChatCommand(s *cliState) *cobra.Command {
	var sessionID, userID string
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Run one advisory turn, or an interactive conversation when no message is given",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.withApp(cmd, func(app *bootstrap.App) error {
				ctx := cmd.Context()
				if sessionID == "" {
					session, err := app.Sessions.CreateSession(ctx, userID, "")
					if err != nil {
						return err
					}
					sessionID = session.ID
				} else if _, err := app.Sessions.EnsureSession(ctx, sessionID); err != nil {
					return err
				}

				send := func(message string) error {
					reply, err := app.Sessions.Send(ctx, sessionID, message)
					if err != nil {
						return err
					}
					return s.printJSON(reply)
				}
				if len(args) > 0 {
					return send(strings.Join(args, " "))
				}

				fmt.Fprintf(cmd.ErrOrStderr(), "session %s (empty line to quit)\n", sessionID)
				scanner := bufio.NewScanner(cmd.InOrStdin())
				for {
					fmt.Fprint(cmd.ErrOrStderr(), "> ")
					if !scanner.Scan() {
						return scanner.Err()
					}
					line := strings.TrimSpace(scanner.Text())
					if line == "" {
						return nil
					}
					if err := send(line); err != nil {
						return err
					}
				}
			})
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Session id, created when absent")
	cmd.Flags().StringVar(&userID, "user", "", "User id recorded on a new session")
	return cmd
}

func newSessionsCommand(s *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List, show or delete stored chat sessions",
	}

	var userID string
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List sessions, most recently active first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return s.withApp(cmd, func(app *bootstrap.App) error {
				sessions, err := app.Sessions.ListSessions(cmd.Context(), userID, limit)
				if err != nil {
					return err
				}
				return s.printJSON(sessions)
			})
		},
	}
	list.Flags().StringVar(&userID, "user", "", "Only sessions of this user")
	list.Flags().IntVar(&limit, "limit", 20, "Maximum number of sessions")

	show := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print a session with its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.withApp(cmd, func(app *bootstrap.App) error {
				history, err := app.Sessions.History(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return s.printJSON(history)
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session and its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.withApp(cmd, func(app *bootstrap.App) error {
				if err := app.Sessions.DeleteSession(cmd.Context(), args[0]); err != nil {
					return err
				}
				return s.printJSON(map[string]any{"deleted": args[0]})
			})
		},
	}

	cmd.AddCommand(list, show, del)
	return cmd
}

func newConditionsCommand(s *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conditions",
		Short: "Extract medical conditions from a report and match them against catalog exclusions",
	}

	var file string
	extract := &cobra.Command{
		Use:   "extract [report text]",
		Short: "Extract conditions from report text or a report PDF",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (file == "") == (len(args) == 0) {
				return errors.New("pass either report text or --file")
			}
			return s.withApp(cmd, func(app *bootstrap.App) error {
				var report domain.ConditionReport
				var err error
				if file != "" {
					var raw []byte
					if raw, err = os.ReadFile(file); err != nil {
						return fmt.Errorf("read %s: %w", file, err)
					}
					report, err = app.Conditions.ExtractFromPDF(cmd.Context(), raw)
				} else {
					report, err = app.Conditions.ExtractFromText(cmd.Context(), strings.Join(args, " "))
				}
				if err != nil {
					return err
				}
				return s.printJSON(report)
			})
		},
	}
	extract.Flags().StringVar(&file, "file", "", "Medical report PDF")

	match := &cobra.Command{
		Use:   "match <condition> [condition...]",
		Short: "Rank catalog policies by how few exclusions the conditions hit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conditions := make([]domain.MedicalCondition, 0, len(args))
			for _, name := range args {
				conditions = append(conditions, domain.MedicalCondition{
					Name:     name,
					Kind:     domain.ConditionUnknown,
					Severity: domain.ConditionSeverityUnknown,
				})
			}
			return s.withApp(cmd, func(app *bootstrap.App) error {
				result, err := app.Conditions.Match(cmd.Context(), conditions)
				if err != nil {
					return err
				}
				return s.printJSON(result)
			})
		},
	}

	cmd.AddCommand(extract, match)
	return cmd
}
