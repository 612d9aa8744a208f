package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/hr-screener/internal/cache"
	"github.com/spigell/hr-screener/internal/calendar"
	"github.com/spigell/hr-screener/internal/decision"
	"github.com/spigell/hr-screener/internal/extract"
	"github.com/spigell/hr-screener/internal/logger"
	"github.com/spigell/hr-screener/internal/report"
	"github.com/spigell/hr-screener/internal/screening"
)

const (
	PromptScreen   = "Screen a resume"
	PromptResults  = "Show results"
	PromptSchedule = "Schedule an interview"
	PromptExport   = "Export results"
	PromptExit     = "Exit"
	PromptBack     = "back"

	defaultExportFile = "screening_results.xlsx"
)

var errExit = errors.New("exit requested")

var sessionPrompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptScreen, PromptResults, PromptSchedule, PromptExport, PromptExit},
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Screen resumes interactively against one job posting",
	PreRun: func(cmd *cobra.Command, _ []string) {
		bindFlags(cmd, "job-url", "job-title")
	},
	Run: func(cmd *cobra.Command, _ []string) {
		session(cmd)
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)

	sessionCmd.Flags().StringP("job-url", "u", "", "job posting url. The built-in description is used when empty")
	sessionCmd.Flags().String("job-title", "", "job title used in interview invites")
}

func session(cmd *cobra.Command) {
	ctx := commandContext(cmd)

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	// scheduling is optional in a session, screening works without calendar access
	scheduler, err := newScheduler(&config.Calendar, logger)
	if err != nil {
		logger.Warn("interview scheduling is unavailable", zap.Error(err))
	}

	p, err := newPipeline(ctx, config, scheduler, logger)
	if err != nil {
		logger.Fatal("preparing the pipeline", zap.Error(err))
	}

	store, closeStore, err := newStore(ctx, &config.Cache)
	if err != nil {
		logger.Fatal("opening the result cache", zap.Error(err))
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("closing the result cache", zap.Error(err))
		}
	}()

	s, err := screening.New(p, store, screening.Config{
		JobURL:     config.JobURL,
		JobTitle:   config.JobTitle,
		UploadsDir: config.UploadsDir,
	}, logger)
	if err != nil {
		logger.Fatal("starting the session", zap.Error(err))
	}

	logger.Info("session started", zap.String("job_url", config.JobURL))

	for {
		_, action, err := sessionPrompt.Run()
		if err != nil {
			logger.Info("exiting", zap.Error(err))
			return
		}

		if err := handleSessionAction(ctx, action, s, logger); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			// a failed step never ends the session
			logger.Warn("action failed", zap.String("action", action), zap.Error(err))
		}
	}
}

func handleSessionAction(ctx context.Context, action string, s *screening.Session, logger *zap.Logger) error {
	switch action {
	case PromptScreen:
		return screenResume(ctx, s)
	case PromptResults:
		printResults(s.Results())
		return nil
	case PromptSchedule:
		return scheduleInterview(ctx, s, logger)
	case PromptExport:
		return exportResults(s, logger)
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func screenResume(ctx context.Context, s *screening.Session) error {
	pathPrompt := promptui.Prompt{
		Label: "Resume file",
		Validate: func(in string) error {
			info, err := os.Stat(strings.TrimSpace(in))
			if err != nil {
				return err
			}
			if info.IsDir() {
				return errors.New("a file is required")
			}
			return nil
		},
	}

	path, err := pathPrompt.Run()
	if err != nil {
		return err
	}
	path = strings.TrimSpace(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read resume: %w", err)
	}

	res, err := s.Screen(ctx, filepath.Base(path), data)
	if err != nil {
		return err
	}

	printResults([]screening.Result{*res})
	return nil
}

func printResults(results []screening.Result) {
	if len(results) == 0 {
		fmt.Println("no resumes screened yet")
		return
	}

	for i, r := range results {
		similarity := "n/a"
		if r.Entry.Similarity != nil {
			similarity = fmt.Sprintf("%.2f", *r.Entry.Similarity)
		}
		cached := ""
		if r.Cached {
			cached = " (cached)"
		}
		fmt.Printf("%d. %s%s\n   decision: %s, score: %d, similarity: %s, email: %s\n   %s\n",
			i+1, filepath.Base(r.Entry.FilePath), cached,
			r.Entry.Decision.Label(), r.Entry.Score, similarity, r.Entry.Email, r.Entry.Summary)
	}
}

func scheduleInterview(ctx context.Context, s *screening.Session, logger *zap.Logger) error {
	candidates := make([]screening.Result, 0)
	items := make([]string, 0)
	for _, r := range s.Results() {
		if r.Entry.Decision != decision.Proceed {
			continue
		}
		candidates = append(candidates, r)
		items = append(items, fmt.Sprintf("%s / %s / score %d", filepath.Base(r.Entry.FilePath), r.Entry.Email, r.Entry.Score))
	}

	if len(candidates) == 0 {
		fmt.Println("no candidates to schedule, only Proceed results can be scheduled")
		return nil
	}

	candidatePrompt := promptui.Select{
		Label: "Choose a candidate and press ENTER",
		Items: append(items, PromptBack),
	}

	idx, selected, err := candidatePrompt.Run()
	if err != nil {
		return err
	}
	if selected == PromptBack {
		return nil
	}
	chosen := candidates[idx].Entry

	defaultEmail := ""
	if chosen.Email != extract.EmailNotFound {
		defaultEmail = chosen.Email
	}

	email, err := (&promptui.Prompt{Label: "Candidate email", Default: defaultEmail, AllowEdit: true}).Run()
	if err != nil {
		return err
	}

	preferred, err := (&promptui.Prompt{Label: "Preferred time (" + calendar.TimeLayout + ")"}).Run()
	if err != nil {
		return err
	}

	out, err := s.Schedule(ctx, chosen.FilePath, email, preferred)
	if out != nil && out.Scheduling != nil {
		fmt.Println(out.Scheduling.Message)
		if out.Scheduling.MeetingLink != "" {
			fmt.Println("Meet link:", out.Scheduling.MeetingLink)
		}
	}
	if err != nil {
		return err
	}

	if out.Decision != decision.Proceed {
		logger.Warn("candidate was rejected on re-evaluation, no interview booked",
			zap.String("file", chosen.FilePath),
		)
	}
	return nil
}

func exportResults(s *screening.Session, logger *zap.Logger) error {
	results := s.Results()
	entries := make([]cache.Entry, 0, len(results))
	for _, r := range results {
		entries = append(entries, *r.Entry)
	}

	path, err := (&promptui.Prompt{Label: "Export to", Default: defaultExportFile, AllowEdit: true}).Run()
	if err != nil {
		return err
	}

	written, err := report.ExportExcel(entries, s.JobURL(), strings.TrimSpace(path))
	if err != nil {
		return err
	}

	logger.Info("results exported", zap.String("filename", written), zap.Int("count", len(entries)))
	return nil
}
