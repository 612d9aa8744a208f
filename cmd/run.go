package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/hr-screener/internal/cache"
	"github.com/spigell/hr-screener/internal/calendar"
	"github.com/spigell/hr-screener/internal/decision"
	"github.com/spigell/hr-screener/internal/logger"
	"github.com/spigell/hr-screener/internal/pipeline"
	"github.com/spigell/hr-screener/internal/report"
	"github.com/spigell/hr-screener/internal/screening"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Screen one resume against a job posting",
	PreRun: func(cmd *cobra.Command, _ []string) {
		bindFlags(cmd, "resume", "job-url", "job-title")
	},
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("resume", "r", defaultResume, "resume file (pdf, docx, txt)")
	runCmd.Flags().StringP("job-url", "u", "", "job posting url. The built-in description is used when empty")
	runCmd.Flags().String("job-title", "", "job title used in the interview invite")
	runCmd.Flags().StringP("email", "e", "", "candidate email, schedules an interview together with --time")
	runCmd.Flags().StringP("time", "t", "", "preferred interview time, e.g. \"2025-08-12 03:00 PM\"")
	runCmd.Flags().String("export", "", "write the result to this xlsx file")
}

func run(cmd *cobra.Command) {
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

	logger.Info("starting the hr-screener", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(redacted(config), "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	email := strings.TrimSpace(cmd.Flag("email").Value.String())
	preferred := strings.TrimSpace(cmd.Flag("time").Value.String())

	var scheduler *calendar.Scheduler
	if email != "" && preferred != "" {
		scheduler, err = newScheduler(&config.Calendar, logger)
		if err != nil {
			logger.Fatal("preparing the calendar",
				zap.Error(err),
				zap.String("hint", "run `hr-screener calendar auth` first"),
			)
		}
	} else if email != "" || preferred != "" {
		logger.Warn("both --email and --time are needed to schedule an interview, skipping scheduling")
	}

	p, err := newPipeline(ctx, config, scheduler, logger)
	if err != nil {
		logger.Fatal("preparing the pipeline", zap.Error(err))
	}

	req := pipeline.Request{
		ResumePath:     config.Resume,
		JobURL:         config.JobURL,
		PreferredTime:  preferred,
		CandidateEmail: email,
		JobTitle:       config.JobTitle,
	}

	for _, status := range pipeline.Describe(p.Stages(req)) {
		logger.Debug("pipeline stage", zap.String("name", status.Name), zap.Any("details", status.Details))
	}

	out, runErr := p.Run(ctx, req)
	printOutput(cmd.OutOrStdout(), out)

	if path := strings.TrimSpace(cmd.Flag("export").Value.String()); path != "" && out != nil && out.Decision != "" {
		entry := screening.NewEntry(config.Resume, out, time.Now())
		written, err := report.ExportExcel([]cache.Entry{*entry}, config.JobURL, path)
		if err != nil {
			logger.Warn("exporting the result", zap.Error(err))
		} else {
			logger.Info("result exported", zap.String("filename", written))
		}
	}

	if runErr != nil {
		var stageErr *pipeline.StageError
		if errors.As(runErr, &stageErr) {
			logger.Fatal("screening failed",
				zap.String("stage", stageErr.Stage),
				zap.String("kind", string(stageErr.Kind)),
				zap.Error(stageErr.Err),
			)
		}
		logger.Fatal("screening failed", zap.Error(runErr))
	}
}

func printOutput(w io.Writer, out *pipeline.Output) {
	if out == nil || out.Decision == "" {
		return
	}

	fmt.Fprintf(w, "Decision:   %s\n", out.Decision.Label())
	if out.Evaluation != nil {
		fmt.Fprintf(w, "Score:      %d\n", out.Evaluation.Score)
	}
	if out.Similarity != nil {
		fmt.Fprintf(w, "Similarity: %.2f\n", *out.Similarity)
	}
	if out.Document != nil {
		fmt.Fprintf(w, "Email:      %s\n", out.Document.Email)
		if !out.Document.HasEmail() && out.Decision == decision.Proceed && out.Scheduling == nil {
			fmt.Fprintln(w, "            no address in the resume, pass --email to schedule an interview")
		}
	}

	summary := out.Reason
	if out.Evaluation != nil {
		summary = out.Evaluation.Summary
	}
	fmt.Fprintf(w, "Summary:    %s\n", summary)

	if out.Scheduling != nil {
		fmt.Fprintf(w, "Interview:  %s\n", out.Scheduling.Message)
		if out.Scheduling.MeetingLink != "" {
			fmt.Fprintf(w, "Meet link:  %s\n", out.Scheduling.MeetingLink)
		}
	}
}

// redacted hides secrets before the config is logged.
func redacted(config *Config) Config {
	c := *config
	if c.AI.Gemini.APIKey != "" {
		c.AI.Gemini.APIKey = "***"
	}
	return c
}
