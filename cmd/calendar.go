package cmd

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/hr-screener/internal/calendar"
	"github.com/spigell/hr-screener/internal/logger"
)

var calendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Manage Google Calendar access",
}

var calendarAuthCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize hr-screener to create calendar events",
	Run: func(cmd *cobra.Command, _ []string) {
		calendarAuth(cmd)
	},
}

var calendarLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored calendar token",
	Run: func(cmd *cobra.Command, _ []string) {
		calendarLogout(cmd)
	},
}

var calendarEventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List upcoming calendar events",
	Run: func(cmd *cobra.Command, _ []string) {
		calendarEvents(cmd)
	},
}

func init() {
	rootCmd.AddCommand(calendarCmd)
	calendarCmd.AddCommand(calendarAuthCmd, calendarEventsCmd, calendarLogoutCmd)

	calendarAuthCmd.Flags().Bool("refresh", false, "refresh the stored token instead of asking for consent again")

	calendarEventsCmd.Flags().IntP("max", "m", calendar.DefaultUpcoming, "maximum number of events to list")
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func calendarAuth(cmd *cobra.Command) {
	ctx := commandContext(cmd)

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	provider, err := newCredentialProvider(&config.Calendar, logger)
	if err != nil {
		logger.Fatal("loading calendar credentials", zap.Error(err))
	}

	if refresh, _ := cmd.Flags().GetBool("refresh"); refresh {
		token, err := provider.Refresh(ctx)
		if err != nil {
			logger.Fatal("refreshing calendar token", zap.Error(err), zap.String("hint", "run `hr-screener calendar auth` without --refresh"))
		}
		logger.Info("calendar token refreshed", zap.Time("expiry", token.Expiry))
		return
	}

	state := make([]byte, 16)
	if _, err := rand.Read(state); err != nil {
		logger.Fatal("generating oauth state", zap.Error(err))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Open this link in your browser and grant access:\n\n%s\n\n", provider.AuthCodeURL(hex.EncodeToString(state)))

	code, err := (&promptui.Prompt{Label: "Authorization code", Mask: '*'}).Run()
	if err != nil {
		logger.Fatal("reading authorization code", zap.Error(err))
	}

	if _, err := provider.Exchange(ctx, code); err != nil {
		logger.Fatal("authorizing calendar access", zap.Error(err))
	}

	logger.Info("calendar access granted", zap.String("token_store", config.Calendar.TokenStore))
}

func calendarEvents(cmd *cobra.Command) {
	ctx := commandContext(cmd)

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	scheduler, err := newScheduler(&config.Calendar, logger)
	if err != nil {
		logger.Fatal("preparing the calendar", zap.Error(err))
	}

	limit, err := cmd.Flags().GetInt("max")
	if err != nil {
		logger.Fatal("reading --max", zap.Error(err))
	}

	events, err := scheduler.Upcoming(ctx, limit)
	if err != nil {
		logger.Fatal("listing events", zap.Error(err), zap.String("hint", "run `hr-screener calendar auth` if the token expired"))
	}

	if len(events) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no upcoming events")
		return
	}

	for _, ev := range events {
		line := fmt.Sprintf("%s  %s", ev.Start.Format(calendar.TimeLayout), ev.Summary)
		if ev.MeetingLink != "" {
			line += "  " + ev.MeetingLink
		}
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
}

func calendarLogout(cmd *cobra.Command) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	store, err := newTokenStore(&config.Calendar)
	if err != nil {
		logger.Fatal("preparing the token store", zap.Error(err))
	}

	deleter, ok := store.(interface{ Delete() error })
	if !ok {
		logger.Fatal("token store does not support removal", zap.String("token_store", config.Calendar.TokenStore))
	}

	if err := deleter.Delete(); err != nil {
		logger.Fatal("removing calendar token", zap.Error(err))
	}

	fmt.Fprintln(cmd.OutOrStdout(), "calendar token removed")
}
