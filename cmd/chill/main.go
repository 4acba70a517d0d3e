// Command chill drives the progression engine from the shell: one command
// per engine operation, state kept in the configured store.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/meetme/progression-engine/config"
	"github.com/meetme/progression-engine/internal/application/engine"
	"github.com/meetme/progression-engine/internal/domain/friend"
	"github.com/meetme/progression-engine/internal/domain/progression"
	"github.com/meetme/progression-engine/internal/domain/shared"
	"github.com/meetme/progression-engine/internal/infrastructure/seed"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd(openFromEnv).ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(open appOpener) *cobra.Command {
	root := &cobra.Command{
		Use:           "chill",
		Short:         "Chill progression engine",
		Long:          "Chill tracks time spent with friends: sessions, points, levels, weekly stats and challenges.\nConfiguration is read from CHILL_* environment variables.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newStatusCmd(open))
	root.AddCommand(newFriendsCmd(open))
	root.AddCommand(newFriendCmd(open))
	root.AddCommand(newSeedCmd(open))
	root.AddCommand(newSessionCmd(open))
	root.AddCommand(newAwardCmd(open))
	root.AddCommand(newChallengesCmd(open))
	root.AddCommand(newWeekCmd(open))
	root.AddCommand(newPrivacyCmd(open))
	root.AddCommand(newResetCmd(open))
	root.AddCommand(newMigrateCmd(config.Load))
	return root
}

// withApp opens the app, runs fn and closes the app. A persistence warning
// from fn is reported on stderr; the operation itself took effect.
func withApp(cmd *cobra.Command, open appOpener, fn func(ctx context.Context, a *app) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	err = fn(ctx, a)
	if shared.IsPersistenceWarning(err) {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
		return nil
	}
	return err
}

func newStatusCmd(open appOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show profile, points and the active session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, open, func(ctx context.Context, a *app) error {
				snap, err := a.engine.Snapshot(ctx)
				if err != nil {
					return err
				}
				top, _ := a.engine.TopFriend()
				printStatus(cmd.OutOrStdout(), snap, top, a.clock.Now())
				return nil
			})
		},
	}
}

func newFriendsCmd(open appOpener) *cobra.Command {
	var ranking bool
	cmd := &cobra.Command{
		Use:   "friends",
		Short: "List friends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, open, func(_ context.Context, a *app) error {
				friends := a.engine.Friends()
				if ranking {
					friends = a.engine.FriendsRanking()
				}
				printFriends(cmd.OutOrStdout(), friends)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&ranking, "ranking", false, "order by shared chill minutes")
	return cmd
}

func newFriendCmd(open appOpener) *cobra.Command {
	friendCmd := &cobra.Command{Use: "friend", Short: "Manage a single friend"}

	var params friend.NewFriendParams
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a friend to the roster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params.Name = args[0]
			return withApp(cmd, open, func(ctx context.Context, a *app) error {
				f, err := a.engine.AddFriend(ctx, params)
				if f != nil {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "added %s (%s)\n", f.Name, f.ID)
				}
				return err
			})
		},
	}
	add.Flags().StringVar(&params.ID, "id", "", "friend id (generated when empty)")
	add.Flags().StringVar(&params.Username, "username", "", "handle, with or without @")
	add.Flags().IntVar(&params.ChillMinutes, "minutes", 0, "shared chill minutes so far")
	add.Flags().IntVar(&params.MutualFriends, "mutual", 0, "mutual friends")
	add.Flags().BoolVar(&params.IsOnline, "online", false, "friend is online")

	friendCmd.AddCommand(add)
	return friendCmd
}

func newSeedCmd(open appOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <roster.yaml>",
		Short: "Import friends from a YAML roster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(ctx context.Context, a *app) error {
				params, err := seed.LoadRosterFile(args[0], a.clock.Now())
				if err != nil {
					return err
				}
				res, err := seed.Import(ctx, a.engine, params)
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "imported %d friends, skipped %d existing\n", res.Added, res.Skipped)
				return err
			})
		},
	}
}

func newSessionCmd(open appOpener) *cobra.Command {
	sessionCmd := &cobra.Command{Use: "session", Short: "Run a chill session"}

	var private bool
	start := &cobra.Command{
		Use:   "start <friend-id>...",
		Short: "Start a session with friends",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(ctx context.Context, a *app) error {
				id, err := a.engine.StartSession(ctx, args, private)
				if s, ok := a.engine.ActiveSession(); ok && id != "" {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "session %s started with %s\n", id, joinNames(s.ParticipantNames))
				}
				return err
			})
		},
	}
	start.Flags().BoolVar(&private, "private", false, "private session: nothing is recorded")

	var ticks int
	tick := &cobra.Command{
		Use:   "tick",
		Short: "Record elapsed minutes of the active session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if ticks < 1 {
				return fmt.Errorf("--n must be at least 1")
			}
			return withApp(cmd, open, func(ctx context.Context, a *app) error {
				var res engine.TickResult
				var warning error
				for i := 0; i < ticks; i++ {
					r, err := a.engine.RecordTick(ctx)
					if err != nil && !shared.IsPersistenceWarning(err) {
						return err
					}
					if warning == nil {
						warning = err
					}
					res = r
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d min, %d points so far\n", res.DurationMinutes, res.PointsEarned)
				return warning
			})
		},
	}
	tick.Flags().IntVarP(&ticks, "n", "n", 1, "number of minutes to record")

	var duration, points int
	var accrued bool
	end := &cobra.Command{
		Use:   "end",
		Short: "End the active session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			explicit := cmd.Flags().Changed("duration") || cmd.Flags().Changed("points")
			if explicit && accrued {
				return fmt.Errorf("--accrued cannot be combined with --duration or --points")
			}
			return withApp(cmd, open, func(ctx context.Context, a *app) error {
				var res engine.EndResult
				var err error
				if explicit {
					res, err = a.engine.EndSession(ctx, duration, points)
				} else {
					res, err = a.engine.EndAccruedSession(ctx)
				}
				if err != nil && !shared.IsPersistenceWarning(err) {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "session ended: %d min, %d points earned, %d awarded\n",
					res.DurationMinutes, res.PointsEarned, res.PointsAwarded)
				return err
			})
		},
	}
	end.Flags().IntVar(&duration, "duration", 0, "final duration in minutes")
	end.Flags().IntVar(&points, "points", 0, "final points")
	end.Flags().BoolVar(&accrued, "accrued", false, "use the ticked figures (default when no figures are given)")

	sessionCmd.AddCommand(start, tick, end)
	return sessionCmd
}

func newAwardCmd(open appOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "award <points>",
		Short: "Award points directly",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid points %q: %w", args[0], err)
			}
			return withApp(cmd, open, func(ctx context.Context, a *app) error {
				res, err := a.engine.AwardPoints(ctx, amount)
				if err != nil && !shared.IsPersistenceWarning(err) {
					return err
				}
				out := cmd.OutOrStdout()
				if !res.Applied {
					_, _ = fmt.Fprintln(out, "privacy mode is on, nothing awarded")
					return err
				}
				_, _ = fmt.Fprintf(out, "%d -> %d points\n", res.OldTotal, res.NewTotal)
				if res.NewLevel > res.PreviousLevel {
					_, _ = fmt.Fprintf(out, "level up: %d -> %d\n", res.PreviousLevel, res.NewLevel)
				}
				for _, m := range res.Milestones {
					_, _ = fmt.Fprintf(out, "milestone: %s (%s)\n", m, progression.AchievementFor(m).Title)
				}
				return err
			})
		},
	}
}

func newChallengesCmd(open appOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "challenges",
		Short: "Show weekly challenge progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, open, func(ctx context.Context, a *app) error {
				challenges, err := a.engine.Challenges(ctx)
				if err != nil && !shared.IsPersistenceWarning(err) {
					return err
				}
				printChallenges(cmd.OutOrStdout(), challenges)
				return err
			})
		},
	}
}

func newWeekCmd(open appOpener) *cobra.Command {
	var history int
	cmd := &cobra.Command{
		Use:   "week",
		Short: "Roll the week over if needed and show its stats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, open, func(ctx context.Context, a *app) error {
				rolled, err := a.engine.EnsureCurrentWeek(ctx)
				if err != nil && !shared.IsPersistenceWarning(err) {
					return err
				}
				warning := err

				stats, err := a.engine.WeeklyStats(ctx)
				if err != nil && !shared.IsPersistenceWarning(err) {
					return err
				}
				out := cmd.OutOrStdout()
				if rolled {
					_, _ = fmt.Fprintln(out, "started a new week")
				}
				printWeek(out, stats)

				if history > 0 {
					if a.archive == nil {
						return errors.New("week history needs the postgres backend")
					}
					weeks, err := a.archive.Recent(ctx, history)
					if err != nil {
						return err
					}
					printArchive(out, weeks)
				}
				return warning
			})
		},
	}
	cmd.Flags().IntVar(&history, "history", 0, "also list this many archived weeks (postgres only)")
	return cmd
}

func newPrivacyCmd(open appOpener) *cobra.Command {
	return &cobra.Command{
		Use:       "privacy on|off",
		Short:     "Toggle global privacy mode",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled := args[0] == "on"
			return withApp(cmd, open, func(ctx context.Context, a *app) error {
				err := a.engine.SetPrivacyMode(ctx, enabled)
				if err == nil || shared.IsPersistenceWarning(err) {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "privacy mode %s\n", args[0])
				}
				return err
			})
		},
	}
}

func newResetCmd(open appOpener) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Discard all progression state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("reset discards all progression state; pass --yes to confirm")
			}
			return withApp(cmd, open, func(ctx context.Context, a *app) error {
				if err := a.engine.Reset(ctx); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "progression state reset to defaults")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm")
	return cmd
}
