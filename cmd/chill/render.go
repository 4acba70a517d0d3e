package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/meetme/progression-engine/internal/application/engine"
	"github.com/meetme/progression-engine/internal/domain/challenge"
	"github.com/meetme/progression-engine/internal/domain/friend"
	"github.com/meetme/progression-engine/internal/domain/shared"
	"github.com/meetme/progression-engine/internal/domain/weekly"
	"github.com/meetme/progression-engine/internal/infrastructure/persistence/postgres"
)

func printStatus(w io.Writer, snap engine.Snapshot, top *friend.Friend, now time.Time) {
	p := snap.Profile
	_, _ = fmt.Fprintf(w, "%s, level %d (%s)\n", p.Name, snap.Level, snap.LevelTitle)
	_, _ = fmt.Fprintf(w, "points: %d (%d to next level)\n", snap.TotalPoints, shared.Points(snap.TotalPoints).ToNextLevel())
	_, _ = fmt.Fprintf(w, "sessions: %d, chill minutes: %d, friends: %d\n", p.TotalSessions, p.TotalChillMinutes, len(snap.Friends))
	if snap.PrivacyMode {
		_, _ = fmt.Fprintln(w, "privacy mode: on")
	}

	if s := snap.ActiveSession; s != nil {
		kind := "session"
		if s.IsPrivate {
			kind = "private session"
		}
		_, _ = fmt.Fprintf(w, "active %s %s with %s: %d min ticked, %d points, running %s\n",
			kind, s.ID, joinNames(s.ParticipantNames), s.DurationMinutes, s.PointsEarned,
			s.Elapsed(now).Truncate(time.Second))
	}

	if top != nil {
		_, _ = fmt.Fprintf(w, "closest friend: %s (%d min, %s)\n", top.Name, top.ChillMinutes, top.BondTitle())
	}
}

func printFriends(w io.Writer, friends []*friend.Friend) {
	if len(friends) == 0 {
		_, _ = fmt.Fprintln(w, "no friends yet")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tUSERNAME\tMINUTES\tBOND\tSEEN")
	for _, f := range friends {
		seen := f.LastSeen
		if f.IsOnline {
			seen = "online"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d %s\t%s\n",
			f.ID, f.Name, f.Username, f.ChillMinutes, f.BondLevel().Int(), f.BondTitle(), seen)
	}
	_ = tw.Flush()
}

func printChallenges(w io.Writer, challenges []*challenge.Challenge) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, c := range challenges {
		mark := " "
		if c.IsCompleted() {
			mark = "x"
		}
		_, _ = fmt.Fprintf(tw, "[%s]\t%s\t%d/%d\t%.0f%%\t%s\n",
			mark, c.Title, c.CurrentProgress, c.TargetValue, c.ProgressPercentage(), c.Description)
	}
	_ = tw.Flush()
}

func printWeek(w io.Writer, stats *weekly.Stats) {
	_, _ = fmt.Fprintf(w, "week of %s\n", stats.WeekStart.Format("Mon 2 Jan 2006"))
	_, _ = fmt.Fprintf(w, "sessions: %d, minutes: %d, points: %d\n", stats.SessionsCount, stats.TotalMinutes, stats.PointsEarned)
	_, _ = fmt.Fprintf(w, "friends met: %d %v\n", stats.UniqueFriendsCount(), stats.FriendIDs())
}

func printArchive(w io.Writer, weeks []postgres.ArchivedWeek) {
	if len(weeks) == 0 {
		_, _ = fmt.Fprintln(w, "no archived weeks")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "WEEK\tSESSIONS\tMINUTES\tFRIENDS\tPOINTS")
	for _, wk := range weeks {
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n",
			wk.WeekStart.Format(time.DateOnly), wk.SessionsCount, wk.TotalMinutes, len(wk.UniqueFriends), wk.PointsEarned)
	}
	_ = tw.Flush()
}

// joinNames renders "A", "A & B" or "A, B & C".
func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return "nobody"
	case 1:
		return names[0]
	}
	return strings.Join(names[:len(names)-1], ", ") + " & " + names[len(names)-1]
}
