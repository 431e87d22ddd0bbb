package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/mutaician/p2p-coin-flip/internal/archive"
	"github.com/mutaician/p2p-coin-flip/internal/domain"
)

func newSessionsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List sessions waiting for a second player",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.connect()
			if err != nil {
				return err
			}
			defer s.Shutdown()

			open, err := s.Discovery().ListOpen(cmd.Context())
			if err != nil {
				return err
			}

			return renderOpenSessions(cmd.OutOrStdout(), open, time.Now())
		},
	}
}

func newWinnersCommand(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "winners",
		Short: "Show the most recent winners",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.connect()
			if err != nil {
				return err
			}
			defer s.Shutdown()

			winners, err := s.Participant().RecentWinners(cmd.Context(), limit)
			if err != nil {
				return err
			}

			return renderWinners(cmd.OutOrStdout(), winners)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of winners to show")
	return cmd
}

func newSweepCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete sessions past the discovery window",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.connect()
			if err != nil {
				return err
			}
			defer s.Shutdown()

			n, err := s.Discovery().Sweep(cmd.Context())
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired sessions\n", n)
			return err
		},
	}
}

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	var (
		name  string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show archived sessions from Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.connect()
			if err != nil {
				return err
			}
			defer s.Shutdown()

			if s.Archive() == nil {
				return errors.New("history needs postgres to be configured")
			}

			entries, err := s.Archive().History(cmd.Context(), archive.HistoryRequest{Name: name, Limit: limit})
			if err != nil {
				return err
			}

			return renderHistory(cmd.OutOrStdout(), entries)
		},
	}

	cmd.Flags().StringVar(&name, "player", "", "only sessions this player took part in")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of sessions to show")
	return cmd
}

func renderOpenSessions(w io.Writer, open []domain.OpenSession, now time.Time) error {
	if len(open) == 0 {
		_, err := fmt.Fprintln(w, "no open sessions")
		return err
	}

	data := pterm.TableData{{"ID", "Host", "Bet", "Age"}}
	for _, o := range open {
		data = append(data, []string{
			o.ID,
			o.HostName,
			strconv.FormatInt(o.Bet, 10),
			now.Sub(o.CreatedAt).Truncate(time.Second).String(),
		})
	}

	return pterm.DefaultTable.WithHasHeader().WithWriter(w).WithData(data).Render()
}

func renderWinners(w io.Writer, winners []domain.WinnerEntry) error {
	if len(winners) == 0 {
		_, err := fmt.Fprintln(w, "no winners yet")
		return err
	}

	data := pterm.TableData{{"Winner", "Pot", "Side", "Session", "Completed"}}
	for _, e := range winners {
		data = append(data, []string{
			e.WinnerName,
			strconv.FormatInt(e.TotalPot, 10),
			string(e.WinnerChoice),
			e.SessionID,
			e.CompletedAt.Format(time.DateTime),
		})
	}

	return pterm.DefaultTable.WithHasHeader().WithWriter(w).WithData(data).Render()
}

func renderHistory(w io.Writer, entries []archive.Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "no archived sessions")
		return err
	}

	data := pterm.TableData{{"Session", "Player 1", "Player 2", "Bet", "Pot", "Result", "Winner", "Completed"}}
	for _, e := range entries {
		data = append(data, []string{
			e.SessionID,
			e.Player1,
			e.Player2,
			e.Bet.String(),
			e.TotalPot.String(),
			string(e.Result),
			e.WinnerName,
			e.CompletedAt.Format(time.DateTime),
		})
	}

	return pterm.DefaultTable.WithHasHeader().WithWriter(w).WithData(data).Render()
}
