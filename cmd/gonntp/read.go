package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/datallboy/gonntp/internal/domain"
	"github.com/datallboy/gonntp/internal/nntp"
	"github.com/datallboy/gonntp/internal/provider"
)

var capabilitiesCmd = &cobra.Command{
	Use:   "capabilities",
	Short: "List what the first available provider advertises",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		return appCtx.NNTP.WithSession(cmd.Context(), func(s *provider.Session) error {
			fmt.Fprintf(out, "%s: %s\n", s.Provider(), s.Greeting().StatusLineString())
			caps := s.Capabilities()
			for _, label := range caps.Labels() {
				fmt.Fprintln(out, strings.TrimSpace(label+" "+strings.Join(caps[label], " ")))
			}
			return nil
		})
	},
}

var groupCmd = &cobra.Command{
	Use:   "group <name>",
	Short: "Select a newsgroup and print its article range",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return appCtx.NNTP.WithSession(cmd.Context(), func(s *provider.Session) error {
			g, err := s.SelectGroup(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d articles (%d-%d) on %s\n", g.Name, g.Number, g.Low, g.High, s.Provider())
			return nil
		})
	},
}

var articleRaw bool

var articleCmd = &cobra.Command{
	Use:   "article <message-id>",
	Short: "Fetch an article and print it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appCtx.NNTP.FetchArticle(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		printHeaders(cmd, a.Headers)
		fmt.Fprintln(out)

		if articleRaw {
			for line := range a.Unterminated() {
				out.Write(line)
				fmt.Fprintln(out)
			}
			return nil
		}

		text, err := a.ToText()
		if err != nil {
			appCtx.Logger.Warn("%s: %v, falling back to lossy conversion", a.MessageID, err)
			text = a.ToTextLossy()
		}
		for _, line := range text.Body {
			fmt.Fprintln(out, line)
		}
		return nil
	},
}

var headCmd = &cobra.Command{
	Use:   "head <message-id>",
	Short: "Fetch and print article headers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := appCtx.NNTP.FetchHead(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printHeaders(cmd, h.Headers)
		return nil
	},
}

var statGroup string

var statCmd = &cobra.Command{
	Use:   "stat <message-id | number>",
	Short: "Check whether an article exists",
	Long:  "Check whether an article exists. Article numbers require --group.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sel := nntp.ByMessageID(args[0])
		if n, err := strconv.ParseInt(args[0], 10, 64); err == nil {
			if statGroup == "" {
				return fmt.Errorf("article number %d needs --group", n)
			}
			sel = nntp.ByNumber(n)
		} else if !strings.HasPrefix(args[0], "<") {
			sel = nntp.ByMessageID("<" + args[0] + ">")
		}

		return appCtx.NNTP.WithSession(cmd.Context(), func(s *provider.Session) error {
			if statGroup != "" {
				if _, err := s.SelectGroup(statGroup); err != nil {
					return err
				}
			}
			st, err := s.Stat(sel)
			if err != nil {
				return err
			}
			if st == nil {
				return fmt.Errorf("%s on %s: %w", args[0], s.Provider(), domain.ErrArticleNotFound)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d %s\n", st.Number, st.MessageID)
			return nil
		})
	},
}

func printHeaders(cmd *cobra.Command, h nntp.Headers) {
	out := cmd.OutOrStdout()
	for _, name := range h.Names() {
		for _, v := range h.Values(name) {
			fmt.Fprintf(out, "%s: %s\n", name, v)
		}
	}
}

func init() {
	articleCmd.Flags().BoolVar(&articleRaw, "raw", false, "print body lines without UTF-8 conversion")
	statCmd.Flags().StringVarP(&statGroup, "group", "g", "", "newsgroup for article numbers")
}
