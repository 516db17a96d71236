package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/datallboy/gonntp/internal/domain"
	"github.com/datallboy/gonntp/internal/nntp"
	"github.com/datallboy/gonntp/internal/provider"
)

// postFile is the JSON article accepted by "gonntp post".
type postFile struct {
	Headers []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"headers"`
	Body string `json:"body"`
}

var postPath string

var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Post an article described by a JSON file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(postPath)
		if err != nil {
			return err
		}
		var pf postFile
		if err := json.Unmarshal(raw, &pf); err != nil {
			return fmt.Errorf("invalid article file: %w", err)
		}

		b := nntp.NewPost()
		for _, h := range pf.Headers {
			b.Header(h.Name, h.Value)
		}
		initiate, body := b.Body(wireBody(pf.Body)).Build()

		return appCtx.NNTP.WithSession(cmd.Context(), func(s *provider.Session) error {
			if !s.PostingAllowed() {
				return fmt.Errorf("%s: %w", s.Provider(), domain.ErrPostingNotPermitted)
			}
			if err := s.Post(initiate, body); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "posted via %s\n", s.Provider())
			return nil
		})
	},
}

// wireBody converts text to CRLF lines and dot-stuffs them.
func wireBody(text string) []byte {
	text = strings.TrimSuffix(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		if strings.HasPrefix(l, ".") {
			lines[i] = "." + l
		}
	}
	return []byte(strings.Join(lines, "\r\n"))
}

func init() {
	postCmd.Flags().StringVarP(&postPath, "file", "f", "", "JSON article file")
	_ = postCmd.MarkFlagRequired("file")
}
