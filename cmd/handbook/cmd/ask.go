package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"handbook-chat/internal/client"
	"handbook-chat/internal/domain"
)

const restartCommand = "/restart"

func init() {
	rootCmd.AddCommand(askCmd)
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question, or start a chat when no question is given",
	Long: `With a question, ask prints the streamed answer and exits. Without one it
reads questions from stdin line by line. Type /restart to clear the chat.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		if len(args) > 0 {
			return askOnce(cmd, c, strings.Join(args, " "))
		}
		return chat(cmd, c, cmd.InOrStdin())
	},
}

func askOnce(cmd *cobra.Command, c *client.Client, prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return errors.New("question must not be empty")
	}
	out := cmd.OutOrStdout()
	for fragment, err := range c.Ask(cmd.Context(), prompt) {
		if err != nil {
			fmt.Fprintln(out)
			return err
		}
		fmt.Fprint(out, fragment)
	}
	fmt.Fprintln(out)
	return nil
}

// chat drives a Transcript from in. A failed reply is shown in place of the
// answer and does not end the session.
func chat(cmd *cobra.Command, c *client.Client, in io.Reader) error {
	out := cmd.OutOrStdout()
	t := client.NewTranscript(c)
	printLast(out, t)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case restartCommand:
			t.Restart()
			printLast(out, t)
			continue
		}

		shown := ""
		_ = t.Send(cmd.Context(), line, func(m domain.ChatMessage) {
			if rest, ok := strings.CutPrefix(m.Text, shown); ok {
				fmt.Fprint(out, rest)
			} else {
				// A failed reply replaces the partial answer.
				fmt.Fprint(out, "\n"+m.Text)
			}
			shown = m.Text
		})
		fmt.Fprintln(out)
		if cmd.Context().Err() != nil {
			return cmd.Context().Err()
		}
	}
}

func printLast(out io.Writer, t *client.Transcript) {
	msgs := t.Messages()
	fmt.Fprintln(out, msgs[len(msgs)-1].Text)
}
