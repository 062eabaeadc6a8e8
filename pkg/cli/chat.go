package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
	"github.com/secmon-lab/mnemosyne/pkg/utils/async"
	"github.com/urfave/cli/v3"
)

func cmdChat() *cli.Command {
	var userID string
	var collection string
	var rt runtimeConfig

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "user-id",
			Aliases:     []string{"u"},
			Usage:       "User ID the conversation is recorded under",
			Required:    true,
			Sources:     cli.EnvVars("MNEMOSYNE_USER_ID"),
			Destination: &userID,
		},
		&cli.StringFlag{
			Name:        "collection",
			Aliases:     []string{"c"},
			Usage:       "Document collection queried as the general context tier",
			Sources:     cli.EnvVars("MNEMOSYNE_COLLECTION"),
			Destination: &collection,
		},
	}
	flags = append(flags, rt.Flags()...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Interactive chat session on the terminal",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, closeBackend, err := rt.build(ctx)
			if err != nil {
				return err
			}
			defer closeBackend()

			if err := newREPL(uc, userID, collection, os.Stdin, os.Stdout).run(ctx); err != nil {
				return err
			}
			return async.Wait(ctx)
		},
	}
}

var (
	promptColor = color.New(color.FgCyan, color.Bold)
	answerColor = color.New(color.FgGreen)
	sourceColor = color.New(color.FgHiBlack)
	errorColor  = color.New(color.FgRed)
)

type repl struct {
	uc         *usecase.UseCases
	userID     string
	collection string
	in         io.Reader
	out        io.Writer
}

func newREPL(uc *usecase.UseCases, userID, collection string, in io.Reader, out io.Writer) *repl {
	return &repl{
		uc:         uc,
		userID:     userID,
		collection: collection,
		in:         in,
		out:        out,
	}
}

var errQuit = errors.New("quit")

func (x *repl) run(ctx context.Context) error {
	_, _ = fmt.Fprintf(x.out, "Chatting as %s. Commands: /context, /set key=value, /history [n], /forget, /quit\n", x.userID)

	scanner := bufio.NewScanner(x.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		_, _ = promptColor.Fprint(x.out, "> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		err := x.handle(ctx, line)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			if usecase.IsValidationError(err) {
				_, _ = errorColor.Fprintf(x.out, "invalid input: %v\n", err)
				continue
			}
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return goerr.Wrap(err, "failed to read input")
	}
	return nil
}

func (x *repl) handle(ctx context.Context, line string) error {
	if !strings.HasPrefix(line, "/") {
		return x.ask(ctx, line)
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit", "/exit":
		return errQuit
	case "/context":
		return x.showContext(ctx)
	case "/set":
		key, value, ok := strings.Cut(arg, "=")
		if !ok || strings.TrimSpace(key) == "" {
			_, _ = errorColor.Fprintln(x.out, "usage: /set key=value")
			return nil
		}
		if _, err := x.uc.Context.Update(ctx, x.userID, map[string]any{strings.TrimSpace(key): strings.TrimSpace(value)}); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(x.out, "context updated")
		return nil
	case "/history":
		limit := 10
		if arg != "" {
			if _, err := fmt.Sscanf(arg, "%d", &limit); err != nil {
				_, _ = errorColor.Fprintln(x.out, "usage: /history [n]")
				return nil
			}
		}
		return x.showHistory(ctx, limit)
	case "/forget":
		existed, err := x.uc.Context.Delete(ctx, x.userID)
		if err != nil {
			return err
		}
		if existed {
			_, _ = fmt.Fprintln(x.out, "context and history deleted")
		} else {
			_, _ = fmt.Fprintln(x.out, "nothing to delete")
		}
		return nil
	default:
		_, _ = errorColor.Fprintf(x.out, "unknown command: %s\n", cmd)
		return nil
	}
}

func (x *repl) ask(ctx context.Context, message string) error {
	result, err := x.uc.Chat.ProcessTurn(ctx, model.TurnRequest{
		UserID:     x.userID,
		Message:    message,
		Collection: x.collection,
	})
	if err != nil {
		return err
	}

	_, _ = answerColor.Fprintln(x.out, result.ResponseText)
	for _, f := range result.SourceFragments {
		_, _ = sourceColor.Fprintf(x.out, "  [%s] %.3f %s\n", f.ID, f.Dissimilarity, preview(f.Content, 60))
	}
	return nil
}

func (x *repl) showContext(ctx context.Context) error {
	rec, err := x.uc.Context.Get(ctx, x.userID)
	if errors.Is(err, usecase.ErrContextNotFound) {
		_, _ = fmt.Fprintln(x.out, "no context stored")
		return nil
	}
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(rec.Values))
	for k := range rec.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_, _ = fmt.Fprintf(x.out, "%s: %v\n", k, rec.Values[k])
	}
	_, _ = sourceColor.Fprintf(x.out, "updated at %s\n", rec.UpdatedAt.Format("2006-01-02 15:04:05"))
	return nil
}

func (x *repl) showHistory(ctx context.Context, limit int) error {
	turns, err := x.uc.Context.History(ctx, x.userID, limit)
	if err != nil {
		return err
	}
	if len(turns) == 0 {
		_, _ = fmt.Fprintln(x.out, "no history")
		return nil
	}
	for _, turn := range turns {
		_, _ = fmt.Fprintf(x.out, "%s %-5s %s\n", turn.Timestamp.Format("15:04:05"), turn.Role, preview(turn.Content, 80))
	}
	return nil
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
