// Command quizctl takes a timed masterclass test from the terminal.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mind-engage/masterclass/internal/auth"
	"github.com/mind-engage/masterclass/internal/client"
	"github.com/mind-engage/masterclass/internal/exam"
	"github.com/mind-engage/masterclass/internal/quiz"
)

func main() {
	var (
		base  = flag.String("base", "http://localhost:8080", "gateway base URL")
		email = flag.String("email", "", "request a login link for this address")
		token = flag.String("token", "", "login token from a magic link")
		kind  = flag.String("type", "PRE", "test type: PRE or POST")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	t, ok := exam.ParseTestType(*kind)
	if !ok {
		fmt.Fprintln(os.Stderr, "-type must be PRE or POST")
		os.Exit(2)
	}
	if err := run(ctx, client.New(*base, nil), *email, *token, t, os.Stdin, os.Stdout, logger); err != nil {
		fmt.Fprintln(os.Stderr, "quizctl:", err)
		os.Exit(1)
	}
}

func login(ctx context.Context, c *client.Client, email, token string, out io.Writer) (auth.StudentSession, error) {
	if token == "" {
		if email == "" {
			return auth.StudentSession{}, errors.New("one of -email or -token is required")
		}
		link, err := c.RequestLink(ctx, email)
		if err != nil {
			return auth.StudentSession{}, fmt.Errorf("request login link: %w", err)
		}
		if link.Token == "" {
			fmt.Fprintf(out, "a login link was sent to %s; rerun with -token\n", link.Profile.Email)
			return auth.StudentSession{}, errLinkSent
		}
		token = link.Token
	}
	sess, err := c.Verify(ctx, token)
	if err != nil {
		return auth.StudentSession{}, fmt.Errorf("verify token: %w", err)
	}
	return sess, nil
}

var errLinkSent = errors.New("login link sent")

func run(ctx context.Context, c *client.Client, email, token string, t exam.TestType, in io.Reader, out io.Writer, logger *slog.Logger) error {
	sess, err := login(ctx, c, email, token, out)
	if errors.Is(err, errLinkSent) {
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "hello %s\n", sess.Profile.FullName)

	if t == exam.TypePost {
		av, err := c.Availability(ctx)
		if err != nil {
			return err
		}
		if !av.Available {
			return fmt.Errorf("post-test unavailable: %s", av.Reason)
		}
	}

	view := newRenderer(out)
	runner, err := quiz.Load(ctx, c, sess.EnrollmentID, t, c,
		quiz.WithOnChange(view.OnChange),
		quiz.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer runner.Close()
	runner.Start(ctx)

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-view.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := handle(ctx, runner, strings.TrimSpace(line), out); quit {
				return nil
			}
		}
	}
}

// handle applies one input line. It reports whether the user quit.
func handle(ctx context.Context, r *quiz.Runner, cmd string, out io.Writer) bool {
	var err error
	switch strings.ToLower(cmd) {
	case "":
		return false
	case "a", "b", "c", "d":
		err = r.Select(exam.Letter(strings.ToUpper(cmd)))
	case "n":
		err = r.Next()
	case "p":
		err = r.Prev()
	case "s":
		// failures and the outcome are rendered from the snapshot
		_, err = r.Submit(ctx)
		var ue *quiz.UnansweredError
		if !errors.As(err, &ue) && !errors.Is(err, quiz.ErrBusy) && !errors.Is(err, quiz.ErrNotAnswering) {
			return false
		}
	case "q":
		return true
	default:
		fmt.Fprintln(out, "unknown command")
		return false
	}
	if err != nil {
		fmt.Fprintln(out, err)
	}
	return false
}
