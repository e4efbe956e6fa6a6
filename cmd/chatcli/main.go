package main

import (
	"bufio"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"friendchat/internal/chatclient"
	"friendchat/internal/domain"
	"friendchat/internal/logger"
)

func main() {
	app := &cli.App{
		Name:  "chatcli",
		Usage: "line-oriented friendchat client",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "server", Value: "http://localhost:5001", EnvVars: []string{"FRIENDCHAT_SERVER"}, Usage: "server base URL"},
			&cli.StringFlag{Name: "log-level", Value: "warn", Usage: "client log level"},
		},
		Commands: []*cli.Command{
			{
				Name:  "signup",
				Usage: "create an account and start chatting",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"FRIENDCHAT_PASSWORD"}},
				},
				Action: func(c *cli.Context) error {
					return run(c, func(ctx context.Context, api *chatclient.HTTPAPI) (domain.User, error) {
						return api.Signup(ctx, c.String("name"), c.String("email"), c.String("password"))
					})
				},
			},
			{
				Name:  "login",
				Usage: "log in and start chatting",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"FRIENDCHAT_PASSWORD"}},
				},
				Action: func(c *cli.Context) error {
					return run(c, func(ctx context.Context, api *chatclient.HTTPAPI) (domain.User, error) {
						return api.Login(ctx, c.String("email"), c.String("password"))
					})
				},
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

type authFunc func(ctx context.Context, api *chatclient.HTTPAPI) (domain.User, error)

type printNotifier struct{ out io.Writer }

func (n printNotifier) Success(msg string) { fmt.Fprintln(n.out, "✓", msg) }
func (n printNotifier) Error(msg string)   { fmt.Fprintln(n.out, "✗", msg) }

func run(c *cli.Context, auth authFunc) error {
	lg, err := logger.New(c.String("log-level"), true)
	if err != nil {
		return err
	}
	defer lg.Sync() //nolint:errcheck

	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}

	api, err := chatclient.NewHTTPAPI(c.String("server"))
	if err != nil {
		return err
	}
	me, err := auth(ctx, api)
	if err != nil {
		return err
	}
	fmt.Printf("logged in as %s (%s)\n", me.FullName, me.ID)

	store := chatclient.NewStore(api, me, printNotifier{out: os.Stdout}, lg)
	if err := store.LoadUsers(ctx); err != nil {
		return err
	}

	sock, err := chatclient.Dial(ctx, api.BaseURL(), me.ID, store, lg,
		chatclient.WithEventHook(func(event string) { announce(store, event) }))
	if err != nil {
		return err
	}
	defer sock.Close()

	sh := &shell{api: api, store: store, out: os.Stdout}
	sh.help()
	return sh.loop(ctx, os.Stdin, sock)
}

func announce(store *chatclient.Store, event string) {
	switch event {
	case domain.EventNewMessage:
		if sel := store.Selected(); sel != "" {
			msgs := store.Messages()
			if len(msgs) > 0 && msgs[len(msgs)-1].SenderID == sel {
				fmt.Printf("\n< %s\n", describe(msgs[len(msgs)-1]))
				return
			}
		}
		fmt.Println("\n(new message, see /users)")
	case domain.EventReceiveFriendRequest:
		fmt.Println("\n(new friend request, see /requests)")
	case domain.EventFriendRequestAccepted:
		fmt.Println("\n(friend request accepted, see /friends)")
	}
}

type shell struct {
	api   *chatclient.HTTPAPI
	store *chatclient.Store
	out   io.Writer
}

func (s *shell) help() {
	fmt.Fprintln(s.out, `commands:
  /users               sidebar, most recent first
  /search <text>       filter the sidebar by name
  /open <id|name>      open a conversation
  /image <path>        send an image to the open conversation
  /clear               delete the open conversation
  /online              who is online
  /all                 every user with friend info
  /add <id>            send a friend request
  /requests            pending requests
  /accept <id>         accept a request
  /reject <id>         reject a request
  /friends             your friends
  /quit
anything else is sent as a message to the open conversation`)
}

func (s *shell) loop(ctx context.Context, in io.Reader, sock *chatclient.Socket) error {
	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sock.Done():
			return sock.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := s.handle(ctx, strings.TrimSpace(line)); quit {
				return nil
			}
		}
	}
}

func (s *shell) handle(ctx context.Context, line string) (quit bool) {
	if line == "" {
		return false
	}
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit", "/exit":
		return true
	case "/help":
		s.help()
	case "/users":
		_ = s.store.LoadUsers(ctx)
		s.printUsers()
	case "/search":
		s.store.SetSearchQuery(arg)
		s.printUsers()
	case "/open":
		id := s.resolveUser(arg)
		if id == "" {
			fmt.Fprintln(s.out, "no such user")
			return false
		}
		if err := s.store.OpenConversation(ctx, id); err == nil {
			for _, m := range s.store.Messages() {
				fmt.Fprintln(s.out, s.arrow(m), describe(m))
			}
		}
	case "/image":
		dataURL, err := readDataURL(arg)
		if err != nil {
			fmt.Fprintln(s.out, "✗", err)
			return false
		}
		s.send(ctx, chatclient.MessagePayload{Image: dataURL})
	case "/clear":
		_ = s.store.ClearChat(ctx)
	case "/online":
		ids, err := s.api.Presence(ctx)
		if err != nil {
			ids = s.store.OnlineUsers()
		}
		fmt.Fprintln(s.out, strings.Join(ids, "\n"))
	case "/all":
		users, err := s.api.AllUsers(ctx)
		if err != nil {
			fmt.Fprintln(s.out, "✗", err)
			return false
		}
		for _, u := range users {
			fmt.Fprintf(s.out, "%s  %s  friends=%d requests=%d\n", u.ID, u.FullName, len(u.Friends), len(u.FriendRequests))
		}
	case "/add":
		_ = s.store.SendFriendRequest(ctx, s.resolveUser(arg))
	case "/requests":
		printSummaries(s.out, s.store.FriendRequests())
	case "/accept":
		_ = s.store.AcceptFriendRequest(ctx, arg)
	case "/reject":
		_ = s.store.RejectFriendRequest(ctx, arg)
	case "/friends":
		printSummaries(s.out, s.store.Friends())
	default:
		if strings.HasPrefix(cmd, "/") {
			fmt.Fprintln(s.out, "unknown command, try /help")
			return false
		}
		s.send(ctx, chatclient.MessagePayload{Text: line})
	}
	return false
}

func (s *shell) send(ctx context.Context, p chatclient.MessagePayload) {
	msg, err := s.store.SendMessage(ctx, p)
	if err != nil {
		if errors.Is(err, chatclient.ErrNoConversation) {
			fmt.Fprintln(s.out, "open a conversation first: /open <id|name>")
		}
		return
	}
	fmt.Fprintln(s.out, ">", describe(msg))
}

func (s *shell) printUsers() {
	for _, c := range s.store.FilteredUsers() {
		dot := " "
		if c.Online {
			dot = "●"
		}
		unread := ""
		if c.Unread > 0 {
			unread = fmt.Sprintf(" [%d]", c.Unread)
		}
		fmt.Fprintf(s.out, "%s %s  %s%s  %s\n", dot, c.ID, c.FullName, unread, c.LastMessageText)
	}
}

// resolveUser accepts an id or a case-insensitive name.
func (s *shell) resolveUser(arg string) string {
	if arg == "" {
		return ""
	}
	for _, c := range s.store.FilteredUsers() {
		if c.ID == arg || strings.EqualFold(c.FullName, arg) {
			return c.ID
		}
	}
	return arg
}

func (s *shell) arrow(m domain.Message) string {
	if m.SenderID == s.store.Self().ID {
		return ">"
	}
	return "<"
}

func describe(m domain.Message) string {
	ts := m.CreatedAt.Local().Format(time.Kitchen)
	switch {
	case m.Text != "" && m.Image != "":
		return fmt.Sprintf("[%s] %s (%s)", ts, m.Text, m.Image)
	case m.Image != "":
		return fmt.Sprintf("[%s] %s %s", ts, domain.ImagePreview, m.Image)
	default:
		return fmt.Sprintf("[%s] %s", ts, m.Text)
	}
}

func printSummaries(out io.Writer, list []domain.UserSummary) {
	if len(list) == 0 {
		fmt.Fprintln(out, "(none)")
		return
	}
	for _, u := range list {
		fmt.Fprintf(out, "%s  %s\n", u.ID, u.FullName)
	}
}

func readDataURL(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("usage: /image <path>")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	typ := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if typ == "" {
		return "", fmt.Errorf("unknown image type for %s", path)
	}
	return "data:" + typ + ";base64," + base64.StdEncoding.EncodeToString(b), nil
}
