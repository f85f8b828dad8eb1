package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/matheus3301/koichat/internal/profile"
	"github.com/matheus3301/koichat/internal/rpc"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and account status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, func(ctx context.Context, c *rpc.Client) error {
				st, err := c.GetStatus(ctx)
				if err != nil {
					return err
				}
				if flagJSON {
					return outputJSON(st)
				}
				printStatus(st)
				return nil
			})
		},
	}
}

func printStatus(st *rpc.Status) {
	fmt.Printf("Profile:  %s\n", st.Profile)
	fmt.Printf("API:      %s\n", st.APIURL)
	fmt.Printf("Uptime:   %s\n", (time.Duration(st.UptimeMs) * time.Millisecond).Round(time.Second))
	if !st.LoggedIn || st.Account == nil {
		fmt.Println("Account:  signed out")
		return
	}
	fmt.Printf("Account:  %s (%d, %s)\n", st.Account.FullName, st.Account.UserID, st.Account.Role)
	fmt.Printf("State:    %s\n", st.State)
	if st.Conversation != nil {
		fmt.Printf("Open:     %s (%d)\n", st.Conversation.ReceiverName, st.Conversation.ReceiverID)
		fmt.Printf("Realtime: %v\n", st.Realtime)
	}
}

func newLoginCmd() *cobra.Command {
	var passwordStdin bool
	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Sign the daemon in with an Admin account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(passwordStdin)
			if err != nil {
				return err
			}
			return withClient(cmd, func(ctx context.Context, c *rpc.Client) error {
				st, err := c.Login(ctx, args[0], password)
				if err != nil {
					return err
				}
				if flagJSON {
					return outputJSON(st)
				}
				fmt.Printf("Signed in as %s.\n", st.Account.FullName)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}

func readPassword(fromStdin bool) (string, error) {
	if fromStdin || !term.IsTerminal(int(os.Stdin.Fd())) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	fmt.Fprint(os.Stderr, "Password: ")
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, func(ctx context.Context, c *rpc.Client) error {
				return c.Logout(ctx)
			})
		},
	}
}

func newContactsCmd() *cobra.Command {
	var reload bool
	cmd := &cobra.Command{
		Use:   "contacts [query]",
		Short: "List users a conversation can be opened with",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			return withClient(cmd, func(ctx context.Context, c *rpc.Client) error {
				resp, err := c.ListContacts(ctx, query, reload)
				if err != nil {
					return err
				}
				if flagJSON {
					return outputJSON(resp)
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tROLE\tSTATUS")
				for _, ct := range resp.Contacts {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", ct.ID, ct.DisplayName(), ct.Role, ct.Status)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().BoolVar(&reload, "reload", false, "refetch the directory from the backend")
	return cmd
}

func newOpenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open <user-id> [name]",
		Short: "Open the conversation with a user",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			name := ""
			if len(args) == 2 {
				name = args[1]
			}
			return withClient(cmd, func(ctx context.Context, c *rpc.Client) error {
				v, err := c.SelectConversation(ctx, id, name)
				if err != nil {
					return err
				}
				return printView(v)
			})
		},
	}
}

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Print the loaded messages of the open conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, func(ctx context.Context, c *rpc.Client) error {
				v, err := c.GetView(ctx)
				if err != nil {
					return err
				}
				return printView(v)
			})
		},
	}
}

func newOlderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "older",
		Short: "Load the next older page of the open conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, func(ctx context.Context, c *rpc.Client) error {
				resp, err := c.LoadOlder(ctx)
				if err != nil {
					return err
				}
				if flagJSON {
					return outputJSON(resp)
				}
				if !resp.Issued {
					fmt.Println("No older messages to load.")
					return nil
				}
				return printView(&resp.View)
			})
		},
	}
}

func newSendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <text>",
		Short: "Send a message to the open conversation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			return withClient(cmd, func(ctx context.Context, c *rpc.Client) error {
				v, err := c.SendMessage(ctx, text)
				if err != nil {
					return err
				}
				if flagJSON {
					return outputJSON(v)
				}
				fmt.Println("Sent.")
				return nil
			})
		},
	}
}

func newCloseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "close",
		Short: "Close the open conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, func(ctx context.Context, c *rpc.Client) error {
				return c.CloseConversation(ctx)
			})
		},
	}
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [namespace...]",
		Short: "Stream daemon events until interrupted",
		Long:  "Streams events whose kind starts with one of the namespaces (default chat., conversation. and auth.).",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := connect()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			stream, err := c.WatchEvents(ctx, args...)
			if err != nil {
				return err
			}
			for {
				env, err := stream.Recv()
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					return err
				}
				if flagJSON {
					if err := outputJSON(env); err != nil {
						return err
					}
					continue
				}
				at := time.UnixMilli(env.OccurredAtUnixMs).Format("15:04:05.000")
				fmt.Printf("%s  %-28s %s\n", at, env.Kind, string(env.Payload))
			}
		},
	}
}

func newProfilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List known profiles",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			names, err := profile.List()
			if err != nil {
				return err
			}
			if flagJSON {
				return outputJSON(names)
			}
			active := profile.Resolve(flagProfile)
			for _, n := range names {
				marker := " "
				if n == active {
					marker = "*"
				}
				fmt.Printf("%s %s\n", marker, n)
			}
			return nil
		},
	}
}

func printView(v *rpc.View) error {
	if flagJSON {
		return outputJSON(v)
	}
	if v.Conversation == nil {
		fmt.Println("No conversation open.")
		return nil
	}
	fmt.Printf("%s (%d)  %s\n", v.Conversation.ReceiverName, v.Conversation.ReceiverID, v.State)
	for _, it := range v.Items {
		if it.Message == nil {
			fmt.Printf("--- %s ---\n", it.Day)
			continue
		}
		who := v.Conversation.ReceiverName
		if v.Outgoing(*it.Message) {
			who = "You"
		}
		fmt.Printf("[%s] %s: %s\n", it.Message.Datetime.Local().Format("15:04"), who, it.Message.Message)
	}
	if v.EndReached {
		fmt.Println("(beginning of conversation)")
	}
	return nil
}
