package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/go-pkgz/lgr"
	"github.com/iliafrenkel/unbin/src/client"
)

// newClient returns a paste client configured from the client options.
// Notifications go to stderr so that command output stays clean.
func newClient() *client.Client {
	log := setupLog(opts.Debug)
	notify := lgr.New(lgr.Out(os.Stderr), lgr.Err(os.Stderr))
	return client.New(client.Options{
		BaseURL:    opts.Client.URL,
		APIKey:     opts.Client.APIKey,
		HTTPClient: &http.Client{Timeout: opts.Timeouts.Client},
		Notifier:   client.LogNotifier{Log: notify},
		Logger:     log,
	})
}

// parseID parses a paste id argument.
func parseID(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected exactly one paste id, got %d arguments", len(args))
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid paste id: %s", args[0])
	}
	return id, nil
}

// ListCommand prints the pastes as a table.
type ListCommand struct {
	Search string `long:"search" short:"s" description:"show only pastes with this text in the title"`
	Order  string `long:"order" default:"new" choice:"new" choice:"old" description:"sort by date, newest or oldest first"`
}

// Execute implements flags.Commander.
func (cmd *ListCommand) Execute(_ []string) error {
	c := newClient()
	if err := c.Refresh(context.Background()); err != nil {
		return err
	}

	c.SetSearch(cmd.Search)
	if cmd.Order == "old" {
		c.SetSortOrder(client.SortOldest)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tTITLE")
	for _, p := range c.View() {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", p.ID, client.FormatDate(p.Date), p.Title)
	}
	return tw.Flush()
}

// ShowCommand prints a single paste.
type ShowCommand struct{}

// Execute implements flags.Commander.
func (cmd *ShowCommand) Execute(args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}

	c := newClient()
	if err := c.Refresh(context.Background()); err != nil {
		return err
	}
	if err := c.Select(id); err != nil {
		return err
	}

	p, _ := c.Current()
	fmt.Printf("%s\n%s\n\n%s\n", p.Title, client.FormatDate(p.Date), p.Text)
	return nil
}

// CreateCommand creates a paste. The text is read from stdin when not
// given with --text.
type CreateCommand struct {
	Title string `long:"title" short:"t" required:"true" description:"paste title"`
	Text  string `long:"text" description:"paste text, read from stdin when empty"`
}

// Execute implements flags.Commander.
func (cmd *CreateCommand) Execute(_ []string) error {
	text, err := textOrStdin(cmd.Text)
	if err != nil {
		return err
	}

	c := newClient()
	c.StartCreate()
	if err := c.Save(context.Background(), cmd.Title, text); err != nil {
		return err
	}

	p, _ := c.Current()
	fmt.Println(p.ID)
	return nil
}

// UpdateCommand replaces title and text of a paste.
type UpdateCommand struct {
	Title string `long:"title" short:"t" required:"true" description:"new paste title"`
	Text  string `long:"text" description:"new paste text, read from stdin when empty"`
}

// Execute implements flags.Commander.
func (cmd *UpdateCommand) Execute(args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	text, err := textOrStdin(cmd.Text)
	if err != nil {
		return err
	}

	ctx := context.Background()
	c := newClient()
	if err := c.Refresh(ctx); err != nil {
		return err
	}
	if err := c.Select(id); err != nil {
		return err
	}

	return c.Save(ctx, cmd.Title, text)
}

// DeleteCommand deletes a paste after a confirmation.
type DeleteCommand struct {
	Yes bool `long:"yes" short:"y" description:"do not ask for confirmation"`
}

// Execute implements flags.Commander.
func (cmd *DeleteCommand) Execute(args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}

	ctx := context.Background()
	c := newClient()
	if !cmd.Yes {
		if err := c.Refresh(ctx); err != nil {
			return err
		}
		title := "#" + strconv.FormatInt(id, 10)
		if err := c.Select(id); err == nil {
			p, _ := c.Current()
			title = p.Title
		}
		if !confirm(os.Stdin, os.Stdout, fmt.Sprintf("Are you sure you want to delete %q?", title)) {
			fmt.Println("Cancelled")
			return nil
		}
	}

	return c.Delete(ctx, id)
}

// APIKeyCommand prints the API key fetched from the server.
type APIKeyCommand struct{}

// Execute implements flags.Commander.
func (cmd *APIKeyCommand) Execute(_ []string) error {
	c := newClient()
	if err := c.Bootstrap(context.Background()); err != nil {
		return err
	}
	fmt.Println(c.APIKey())
	return nil
}

func textOrStdin(text string) (string, error) {
	if text != "" {
		return text, nil
	}
	b, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return string(b), nil
}

// confirm asks a yes/no question, anything but y or yes is a no.
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N] ", question)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
