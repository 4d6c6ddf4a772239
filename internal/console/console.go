// Package console drives a search session from line-oriented input and
// prints every state change.
package console

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/tracuu-benhly/lookup/internal/models"
	"github.com/tracuu-benhly/lookup/internal/session"
)

// Controller is the part of *session.Session the console drives.
type Controller interface {
	OnQueryChange(text string)
	OnFocus()
	OnOutsideClick()
	OnSubmit() error
	OnSelectCandidate(text string) error
	OnDeleteHistory(id any) error
	OnToggleComparisonMode(on bool) error
	SetModel(model models.SearchModel) error
	Snapshot() session.Snapshot
}

const Help = `Type text to update the query. Commands:
  :submit            run the search for the current query
  :select <text>     pick a candidate
  :delete <id>       remove a history entry
  :compare on|off    toggle comparison mode
  :model <name>      bm25, word2vec or huggingface
  :focus / :blur     open or close the candidate panel
  :show              print the current state
  :clear             empty the query
  :quit              exit`

type Console struct {
	ctrl Controller
	json bool

	mu  sync.Mutex
	out io.Writer
}

func New(ctrl Controller, out io.Writer, asJSON bool) *Console {
	return &Console{ctrl: ctrl, out: out, json: asJSON}
}

// Run reads commands until EOF, :quit or ctx is done. Command errors are
// printed and do not stop the loop.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			quit, err := c.Execute(line)
			if err != nil {
				c.printf("error: %v\n", err)
			}
			if quit {
				return nil
			}
		}
	}
}

// Execute applies one input line.
func (c *Console) Execute(line string) (quit bool, err error) {
	if !strings.HasPrefix(line, ":") {
		c.ctrl.OnQueryChange(line)
		return false, nil
	}

	cmd, arg, _ := strings.Cut(strings.TrimPrefix(line, ":"), " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "q", "quit", "exit":
		return true, nil
	case "submit":
		return false, c.ctrl.OnSubmit()
	case "select":
		return false, c.ctrl.OnSelectCandidate(arg)
	case "delete":
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return false, &models.ValidationError{Field: "id", Reason: fmt.Sprintf("%q is not an integer", arg)}
		}
		return false, c.ctrl.OnDeleteHistory(id)
	case "compare":
		switch arg {
		case "on":
			return false, c.ctrl.OnToggleComparisonMode(true)
		case "off":
			return false, c.ctrl.OnToggleComparisonMode(false)
		}
		return false, fmt.Errorf("usage: :compare on|off")
	case "model":
		return false, c.ctrl.SetModel(models.SearchModel(arg))
	case "focus":
		c.ctrl.OnFocus()
	case "blur":
		c.ctrl.OnOutsideClick()
	case "clear":
		c.ctrl.OnQueryChange("")
	case "show":
		c.Render(c.ctrl.Snapshot())
	case "help":
		c.printf("%s\n", Help)
	default:
		return false, fmt.Errorf("unknown command %q, try :help", cmd)
	}
	return false, nil
}

// Render prints a snapshot. It is safe to use as a session listener.
func (c *Console) Render(snap session.Snapshot) {
	if c.json {
		data, err := json.Marshal(snap)
		if err != nil {
			c.printf("error: %v\n", err)
			return
		}
		c.printf("%s\n", data)
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "> %s  [%s, model=%s", snap.Query, snap.Dropdown, snap.Model.Label())
	if snap.ComparisonMode {
		b.WriteString(", compare")
	}
	if snap.Loading {
		b.WriteString(", loading")
	}
	b.WriteString("]\n")

	if snap.Dropdown.IsOpen() {
		for _, s := range snap.Candidates.Suggestions {
			fmt.Fprintf(&b, "  · %s\n", s.Text)
		}
		for _, h := range snap.Candidates.History {
			fmt.Fprintf(&b, "  ↺ %s (#%d)\n", h.Query, h.ID)
		}
	}

	switch {
	case snap.Error != "":
		fmt.Fprintf(&b, "! %s\n", snap.Error)
	case snap.ComparisonMode && len(snap.Comparison) > 0:
		for _, row := range snap.Comparison {
			fmt.Fprintf(&b, "  %-12s %4d  %s ms\n", row.Model.Label(), row.ResultCount, models.FormatElapsed(row.ElapsedMs))
		}
		for _, row := range snap.Comparison {
			fmt.Fprintf(&b, "%s\n", row.Summary())
		}
	case snap.Response != nil:
		fmt.Fprintf(&b, "%s\n", snap.Summary)
		for _, r := range snap.Response.Results {
			fmt.Fprintf(&b, "  [%s] %s\n", r.ID, r.Title)
		}
	}
	if snap.Location != "" {
		fmt.Fprintf(&b, "@ %s\n", snap.Location)
	}

	c.printf("%s", b.String())
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}
