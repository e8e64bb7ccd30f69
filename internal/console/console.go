package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"schedula/availability/internal/domain"
	"schedula/availability/internal/grid"
)

const help = `commands:
  month YYYY-MM       show a month
  next | prev         move one month
  select YYYY-MM-DD   pick the day to edit
  day                 list the slots of the selected day
  toggle HH:MM        stage the opposite value of a slot
  open | close        stage the whole selected day
  now HH:MM           write one slot immediately
  pending             list staged changes
  save                commit staged changes
  discard             drop staged changes and reload
  quit`

// Console is a line-oriented front end for a grid.Editor.
type Console struct {
	ed      *grid.Editor
	out     io.Writer
	timeout time.Duration
	log     *slog.Logger
}

func New(ed *grid.Editor, out io.Writer, timeout time.Duration, log *slog.Logger) *Console {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Console{ed: ed, out: out, timeout: timeout, log: log.With(slog.String("component", "console"))}
}

// Run reads commands from in until EOF, "quit" or ctx is done.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	c.printMonth()
	c.printNotice()

	scanner := bufio.NewScanner(in)
	for {
		c.printf("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		quit, err := c.Exec(ctx, scanner.Text())
		if err != nil {
			c.printf("error: %v\n", err)
		}
		c.printNotice()
		if quit {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Exec runs one command line.
func (c *Console) Exec(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	switch cmd {
	case "quit", "exit":
		if n := c.ed.PendingCount(); n > 0 {
			c.printf("leaving with %d unsaved pending change(s)\n", n)
		}
		return true, nil
	case "help", "?":
		c.printf("%s\n", help)
	case "month":
		if len(args) != 1 {
			return false, errors.New("usage: month YYYY-MM")
		}
		t, err := time.Parse("2006-01", args[0])
		if err != nil {
			return false, errors.New("month must look like YYYY-MM")
		}
		return false, c.afterLoad(c.ed.ShowMonth(ctx, t.Year(), t.Month()))
	case "next":
		return false, c.afterLoad(c.ed.NextMonth(ctx))
	case "prev":
		return false, c.afterLoad(c.ed.PrevMonth(ctx))
	case "select":
		if len(args) != 1 {
			return false, errors.New("usage: select YYYY-MM-DD")
		}
		date, err := domain.ParseDate(args[0])
		if err != nil {
			return false, err
		}
		if err := c.ed.Select(date); err != nil {
			return false, err
		}
		return false, c.printDay()
	case "day":
		return false, c.printDay()
	case "toggle":
		start, err := slotArg(args)
		if err != nil {
			return false, err
		}
		if _, err := c.ed.Toggle(start); err != nil {
			return false, err
		}
		return false, c.printDay()
	case "open", "close":
		if err := c.ed.MarkWholeDay(cmd == "open"); err != nil {
			return false, err
		}
		return false, c.printDay()
	case "now":
		start, err := slotArg(args)
		if err != nil {
			return false, err
		}
		open, err := c.ed.CommitNow(ctx, start)
		if err != nil {
			return false, err
		}
		c.printf("%s is now %s\n", start, openWord(open))
	case "pending":
		c.printPending()
	case "save":
		if _, err := c.ed.Commit(ctx); err != nil {
			return false, err
		}
		c.printMonth()
	case "discard":
		if err := c.ed.Discard(ctx); err != nil {
			return false, err
		}
		c.printMonth()
	default:
		return false, fmt.Errorf("unknown command %q (try help)", cmd)
	}
	return false, nil
}

func (c *Console) afterLoad(err error) error {
	if errors.Is(err, grid.ErrLoadSuperseded) {
		return nil
	}
	c.printMonth()
	return err
}

func (c *Console) printMonth() {
	y, m := c.ed.CurrentMonth()
	c.printf("%s %d  (%d pending)\n", m, y, c.ed.PendingCount())
	for _, day := range c.ed.Month() {
		c.printf("  %s %s  %d/%d  %s\n",
			day.Date, day.Date.Weekday().String()[:3], day.OpenCount, day.TotalCount, day.Status())
	}
}

func (c *Console) printDay() error {
	date, ok := c.ed.Selected()
	if !ok {
		return grid.ErrNoSelection
	}
	slots, err := c.ed.DaySlots()
	if err != nil {
		return err
	}
	agg := c.ed.Day(date)
	c.printf("%s  %d/%d open  (%.0f%%)\n", date, agg.OpenCount, agg.TotalCount, agg.Percent())
	for _, s := range slots {
		mark := " "
		if s.Pending {
			mark = "*"
		}
		c.printf("  %s %s %s\n", mark, s.Label, openWord(s.Open))
	}
	return nil
}

func (c *Console) printPending() {
	changes := c.ed.Ledger().All()
	if len(changes) == 0 {
		c.printf("no pending changes\n")
		return
	}
	for _, ch := range changes {
		c.printf("  %s -> %s\n", ch.Key(), openWord(ch.IsOpen))
	}
}

func (c *Console) printNotice() {
	if n, ok := c.ed.Notices().Current(); ok {
		c.printf("[%s] %s\n", n.Kind, n.Text)
	}
}

func (c *Console) printf(format string, args ...any) {
	if _, err := fmt.Fprintf(c.out, format, args...); err != nil {
		c.log.Debug("console write failed", slog.Any("err", err))
	}
}

func slotArg(args []string) (domain.SlotStart, error) {
	if len(args) != 1 {
		return 0, errors.New("expected one HH:MM slot")
	}
	return domain.ParseSlotStart(args[0])
}

func openWord(open bool) string {
	if open {
		return "open"
	}
	return "closed"
}
