package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"time"

	tui "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/term"

	"github.com/keilerkonzept/tagscope/history"
	"github.com/keilerkonzept/tagscope/ingest"
	"github.com/keilerkonzept/tagscope/logging"
	"github.com/keilerkonzept/tagscope/rank"
)

func main() {
	log.SetOutput(os.Stdout)
	c, cmd, err := loadConfig(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}
	if err := validateAndNormalizeConfig(&c, cmd); err != nil {
		log.Fatal(err)
	}
	config = c
	level, _ := logging.ParseLevel(config.LogLevel)
	logging.SetLevel(level)

	store, err := history.OpenBadger(history.Config{
		Path:             config.DBPath,
		InMemory:         config.InMemory,
		CompressionLevel: config.Compression,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = store.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch cmd {
	case "report":
		err = runReport(ctx, store, os.Stdout, time.Now())
	case "simulate":
		err = runSimulate(ctx, store, os.Stdout)
	default:
		err = runView(ctx, store)
	}
	if err != nil {
		stop()
		_ = store.Close()
		log.Fatal(err)
	}
}

func runView(ctx context.Context, store history.Store) error {
	f, err := tui.LogToFile(config.LogFile, "")
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer func() { _ = f.Close() }()
	logging.SetOutput(f)

	ranker, err := rank.New(config.rankConfig())
	if err != nil {
		return err
	}
	m := newModel(ctx, store, ranker)
	opts := []tui.ProgramOption{tui.WithInputTTY(), tui.WithMouseCellMotion(), tui.WithContext(ctx)}
	if config.AltScreen {
		opts = append(opts, tui.WithAltScreen())
	}
	p := tui.NewProgram(m, opts...)
	m.send = p.Send
	_, err = p.Run()
	m.shutdown()
	if errors.Is(err, tui.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// parseReportRange defaults to the hour before now.
func parseReportRange(fromStr, toStr string, now time.Time) (from, to time.Time, err error) {
	to = now
	if toStr != "" {
		if to, err = parseWhen(toStr); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("-to: %w", err)
		}
	}
	from = to.Add(-time.Hour)
	if fromStr != "" {
		if from, err = parseWhen(fromStr); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("-from: %w", err)
		}
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("report range is empty: %s .. %s", history.FormatTimestamp(from), history.FormatTimestamp(to))
	}
	return from, to, nil
}

func parseWhen(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return history.ParseTimestamp(s)
}

func runReport(ctx context.Context, store history.Store, w io.Writer, now time.Time) error {
	from, to, err := parseReportRange(config.ReportFrom, config.ReportTo, now)
	if err != nil {
		return err
	}
	r, err := history.BuildReport(ctx, store, config.Project, config.tagList(), from, to)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, r.Text()); err != nil {
		return err
	}
	if config.ReportOut == "" {
		return nil
	}
	out, err := os.Create(config.ReportOut)
	if err != nil {
		return err
	}
	if err := r.RenderPNG(out, config.ReportWidth, config.ReportHeight); err != nil {
		_ = out.Close()
		if history.IsNoData(err) {
			logging.Warnf("Nothing to plot for %v in the selected range", config.tagList())
			return os.Remove(config.ReportOut)
		}
		return err
	}
	return out.Close()
}

// runSimulate stores simulator batches and echoes them as text lines unless
// stdout is a terminal, so the output can be piped into the view.
func runSimulate(ctx context.Context, store history.Store, w io.Writer) error {
	echo := !term.IsTerminal(os.Stdout.Fd())
	sim := newSimulator()
	var storeErr error
	err := sim.Run(ctx, func(b ingest.Batch) {
		if storeErr != nil {
			return
		}
		storeErr = store.Append(ctx, config.Project, b.Tag, history.Entry{
			Timestamp: history.FormatTimestamp(b.Time),
			Values:    b.Values,
		})
		if echo {
			_, _ = fmt.Fprintln(w, ingest.FormatLine(b))
		}
	})
	if storeErr != nil {
		return storeErr
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func newSimulator() *ingest.Simulator {
	sim := ingest.NewSimulator(config.tagList()...)
	sim.Interval = config.SimInterval
	sim.Messages = config.SimMessages
	return sim
}
