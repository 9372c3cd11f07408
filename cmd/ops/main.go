package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"choreboard/internal/engine"
	"choreboard/internal/notify"
	"choreboard/internal/ops"
	"choreboard/internal/points"
	"choreboard/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "backup":
		err = cmdBackup(os.Args[2:])
	case "restore":
		err = cmdRestore(os.Args[2:])
	case "reset-all":
		err = cmdReset(os.Args[2:], false)
	case "reset-overdue":
		err = cmdReset(os.Args[2:], true)
	case "tick":
		err = cmdTick(os.Args[2:])
	default:
		printUsage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage: ops <command> [flags]

commands:
  backup        archive the data directory to a .tar.gz
  restore       unpack a backup archive into a target directory
  reset-all     reset every instance to pending and reschedule
  reset-overdue reset only overdue instances
  tick          run one due-date sweep against the store`)
}

func cmdBackup(args []string) error {
	fs := flag.NewFlagSet("backup", flag.ContinueOnError)
	dataDir := fs.String("data-dir", "data", "path to data directory")
	out := fs.String("out", "", "output archive path (.tar.gz)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *out == "" {
		ts := time.Now().UTC().Format("20060102T150405Z")
		*out = filepath.Join("backups", "choreboard-"+ts+".tar.gz")
	}

	if err := ops.BackupDataDir(context.Background(), *dataDir, *out); err != nil {
		return err
	}
	fmt.Println(*out)
	return nil
}

func cmdRestore(args []string) error {
	fs := flag.NewFlagSet("restore", flag.ContinueOnError)
	archive := fs.String("archive", "", "input backup archive (.tar.gz)")
	target := fs.String("target-dir", "data-restored", "restore target directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *archive == "" {
		return fmt.Errorf("archive is required")
	}
	return ops.RestoreDataDir(*archive, *target)
}

func cmdReset(args []string, overdueOnly bool) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	dataDir := fs.String("data-dir", "data", "path to data directory")
	quiet := fs.Bool("quiet", false, "suppress engine logs")
	if err := fs.Parse(args); err != nil {
		return err
	}

	eng, closeStore, err := openEngine(*dataDir, *quiet)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx := context.Background()
	var n int
	if overdueOnly {
		n, err = eng.ResetOverdue(ctx)
	} else {
		n, err = eng.ResetAll(ctx)
	}
	if err != nil {
		return err
	}
	fmt.Printf("reset %d instance(s)\n", n)
	return nil
}

func cmdTick(args []string) error {
	fs := flag.NewFlagSet("tick", flag.ContinueOnError)
	dataDir := fs.String("data-dir", "data", "path to data directory")
	quiet := fs.Bool("quiet", false, "suppress engine logs")
	if err := fs.Parse(args); err != nil {
		return err
	}

	eng, closeStore, err := openEngine(*dataDir, *quiet)
	if err != nil {
		return err
	}
	defer closeStore()

	report, err := eng.RunTick(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("overdue=%d due_soon=%d reminders=%d boundary_reset=%d\n",
		report.Overdue, report.DueSoon, report.Reminders, report.Boundary.Reset)
	return nil
}

func openEngine(dataDir string, quiet bool) (*engine.Engine, func(), error) {
	st, err := store.Open(dataDir)
	if err != nil {
		return nil, nil, err
	}
	logger := log.Default()
	if quiet {
		logger = log.New(io.Discard, "", 0)
	}
	eng := engine.New(st.Chores(), st.Kids(), st.Instances(),
		points.NewEvaluator(st.Ledgers()),
		notify.NopDispatcher{}, engine.RealClock{}, logger, engine.Options{})
	return eng, func() { st.Close() }, nil
}
