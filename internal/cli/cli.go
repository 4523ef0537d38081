// Package cli implements fruitctl, the offline front end to the detection
// pipeline and the history store.
package cli

import (
	"io"
	"os"

	goflags "github.com/jessevdk/go-flags"

	"fruitcounter/internal/service"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Detect     *DetectCommand
	History    *HistoryCommand
	Stats      *StatsCommand
	Report     *ReportCommand
	CountVideo *CountVideoCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
// A non-nil manager is used instead of opening one from the configuration.
func buildParser(out io.Writer, manager *service.Manager) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "fruitctl"
	parser.LongDescription = "Count fruit in images and query the detection history."

	env := &environment{globals: &globals, out: out, manager: manager}
	cmds := &commands{
		Detect:     &DetectCommand{env: env},
		History:    &HistoryCommand{env: env},
		Stats:      &StatsCommand{env: env},
		Report:     &ReportCommand{env: env},
		CountVideo: &CountVideoCommand{env: env},
	}

	parser.AddCommand("detect", "Count fruit in an image", "Run detection on an image, save the annotated copy and record it in the history.", cmds.Detect)
	parser.AddCommand("history", "List recent requests", "List processed requests, newest first.", cmds.History)
	parser.AddCommand("stats", "Show aggregated statistics", "Show global statistics, or per-day rollups with --daily.", cmds.Stats)
	parser.AddCommand("report", "Generate a report", "Render the latest request as PDF or Excel, or the whole history with --history.", cmds.Report)
	parser.AddCommand("count-video", "Count fruit in a video", "Sum per-class counts over every Nth frame of a video.", cmds.CountVideo)

	return parser, &globals, cmds
}

// Run parses os.Args and executes the matched subcommand.
func Run() error {
	return RunWithArgs(os.Stdout, nil, nil)
}

// RunWithArgs parses args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(out io.Writer, manager *service.Manager, args []string) error {
	parser, _, _ := buildParser(out, manager)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok {
			if flagsErr.Type == goflags.ErrHelp {
				return nil
			}
		}
		return err
	}

	return nil
}
