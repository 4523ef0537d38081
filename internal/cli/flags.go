package cli

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to a YAML config file"`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" description:"Log pipeline progress to stderr"`
}

// DetectCommand runs the full pipeline on one image.
type DetectCommand struct {
	Image string `long:"image" description:"Path to the image" required:"true"`

	env *environment
}

// HistoryCommand lists saved requests.
type HistoryCommand struct {
	Limit int `long:"limit" description:"Maximum entries, 0 for all" default:"10"`

	env *environment
}

// StatsCommand prints the global summary or the daily rollups.
type StatsCommand struct {
	Daily       bool `long:"daily" description:"Show per-day rollups"`
	Materialize bool `long:"materialize" description:"Rewrite the stored statistics table (implies --daily)"`

	env *environment
}

// ReportCommand renders report artifacts.
type ReportCommand struct {
	Format  string `long:"format" description:"Report format: pdf | excel" default:"pdf"`
	History bool   `long:"history" description:"Render the whole history as a spreadsheet"`

	env *environment
}

// CountVideoCommand counts fruit across sampled video frames.
type CountVideoCommand struct {
	Video    string `long:"video" description:"Path to the video" required:"true"`
	Interval int    `long:"interval" description:"Process every Nth frame (0 uses the configured step)" default:"0"`

	env *environment
}
