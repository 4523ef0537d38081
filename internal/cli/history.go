package cli

import (
	"context"
	"fmt"

	"fruitcounter/internal/dto"
)

// Execute implements the go-flags Commander interface for HistoryCommand.
func (c *HistoryCommand) Execute(args []string) error {
	if c.Limit < 0 {
		return fmt.Errorf("--limit must not be negative")
	}

	ctx := context.Background()
	manager, done, err := c.env.open(ctx)
	if err != nil {
		return err
	}
	defer done()

	entries, err := manager.History(ctx, c.Limit)
	if err != nil {
		return err
	}

	if c.env.jsonOutput() {
		return c.env.printJSON(entries)
	}

	if len(entries) == 0 {
		c.env.printf("No requests yet.\n")
		return nil
	}
	c.env.printf("%-6s %-20s %-40s %6s %8s\n", "ID", "TIME", "FILE", "FRUITS", "SECONDS")
	for _, e := range entries {
		c.env.printf("%-6d %-20s %-40s %6d %8.2f\n", e.ID, e.Timestamp.UTC().Format("2006-01-02 15:04:05"), e.Filename, e.TotalCount, e.ProcessingTime)
	}
	return nil
}

// Execute implements the go-flags Commander interface for StatsCommand.
func (c *StatsCommand) Execute(args []string) error {
	ctx := context.Background()
	manager, done, err := c.env.open(ctx)
	if err != nil {
		return err
	}
	defer done()

	if c.Daily || c.Materialize {
		load := manager.DailyStatistics
		if c.Materialize {
			load = manager.MaterializeDailyStatistics
		}
		daily, err := load(ctx)
		if err != nil {
			return err
		}
		if c.env.jsonOutput() {
			return c.env.printJSON(daily)
		}
		c.env.printf("%-12s %8s %8s  %s\n", "DATE", "REQUESTS", "FRUITS", "MOST COMMON")
		for _, d := range daily {
			c.env.printf("%-12s %8d %8d  %s\n", d.Date, d.TotalRequests, d.TotalFruitsDetected, d.MostCommonFruit)
		}
		return nil
	}

	summary, err := manager.Statistics(ctx)
	if err != nil {
		return err
	}
	if c.env.jsonOutput() {
		return c.env.printJSON(summary)
	}

	c.env.printf("Requests:    %d\n", summary.TotalRequests)
	c.env.printf("Fruits:      %d\n", summary.TotalFruits)
	c.env.printf("Average:     %.2f per request\n", summary.AverageFruitsPerRequest)
	c.env.printf("Most common: %s (%d)\n", summary.MostCommonFruit.Name, summary.MostCommonFruit.Count)
	summary.FruitStatistics.Each(func(class string, n int) {
		c.env.printf("  %-12s %d\n", class, n)
	})
	return nil
}

// Execute implements the go-flags Commander interface for ReportCommand.
func (c *ReportCommand) Execute(args []string) error {
	ctx := context.Background()
	manager, done, err := c.env.open(ctx)
	if err != nil {
		return err
	}
	defer done()

	var path string
	if c.History {
		path, err = manager.GenerateHistoryReport(ctx)
	} else {
		path, err = manager.GenerateReport(ctx, c.Format)
	}
	if err != nil {
		return err
	}

	if c.env.jsonOutput() {
		return c.env.printJSON(dto.NewReportResponse(path))
	}
	c.env.printf("%s\n", path)
	return nil
}
