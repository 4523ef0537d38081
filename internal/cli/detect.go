package cli

import (
	"context"
	"path/filepath"

	"fruitcounter/internal/dto"
)

// Execute implements the go-flags Commander interface for DetectCommand.
func (c *DetectCommand) Execute(args []string) error {
	ctx := context.Background()
	manager, done, err := c.env.open(ctx)
	if err != nil {
		return err
	}
	defer done()

	res, err := manager.ProcessImage(ctx, c.Image)
	if err != nil {
		return err
	}

	if c.env.jsonOutput() {
		return c.env.printJSON(dto.NewDetectionResponse(res.Record, res.Entry))
	}

	c.env.printf("Request:     %d\n", res.Entry.ID)
	c.env.printf("Image:       %s\n", filepath.Base(c.Image))
	c.env.printf("Total:       %d\n", res.Record.TotalCount)
	res.Record.CountsByClass.Each(func(class string, n int) {
		c.env.printf("  %-12s %d\n", class, n)
	})
	c.env.printf("Annotated:   %s\n", res.Record.AnnotatedImage)
	c.env.printf("Time:        %.2fs\n", res.Entry.ProcessingTime)
	return nil
}

// Execute implements the go-flags Commander interface for CountVideoCommand.
func (c *CountVideoCommand) Execute(args []string) error {
	ctx := context.Background()
	manager, done, err := c.env.open(ctx)
	if err != nil {
		return err
	}
	defer done()

	counts, err := manager.CountVideo(ctx, c.Video, c.Interval)
	if err != nil {
		return err
	}

	if c.env.jsonOutput() {
		return c.env.printJSON(map[string]any{"total": counts.Total(), "by_fruit": counts})
	}

	c.env.printf("Total:       %d\n", counts.Total())
	counts.Each(func(class string, n int) {
		c.env.printf("  %-12s %d\n", class, n)
	})
	return nil
}
