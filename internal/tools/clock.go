package tools

import (
	"context"
	"time"
)

// Clock reports the current date and time. The clock source is injectable so
// tests get deterministic output.
type Clock struct {
	now func() time.Time
}

// NewClock creates the date/time tool using the system clock.
func NewClock() *Clock {
	return &Clock{now: time.Now}
}

// WithNow overrides the clock source. For tests.
func (c *Clock) WithNow(now func() time.Time) *Clock {
	c.now = now
	return c
}

func (c *Clock) Name() string       { return "current_date" }
func (c *Clock) Category() Category { return CategoryUtility }

func (c *Clock) Description() string {
	return "Get the current date and time"
}

func (c *Clock) Parameters() []Parameter {
	return []Parameter{
		{
			Name:        "format",
			Type:        "string",
			Description: "Output format: date, time, datetime, or a Go reference layout",
			Required:    false,
			Default:     "datetime",
		},
	}
}

// Execute implements Tool.
func (c *Clock) Execute(_ context.Context, args map[string]any) Result {
	now := c.now()
	switch format := stringArg(args, "format", "datetime"); format {
	case "date":
		return Success(now.Format("2006-01-02"))
	case "time":
		return Success(now.Format("15:04:05"))
	case "datetime":
		return Success(now.Format("2006-01-02 15:04:05"))
	default:
		return Success(now.Format(format))
	}
}
