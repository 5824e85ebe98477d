// Package builtin provides the functions every catalog starts with.
package builtin

import (
	"context"
	"fmt"
	"time"

	"qwenlink/internal/tokenizer"
	"qwenlink/internal/tools"
)

// Plugin is the namespace of the built-in functions.
const Plugin = "builtin"

type nowArgs struct {
	Timezone string `json:"timezone" jsonschema:"description=IANA time zone such as Asia/Shanghai; defaults to local time"`
}

type countArgs struct {
	Text string `json:"text" jsonschema:"description=Text to measure,required"`
}

// Functions returns the built-in functions.
func Functions() []tools.Function {
	return []tools.Function{
		tools.NewFunc(Plugin, "now", "Returns the current date and time in RFC 3339 format.",
			tools.ParametersOf(nowArgs{}), now),
		tools.NewFunc(Plugin, "count_characters", "Counts the characters in a piece of text.",
			tools.ParametersOf(countArgs{}), countCharacters),
	}
}

// Register adds the built-in functions to c.
func Register(c *tools.Catalog) error {
	for _, fn := range Functions() {
		if err := c.Register(fn); err != nil {
			return err
		}
	}
	return nil
}

func now(_ context.Context, args map[string]any) (any, error) {
	t := time.Now()
	if tz, _ := args["timezone"].(string); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("unknown timezone %q", tz)
		}
		t = t.In(loc)
	}
	return t.Format(time.RFC3339), nil
}

func countCharacters(_ context.Context, args map[string]any) (any, error) {
	text, ok := args["text"].(string)
	if !ok {
		return nil, fmt.Errorf("text must be a string")
	}
	return tokenizer.LengthTokenizer{}.CountTokens(text), nil
}
