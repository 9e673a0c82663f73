package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"
)

// normalizeArgs moves flags in front of positional arguments. The flag package
// stops at the first positional, so "filter fix -limit 5" would otherwise
// ignore -limit.
func normalizeArgs(fs *flag.FlagSet, args []string) []string {
	boolFlags := make(map[string]bool)
	fs.VisitAll(func(f *flag.Flag) {
		if bf, ok := f.Value.(interface{ IsBoolFlag() bool }); ok && bf.IsBoolFlag() {
			boolFlags[f.Name] = true
		}
	})

	var flags, positional []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		// Queries may start with ":" or "!", never with "-", so anything
		// dash-prefixed is a flag.
		if strings.HasPrefix(arg, "-") && arg != "-" {
			flags = append(flags, arg)
			name := strings.TrimLeft(arg, "-")
			if strings.Contains(name, "=") {
				continue
			}
			if !boolFlags[name] && i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
			continue
		}
		positional = append(positional, arg)
	}
	return append(flags, positional...)
}

// CLIOutput prints either human-readable text or JSON.
type CLIOutput struct {
	w        io.Writer
	errW     io.Writer
	jsonMode bool
}

func NewCLIOutput(w, errW io.Writer, jsonMode bool) *CLIOutput {
	return &CLIOutput{w: w, errW: errW, jsonMode: jsonMode}
}

// Print writes human, or data as JSON in JSON mode.
func (c *CLIOutput) Print(human string, data any) error {
	if c.jsonMode {
		return c.printJSON(data)
	}
	_, err := io.WriteString(c.w, human)
	return err
}

// Error reports a failure with a machine-readable code.
func (c *CLIOutput) Error(message, code string) {
	if c.jsonMode {
		_ = c.printJSON(map[string]any{
			"success": false,
			"error":   message,
			"code":    code,
		})
		return
	}
	fmt.Fprintf(c.errW, "Error: %s\n", message)
}

func (c *CLIOutput) printJSON(data any) error {
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format JSON: %w", err)
	}
	_, err = fmt.Fprintln(c.w, string(out))
	return err
}

// Error codes
const (
	ErrCodeNotARepo    = "NOT_A_REPO"
	ErrCodeBadQuery    = "BAD_QUERY"
	ErrCodeNoHistory   = "NO_HISTORY"
	ErrCodeInterrupted = "INTERRUPTED"
	ErrCodeFailed      = "FAILED"
)
