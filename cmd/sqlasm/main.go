package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"
)

// Context represents the global context for commands
type Context struct {
	Config  string
	Verbose bool
	Quiet   bool
}

var (
	infoColor    = color.New(color.FgBlue)
	successColor = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed)
)

// Infof prints progress in verbose mode. Diagnostics go to stderr so that
// stdout carries only SQL or query results.
func (c *Context) Infof(format string, args ...any) {
	if c.Verbose && !c.Quiet {
		infoColor.Fprintf(os.Stderr, format+"\n", args...)
	}
}

func (c *Context) Successf(format string, args ...any) {
	if !c.Quiet {
		successColor.Fprintf(os.Stderr, format+"\n", args...)
	}
}

func (c *Context) Warnf(format string, args ...any) {
	if !c.Quiet {
		warnColor.Fprintf(os.Stderr, format+"\n", args...)
	}
}

// Errorf prints a failure. It is shown even in quiet mode.
func (c *Context) Errorf(format string, args ...any) {
	errorColor.Fprintf(os.Stderr, format+"\n", args...)
}

// CLI represents the command-line interface
var CLI struct {
	Config   string      `help:"Configuration file path" default:"sqlasm.yaml"`
	Verbose  bool        `help:"Enable verbose output" short:"v"`
	Quiet    bool        `help:"Suppress output" short:"q"`
	Assemble AssembleCmd `cmd:"" help:"Assemble a document into a runnable SQL statement"`
	Check    CheckCmd    `cmd:"" help:"Assemble every top-level document and report failures"`
	List     ListCmd     `cmd:"" help:"List fragments with their definitions, includes and parameters"`
	Query    QueryCmd    `cmd:"" help:"Assemble a document and execute it"`
	Version  VersionCmd  `cmd:"" help:"Show version information"`
}

// VersionCmd represents the version command
type VersionCmd struct{}

// Run executes the version command
func (cmd *VersionCmd) Run() error {
	fmt.Println("sqlasm v0.1.0")
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("sqlasm"),
		kong.Description("Assemble SQL reports from reusable CTE fragments."),
	)

	appCtx := &Context{
		Config:  CLI.Config,
		Verbose: CLI.Verbose,
		Quiet:   CLI.Quiet,
	}

	err := ctx.Run(appCtx)
	if err != nil {
		appCtx.Errorf("Error: %v", err)
		os.Exit(1)
	}
}
