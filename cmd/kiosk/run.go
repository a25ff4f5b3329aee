package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/fd1az/chswap-kiosk/business/swap/app"
	swapDI "github.com/fd1az/chswap-kiosk/business/swap/di"
	"github.com/fd1az/chswap-kiosk/business/swap/domain"
	"github.com/fd1az/chswap-kiosk/pkg/ui"
)

var cliMode bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the interactive kiosk",
	Long: `Run the kiosk. The dashboard is the default; --cli switches to a
line-oriented console that reads commands from stdin.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		if cliMode {
			return runCLI(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		}
		if !isatty.IsTerminal(os.Stdin.Fd()) {
			return fmt.Errorf("the dashboard needs a terminal, use --cli")
		}
		return runTUI(ctx)
	},
}

func init() {
	runCmd.Flags().BoolVar(&cliMode, "cli", false, "Run in CLI mode with logs (no TUI)")
}

func runTUI(ctx context.Context) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	k, err := bootstrap(ctx, bootOptions{tuiMode: true})
	if err != nil {
		return err
	}
	defer k.close(ctx)
	k.serveHealth(ctx)

	orchestrator := swapDI.GetOrchestrator(k.mono.Services())

	// Modules start once the welcome screen completes
	errCh := make(chan error, 1)
	ui.OnStartModules = func() {
		if err := k.start(ctx); err != nil {
			ui.Send(ui.StartupMsg{Step: "chain", Status: "failed", Message: err.Error()})
			errCh <- err
		}
	}

	runErr := ui.Run(ctx, orchestrator)
	interrupted := ctx.Err() != nil
	stop()
	orchestrator.Wait()

	if runErr != nil && !interrupted {
		return fmt.Errorf("TUI error: %w", runErr)
	}

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

const cliHelp = `commands:
  buy | sell        switch direction
  amount <value>    set the amount to pay
  go                approve or exchange
  view              show the current state
  clear             dismiss the last error
  help              show this help
  quit              exit`

func runCLI(ctx context.Context, in io.Reader, out io.Writer) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	k, err := bootstrap(ctx, bootOptions{})
	if err != nil {
		return err
	}
	defer k.close(ctx)
	k.serveHealth(ctx)

	if err := k.start(ctx); err != nil {
		return err
	}
	orchestrator := swapDI.GetOrchestrator(k.mono.Services())
	defer func() {
		stop()
		orchestrator.Wait()
	}()

	fmt.Fprintln(out, cliHelp)

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := handleLine(ctx, orchestrator, out, line); quit {
				return nil
			}
		}
	}
}

// consoleControls is what the console drives.
type consoleControls interface {
	app.Controls
	ClearError()
}

// handleLine runs one console command and reports whether to exit.
func handleLine(ctx context.Context, o consoleControls, out io.Writer, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	var err error
	switch strings.ToLower(fields[0]) {
	case "buy", "sell":
		d, _ := domain.ParseDirection(fields[0])
		err = o.SetDirection(ctx, d)
	case "amount":
		if len(fields) < 2 {
			fmt.Fprintln(out, "usage: amount <value>")
			return false
		}
		o.SetInput(ctx, fields[1])
	case "go":
		err = o.Trigger(ctx)
	case "view":
	case "clear":
		o.ClearError()
	case "help":
		fmt.Fprintln(out, cliHelp)
		return false
	case "quit", "exit":
		return true
	default:
		fmt.Fprintf(out, "unknown command %q, try help\n", fields[0])
		return false
	}

	if err != nil {
		// The reporter already printed orchestrator errors.
		return false
	}
	printView(out, o.View())
	return false
}

func printView(out io.Writer, v app.View) {
	output := v.Output
	if output == "" {
		output = "-"
	}

	fmt.Fprintf(out, "%s  pay %s %s (balance %s)  receive %s %s (balance %s)",
		color.CyanString(strings.ToUpper(v.Direction.String())),
		orDash(v.Input), v.InputSymbol, v.InputBalance,
		output, v.OutputSymbol, v.OutputBalance,
	)
	if v.Fee != "" {
		fmt.Fprintf(out, "  fee %s", v.Fee)
	}
	fmt.Fprintln(out)

	label := v.ActionLabel
	switch {
	case v.Loading:
		label = color.YellowString(label)
	case v.CanTrigger:
		label = color.GreenString(label)
	}
	fmt.Fprintf(out, "  [%s]", label)
	if v.NeedsAuthorization {
		fmt.Fprint(out, "  approval required")
	}
	if v.ExplorerURL != "" {
		fmt.Fprintf(out, "  %s", v.ExplorerURL)
	}
	fmt.Fprintln(out)

	if v.Error != nil {
		fmt.Fprintf(out, "  %s %s\n", color.RedString("error [%s]", v.Error.Code), v.Error.Message)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
