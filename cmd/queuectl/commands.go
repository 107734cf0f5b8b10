package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/stemsi/help-queue/internal/model"
	"github.com/stemsi/help-queue/internal/service"
)

var errNotConfirmed = errors.New("reset not confirmed")

func newListCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pending help requests in queue order",
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, err := ctx.ensureQueue()
			if err != nil {
				return err
			}

			var reqs []model.HelpRequest
			if all {
				reqs, err = queue.ListAll(commandCtx(cmd))
			} else {
				reqs, err = queue.ListPending(commandCtx(cmd))
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(reqs) == 0 {
				if all {
					fmt.Fprintln(out, "No help requests yet.")
				} else {
					fmt.Fprintln(out, "No pending requests.")
				}
				return nil
			}
			fmt.Fprintln(out, renderRequests(reqs))
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include helped requests, in sheet order")
	return cmd
}

func newEnsureHeadersCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ensure-headers",
		Short: "Write the header row if it is missing or wrong",
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, err := ctx.ensureQueue()
			if err != nil {
				return err
			}
			if err := queue.EnsureHeaders(commandCtx(cmd)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Header row: "+strings.Join(model.Header, ", "))
			return nil
		},
	}
}

func newResetCommand(ctx *commandContext) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every help request, keeping the header row",
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, err := ctx.ensureQueue()
			if err != nil {
				return err
			}

			interactive := term.IsTerminal(int(os.Stdin.Fd()))
			if err := confirmReset(cmd.InOrStdin(), cmd.OutOrStdout(), interactive, yes); err != nil {
				return err
			}
			return runReset(cmd, queue)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func runReset(cmd *cobra.Command, queue *service.QueueService) error {
	if err := queue.ResetAll(commandCtx(cmd)); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "All requests cleared.")
	return nil
}

// confirmReset asks the operator to type the confirm word. Without a
// terminal the --yes flag is mandatory.
func confirmReset(in io.Reader, out io.Writer, interactive, yes bool) error {
	if yes {
		return nil
	}
	if !interactive {
		return fmt.Errorf("%w: stdin is not a terminal, pass --yes", errNotConfirmed)
	}

	fmt.Fprintf(out, "This deletes ALL help requests. Type %s to continue: ", model.ResetConfirmWord)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if strings.TrimSpace(line) != model.ResetConfirmWord {
		return errNotConfirmed
	}
	return nil
}
