package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"weft/internal/account"
	"weft/internal/lifecycle"
	"weft/internal/version"
)

func newWorkspacesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "workspaces",
		Short: "List workspaces visible to the configured token",
		RunE: func(cmd *cobra.Command, args []string) error {
			comps, err := ctx.components(cmd)
			if err != nil {
				return err
			}
			workspaces, err := comps.Client.ListWorkspaces(cmd.Context(), comps.Settings.Token)
			if err != nil {
				return err
			}
			return emit(cmd, ctx, workspaces, func(out io.Writer) error {
				if len(workspaces) == 0 {
					fmt.Fprintln(out, "No workspaces")
					return nil
				}
				fmt.Fprintln(out, renderWorkspaceTable(workspaces))
				return nil
			})
		},
	}
}

func renderWorkspaceTable(workspaces []account.WorkspaceInfo) string {
	rows := make([][]string, 0, len(workspaces))
	for _, ws := range workspaces {
		rows = append(rows, []string{
			ws.Workspace,
			ws.ID(),
			titleLabel(ws.Mode),
			ws.Region,
			formatPercent(ws.Progress),
			versionLabel(ws.Version),
			ws.Endpoint.External,
		})
	}
	return renderTable(
		[]string{"Workspace", "ID", "Mode", "Region", "Progress", "Version", "Endpoint"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	)
}

func newEndpointCommand(ctx *commandContext) *cobra.Command {
	var kindFlag string
	var workspaceFlag string
	var timeoutFlag time.Duration

	cmd := &cobra.Command{
		Use:   "endpoint",
		Short: "Resolve the transactor endpoint, retrying while the account service is unreachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			comps, err := ctx.components(cmd)
			if err != nil {
				return err
			}
			kind := comps.Settings.EndpointKind
			if strings.TrimSpace(kindFlag) != "" {
				if kind, err = account.ParseEndpointKind(kindFlag); err != nil {
					return err
				}
			}
			timeout := comps.Settings.ResolveTimeout
			if cmd.Flags().Changed("timeout") {
				timeout = timeoutFlag
			}
			bearer := comps.Settings.Token
			if workspace := strings.TrimSpace(workspaceFlag); workspace != "" {
				if comps.Tokens == nil {
					return errors.New("account.token_secret (or WEFT_TOKEN_SECRET) is required to resolve a workspace endpoint")
				}
				if bearer, err = comps.Tokens.Sign(workspace); err != nil {
					return err
				}
			}
			url, err := comps.Resolver.Resolve(cmd.Context(), bearer, kind, timeout)
			if err != nil {
				return err
			}
			result := struct {
				Kind     account.EndpointKind `json:"kind"`
				Endpoint string               `json:"endpoint"`
			}{Kind: kind, Endpoint: url}
			return emit(cmd, ctx, result, func(out io.Writer) error {
				fmt.Fprintln(out, url)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&kindFlag, "kind", "", "Endpoint kind: internal or external (defaults to worker.endpoint_kind)")
	cmd.Flags().StringVar(&workspaceFlag, "workspace", "", "Resolve for this workspace with a token signed by account.token_secret")
	cmd.Flags().DurationVar(&timeoutFlag, "timeout", 0, "Give up after this long; zero or negative retries forever")
	return cmd
}

func newPendingCommand(ctx *commandContext) *cobra.Command {
	var operationFlag string
	var regionFlag string

	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Claim the next pending workspace for this worker's region and version",
		Long: "Claim the next pending workspace for this worker's region and version.\n" +
			"The account service hands the workspace to this caller, so use it only for debugging.",
		RunE: func(cmd *cobra.Command, args []string) error {
			comps, err := ctx.components(cmd)
			if err != nil {
				return err
			}
			op := comps.Settings.Operation
			if strings.TrimSpace(operationFlag) != "" {
				if op, err = account.ParseOperation(operationFlag); err != nil {
					return err
				}
			}
			region := comps.Settings.Region
			if cmd.Flags().Changed("region") {
				region = strings.TrimSpace(regionFlag)
			}
			ws, err := comps.Client.GetPendingWorkspace(cmd.Context(), comps.Settings.Token, region, comps.Settings.Version, op)
			if err != nil {
				return err
			}
			return emit(cmd, ctx, ws, func(out io.Writer) error {
				if ws == nil {
					fmt.Fprintln(out, "No pending workspace")
					return nil
				}
				fmt.Fprintln(out, renderWorkspaceTable([]account.WorkspaceInfo{*ws}))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&operationFlag, "operation", "", "Operation filter: create, upgrade, or all")
	cmd.Flags().StringVar(&regionFlag, "region", "", "Region to claim from (defaults to worker.region)")
	return cmd
}

func newHandshakeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "handshake",
		Short: "Announce this worker to the account service",
		RunE: func(cmd *cobra.Command, args []string) error {
			comps, err := ctx.components(cmd)
			if err != nil {
				return err
			}
			if err := comps.Claimer.Handshake(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Handshake sent (region %q, version %s, operation %s)\n",
				comps.Settings.Region, comps.Settings.Version, comps.Settings.Operation)
			return nil
		},
	}
}

func newReportCommand(ctx *commandContext) *cobra.Command {
	var progressFlag float64
	var messageFlag string

	cmd := &cobra.Command{
		Use:   "report <workspace-id> <event>",
		Short: "Send a lifecycle event for a workspace",
		Long: "Send a lifecycle event for a workspace.\n" +
			"Events: ping, create-started, upgrade-started, progress, create-done, upgrade-done.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			workspaceID := strings.TrimSpace(args[0])
			if workspaceID == "" {
				return errors.New("workspace id is required")
			}
			event, err := lifecycle.ParseEvent(args[1])
			if err != nil {
				return err
			}
			comps, err := ctx.components(cmd)
			if err != nil {
				return err
			}
			if err := comps.Reporter.Report(cmd.Context(), workspaceID, event, progressFlag, messageFlag); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reported %s for %s\n", titleLabel(string(event)), workspaceID)
			return nil
		},
	}

	cmd.Flags().Float64Var(&progressFlag, "progress", 0, "Progress percentage (0-100)")
	cmd.Flags().StringVar(&messageFlag, "message", "", "Optional progress message")
	return cmd
}

func formatPercent(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64) + "%"
}

func versionLabel(v *version.Vector) string {
	if v == nil {
		return "-"
	}
	return v.String()
}
