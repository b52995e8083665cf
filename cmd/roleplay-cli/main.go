// Package main 终端客户端：开始会话、对话、查看反馈并推进到下一个角色
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version 版本信息，构建时注入
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:           "roleplay-cli",
		Short:         "Practice conversations with AI personas",
		Long:          "roleplay-cli talks to roleplay-coach-api: start persona conversations, chat, review feedback and move through a scenario.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configDir, "config-dir", "configs", "directory containing config.yaml")
	cmd.PersistentFlags().StringVar(&opts.baseURL, "api-url", "", "API base URL (overrides client.base_url)")
	cmd.PersistentFlags().StringVar(&opts.token, "token", "", "bearer token (overrides client.token)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newStartCmd(opts))
	cmd.AddCommand(newChatCmd(opts))
	cmd.AddCommand(newFeedbackCmd(opts))
	cmd.AddCommand(newNextCmd(opts))
	cmd.AddCommand(newReportCmd(opts))
	cmd.AddCommand(newListCmd(opts))
	cmd.AddCommand(newWatchCmd(opts))
	cmd.AddCommand(newCloseCmd(opts))
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "roleplay-cli %s (built: %s)\n", Version, BuildTime)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render("error: "+err.Error()))
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
