package main

import (
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/sercano/qahub/ui"
	"github.com/sercano/qahub/utils"
)

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Start the full-screen terminal UI",
	RunE: func(cmd *cobra.Command, args []string) error {
		// The UI owns the terminal; route log output away from it.
		logger := utils.NewLogger(cfg.LogLevel, cfg.LogFormat)
		logger.SetOutput(io.Discard)
		utils.SetLogger(logger)

		app := ui.NewApp(apiClient, sess, stateStore)
		program := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
		if _, err := program.Run(); err != nil {
			return fmt.Errorf("running UI: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(uiCmd)
}
