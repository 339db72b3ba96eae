package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "mq",
		Short:         "Medverus Query CLI (mq): authenticated multi-source medical queries",
		Long:          "mq (Medverus Query CLI) signs you in to the Medverus platform, dispatches queries across its content sources, and keeps a bounded local history of your sessions.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newLoginCmd(app),
		newLogoutCmd(app),
		newStatusCmd(app),
		newQueryCmd(app),
		newHistoryCmd(app),
	)

	return rootCmd
}
