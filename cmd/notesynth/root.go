package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "notesynth",
	Short: "Turn sheet music images and MIDI files into audio",
	Long: `notesynth recognizes notes on score images, renders them with FluidSynth
and keeps a per-user history of the resulting recordings.

Settings come from NOTESYNTH_* environment variables.`,
	SilenceUsage: true,
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}
