package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/user/cipherbench/internal/output"
)

var (
	outDir       string
	runID        string
	removeSource bool
)

var rootCmd = &cobra.Command{
	Use:   "splitcsv <samples.csv>",
	Short: "Split a raw sample CSV into one file per profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := output.SplitByProfile(args[0], outDir, runID, removeSource)
		for _, p := range paths {
			fmt.Println(p)
		}
		return err
	},
}

func init() {
	rootCmd.Flags().StringVarP(&outDir, "dir", "d", "stats/by-profile", "Output directory")
	rootCmd.Flags().StringVar(&runID, "run", "", "Keep only rows of this run ID")
	rootCmd.Flags().BoolVar(&removeSource, "remove", false, "Delete the source file after splitting")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
