package image

import (
	"github.com/spf13/cobra"

	"github.com/herdwatch/herdwatch-go/internal/analysis"
	"github.com/herdwatch/herdwatch-go/internal/conf"
)

// Command creates a new command for analyzing a single image file.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image [input.jpg]",
		Short: "Analyze an image file",
		Long:  `Run detection, identification and health assessment over a single image and print the result. Nothing is written to the database.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return analysis.ImageAnalysis(settings, args[0])
		},
	}

	return cmd
}
