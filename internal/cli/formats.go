package cli

import (
	"github.com/spf13/cobra"

	"heic_converter/internal/codec"
	"heic_converter/internal/packager"
)

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List supported conversions and delivery modes",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Println("Conversions:")
		cmd.Printf("  heic -> %s\n", codec.PNG)
		cmd.Printf("  heic -> %s\n", codec.JPEG)
		if codec.HEICEncodingAvailable {
			cmd.Printf("  %s, %s -> heic\n", codec.PNG, codec.JPEG)
		} else {
			cmd.Printf("  %s, %s -> heic (unavailable: build with -tags heic)\n", codec.PNG, codec.JPEG)
		}
		cmd.Println("Delivery modes:")
		for _, m := range []packager.Mode{packager.Individual, packager.Zip, packager.PDF} {
			cmd.Printf("  %s\n", m)
		}
	},
}

func init() {
	rootCmd.AddCommand(formatsCmd)
}
