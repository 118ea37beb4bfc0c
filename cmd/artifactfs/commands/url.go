package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var urlExpiry time.Duration

var urlCmd = &cobra.Command{
	Use:   "url <path>",
	Short: "Generate a presigned download URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, _, err := loadFileSystem(cmd.Context())
		if err != nil {
			return err
		}
		signed, err := fs.GeneratePresignedURL(cmd.Context(), args[0], urlExpiry)
		if err != nil {
			return err
		}
		fmt.Println(signed)
		return nil
	},
}

func init() {
	urlCmd.Flags().DurationVar(&urlExpiry, "expiry", 0, "URL lifetime (default 10m)")
}
