package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info <path>",
	Short: "Show metadata for objects under a storage path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, _, err := loadFileSystem(cmd.Context())
		if err != nil {
			return err
		}
		infos, err := fs.FindInfo(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		for _, info := range infos {
			fmt.Printf("%s\t%d\t%s\t%s\n", info.Name, info.Size, info.ObjectType, info.Created)
		}
		return nil
	},
}
