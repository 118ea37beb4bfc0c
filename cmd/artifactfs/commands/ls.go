package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var lsInfo bool

var lsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List objects under a storage path",
	Long: `List objects under a storage path.

Examples:
  # List everything in the bucket
  artifactfs ls

  # List one artifact directory with sizes
  artifactfs ls models/resnet/v1 --info`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLs,
}

func init() {
	lsCmd.Flags().BoolVar(&lsInfo, "info", false, "Show size and creation time per object")
}

func runLs(cmd *cobra.Command, args []string) error {
	fs, _, err := loadFileSystem(cmd.Context())
	if err != nil {
		return err
	}

	prefix := ""
	if len(args) == 1 {
		prefix = args[0]
	}

	if !lsInfo {
		names, err := fs.Find(cmd.Context(), prefix)
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	}

	infos, err := fs.FindInfo(cmd.Context(), prefix)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Name", "Size", "Created"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	for _, info := range infos {
		table.Append([]string{info.Name, strconv.FormatInt(info.Size, 10), info.Created})
	}
	table.Render()
	return nil
}
