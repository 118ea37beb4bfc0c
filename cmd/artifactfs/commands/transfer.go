package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	putRecursive bool
	getRecursive bool
	cpRecursive  bool
	rmRecursive  bool
)

var putCmd = &cobra.Command{
	Use:   "put <local> <remote>",
	Short: "Upload a file or directory to storage",
	Long: `Upload a file or directory to storage.

Examples:
  # Upload one file
  artifactfs put model.onnx models/resnet/v1/model.onnx

  # Upload a directory tree
  artifactfs put ./artifacts models/resnet/v1 -r`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, _, err := loadFileSystem(cmd.Context())
		if err != nil {
			return err
		}
		return fs.Put(cmd.Context(), args[0], args[1], putRecursive)
	},
}

var getCmd = &cobra.Command{
	Use:   "get <remote> <local>",
	Short: "Download a file or prefix from storage",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, _, err := loadFileSystem(cmd.Context())
		if err != nil {
			return err
		}
		return fs.Get(cmd.Context(), args[1], args[0], getRecursive)
	},
}

var cpCmd = &cobra.Command{
	Use:   "cp <src> <dest>",
	Short: "Copy objects within storage",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, _, err := loadFileSystem(cmd.Context())
		if err != nil {
			return err
		}
		return fs.Copy(cmd.Context(), args[0], args[1], cpRecursive)
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <path>",
	Short: "Delete an object or prefix from storage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, _, err := loadFileSystem(cmd.Context())
		if err != nil {
			return err
		}
		return fs.Rm(cmd.Context(), args[0], rmRecursive)
	},
}

var existsCmd = &cobra.Command{
	Use:   "exists <path>",
	Short: "Check whether a path exists in storage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, _, err := loadFileSystem(cmd.Context())
		if err != nil {
			return err
		}
		ok, err := fs.Exists(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(ok)
		return nil
	},
}

func init() {
	putCmd.Flags().BoolVarP(&putRecursive, "recursive", "r", false, "Upload a directory tree")
	getCmd.Flags().BoolVarP(&getRecursive, "recursive", "r", false, "Download everything under the prefix")
	cpCmd.Flags().BoolVarP(&cpRecursive, "recursive", "r", false, "Copy everything under the prefix")
	rmCmd.Flags().BoolVarP(&rmRecursive, "recursive", "r", false, "Delete everything under the prefix")
}
