// ABOUTME: Root CLI command wiring global flags and all subcommands
// ABOUTME: Pipeline commands (download, extract, index, imgindex) feed the chat and serve front ends
package commands

import (
	"github.com/spf13/cobra"
)

const banner = `
 █████╗ ██████╗  ██████╗██╗  ██╗██╗      ██████╗  ██████╗ ██╗ ██████╗
██╔══██╗██╔══██╗██╔════╝██║  ██║██║     ██╔═══██╗██╔════╝ ██║██╔════╝
███████║██████╔╝██║     ███████║██║     ██║   ██║██║  ███╗██║██║
██╔══██║██╔══██╗██║     ██╔══██║██║     ██║   ██║██║   ██║██║██║
██║  ██║██║  ██║╚██████╗██║  ██║███████╗╚██████╔╝╚██████╔╝██║╚██████╗
╚═╝  ╚═╝╚═╝  ╚═╝ ╚═════╝╚═╝  ╚═╝╚══════╝ ╚═════╝  ╚═════╝ ╚═╝ ╚═════╝
`

// Global flags shared by all commands
var (
	verbose      bool
	quiet        bool
	outputFormat string
)

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archlogic",
		Short: "Retrieval-augmented assistant for architectural case studies",
		Long: banner + `
ArchLogic turns a corpus of architectural case studies into a grounded
question-answering assistant. The pipeline downloads project images and
descriptions, extracts design-logic tuples with an LLM, indexes them for
dense and image-based retrieval, and serves a chatbot that cites the cases
behind every answer.

Typical flow:
  archlogic download --manifest data/wikiarch.json
  archlogic extract
  archlogic index build
  archlogic imgindex build
  archlogic chat`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-essential output")
	cmd.PersistentFlags().StringVar(&outputFormat, "format", "auto", "Output format: auto, table, json")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	cmd.AddCommand(NewDownloadCmd())
	cmd.AddCommand(NewExtractCmd())
	cmd.AddCommand(NewIndexCmd())
	cmd.AddCommand(NewImgIndexCmd())
	cmd.AddCommand(NewProjectsCmd())
	cmd.AddCommand(NewSearchCmd())
	cmd.AddCommand(NewChatCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}
