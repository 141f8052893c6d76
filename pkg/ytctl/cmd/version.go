// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telekom/ytctl/pkg/version"
	"github.com/telekom/ytctl/pkg/ytctl/output"
)

func NewVersionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show ytctl version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.GetBuildInfo()

			// The runtime carries the configured writer; fall back to cobra's.
			rt, _ := getRuntime(cmd)
			writer := cmd.OutOrStdout()
			format := ""
			if rt != nil {
				writer = rt.Writer()
				format = rt.outputFormat
			}

			switch format {
			case "json":
				return output.WriteObject(writer, output.FormatJSON, info)
			case "yaml":
				return output.WriteObject(writer, output.FormatYAML, info)
			case "", "table":
				_, _ = fmt.Fprintln(writer, info.String())
				return nil
			default:
				return fmt.Errorf("unknown output format: %s", format)
			}
		},
	}
	return cmd
}
