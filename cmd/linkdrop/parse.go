package main

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"text/tabwriter"

	"linkdrop/internal/logger"
	"linkdrop/internal/xray"
	"linkdrop/internal/xray/parser"

	"github.com/spf13/cobra"
)

var parseOutbound bool

var parseCmd = &cobra.Command{
	Use:   "parse <link>",
	Short: "Parse a share link",
	Long:  `Decodes a vless, vmess, trojan or ss link and prints what it describes. Use --outbound to print the xray outbound built from it.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		d, err := parser.Parse(args[0])
		if err != nil {
			logger.Log.Fatalf("Parse failed: %v", err)
		}

		host, port := d.Endpoint()
		_, structured := xray.Build(d)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "Protocol:\t%s\n", d.Protocol())
		fmt.Fprintf(w, "Name:\t%s\n", d.DisplayName())
		fmt.Fprintf(w, "Server:\t%s\n", net.JoinHostPort(host, strconv.Itoa(port)))
		fmt.Fprintf(w, "Fingerprint:\t%s\n", parser.Fingerprint(d))
		if structured {
			fmt.Fprintln(w, "Config:\tstructured")
		} else {
			fmt.Fprintln(w, "Config:\traw link")
		}
		w.Flush()

		if !parseOutbound {
			return
		}
		out, err := xray.OutboundFor(d)
		if err != nil {
			logger.Log.Fatalf("Building outbound failed: %v", err)
		}
		b, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			logger.Log.Fatalf("Encoding outbound failed: %v", err)
		}
		fmt.Println(string(b))
	},
}

func init() {
	parseCmd.Flags().BoolVar(&parseOutbound, "outbound", false, "Print the xray outbound as JSON")
	rootCmd.AddCommand(parseCmd)
}
