// Command netsim is the driver program for the network simulator: it
// loads a declarative topology, brings it up, and prints each device's
// interfaces and each switch's MAC table (plus the event trace with
// --trace); ARP tables and routes are not printed — a library driver in the spirit of
// the teacher's examples/ directory (examples/stack, examples/bridge,
// examples/tap: runnable demonstrations, not a device-OS shell), wired
// to github.com/spf13/cobra the way ngcxy-dranet's cmd/dranetctl is.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "netsim",
	Short: "Run and inspect network topology simulations",
	Long:  "netsim builds a simulated network of hosts, switches and routers from a topology file and drives it through ARP, DHCP, DNS and forwarding scenarios.",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
}
