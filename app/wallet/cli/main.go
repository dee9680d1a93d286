// This program provides a command line wallet for a shard node.
package main

import "github.com/ardanlabs/shardchain/app/wallet/cli/cmd"

func main() {
	cmd.Execute()
}
