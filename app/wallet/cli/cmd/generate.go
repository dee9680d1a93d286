package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/ardanlabs/shardchain/foundation/blockchain/signature"
	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate new key pair",
	Run:   generateRun,
}

func init() {
	rootCmd.AddCommand(generateCmd)
}

func generateRun(cmd *cobra.Command, args []string) {
	path := getPrivateKeyPath()
	if _, err := os.Stat(path); err == nil {
		log.Fatalf("key file %s already exists", path)
	}

	privateKey, err := signature.GenerateKey()
	if err != nil {
		log.Fatal(err)
	}

	if err := signature.SavePrivateKey(path, privateKey); err != nil {
		log.Fatal(err)
	}

	fmt.Println(signature.WalletID(&privateKey.PublicKey))
}
