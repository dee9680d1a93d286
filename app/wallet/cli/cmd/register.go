package cmd

import (
	"fmt"
	"log"
	"net/http"

	"github.com/ardanlabs/shardchain/foundation/blockchain/database"
	"github.com/ardanlabs/shardchain/foundation/blockchain/signature"
	"github.com/spf13/cobra"
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register the wallet with the shard",
	Run:   registerRun,
}

func init() {
	rootCmd.AddCommand(registerCmd)
}

func registerRun(cmd *cobra.Command, args []string) {
	privateKey, err := signature.LoadPrivateKey(getPrivateKeyPath())
	if err != nil {
		log.Fatal(err)
	}

	sp, err := database.NewSignedPayload(database.NewWalletRegistration(&privateKey.PublicKey), nil)
	if err != nil {
		log.Fatal(err)
	}

	var resp submitResponse
	if err := call(http.MethodPost, "/v1/payload/submit", sp, &resp); err != nil {
		log.Fatal(err)
	}

	fmt.Println("Wallet:", signature.WalletID(&privateKey.PublicKey))
	fmt.Println(resp.Status, resp.Key)
}
