package cmd

import (
	"fmt"
	"log"
	"net/http"

	"github.com/ardanlabs/shardchain/foundation/blockchain/signature"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

type wallet struct {
	ID       signature.ID               `json:"id"`
	Name     string                     `json:"name"`
	Balances map[uint64]decimal.Decimal `json:"balances"`
}

type wallets struct {
	LatestBlock signature.ID `json:"latest_block"`
	Uncommitted int          `json:"uncommitted"`
	Wallets     []wallet     `json:"wallets"`
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print your balance.",
	Run:   balanceRun,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}

func balanceRun(cmd *cobra.Command, args []string) {
	privateKey, err := signature.LoadPrivateKey(getPrivateKeyPath())
	if err != nil {
		log.Fatal(err)
	}

	id := signature.WalletID(&privateKey.PublicKey)
	fmt.Println("For Wallet:", id)

	var resp wallets
	if err := call(http.MethodGet, "/v1/wallets/list/"+id.String(), nil, &resp); err != nil {
		log.Fatal(err)
	}

	fmt.Println("Latest Block:", resp.LatestBlock)
	for _, w := range resp.Wallets {
		for currency, balance := range w.Balances {
			fmt.Printf("currency %d: %s\n", currency, balance)
		}
	}
}
