package cmd

import (
	"fmt"
	"log"
	"net/http"

	"github.com/ardanlabs/shardchain/foundation/blockchain/bank"
	"github.com/ardanlabs/shardchain/foundation/blockchain/database"
	"github.com/ardanlabs/shardchain/foundation/blockchain/signature"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	to       string
	currency uint64
	amount   string
)

type submitResponse struct {
	Status      string       `json:"status"`
	Key         signature.ID `json:"key"`
	Uncommitted int          `json:"uncommitted"`
}

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send currency to another wallet",
	Run:   sendRun,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&to, "to", "t", "", "Wallet id of the receiver.")
	sendCmd.Flags().Uint64VarP(&currency, "currency", "c", bank.BootstrapCurrency, "Currency to send.")
	sendCmd.Flags().StringVarP(&amount, "amount", "v", "", "Amount to send.")
	sendCmd.MarkFlagRequired("to")
	sendCmd.MarkFlagRequired("amount")
}

func sendRun(cmd *cobra.Command, args []string) {
	privateKey, err := signature.LoadPrivateKey(getPrivateKeyPath())
	if err != nil {
		log.Fatal(err)
	}

	toID, err := signature.ToID(to)
	if err != nil {
		log.Fatal(err)
	}

	value, err := decimal.NewFromString(amount)
	if err != nil {
		log.Fatal(err)
	}

	tr := database.Transfer{
		From:     signature.WalletID(&privateKey.PublicKey),
		To:       toID,
		Currency: currency,
		Amount:   value,
	}

	sig, err := tr.Sign(privateKey)
	if err != nil {
		log.Fatal(err)
	}

	sp, err := database.NewSignedPayload(tr, sig)
	if err != nil {
		log.Fatal(err)
	}

	var resp submitResponse
	if err := call(http.MethodPost, "/v1/payload/submit", sp, &resp); err != nil {
		log.Fatal(err)
	}

	fmt.Println(tr)
	fmt.Println(resp.Status, resp.Key)
}
