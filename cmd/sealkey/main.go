// Command sealkey encrypts a wallet private key with the custody master key
// and prints the value to store in wallets.encrypted_key. The key is read
// from stdin so it never lands in shell history.
package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/inscribe-bot/backend/internal/config"
	"github.com/inscribe-bot/backend/internal/custody"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()

	keys, err := custody.NewLocalCustody(cfg.CustodyKeyHex)
	if err != nil {
		log.Fatal("failed to init key custody", zap.Error(err))
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		log.Fatal("failed to read key from stdin", zap.Error(err))
	}

	sealed, err := keys.SealHexKey(line)
	if err != nil {
		log.Fatal("failed to seal key", zap.Error(err))
	}
	fmt.Println(sealed)
}
