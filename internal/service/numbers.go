package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
)

func generatePreOrderNo() string {
	return fmt.Sprintf("PO%s%s", time.Now().Format("20060102150405"), randNumeric(6))
}

func generateDepositIntentNo() string {
	return fmt.Sprintf("DI%s%s", time.Now().Format("20060102150405"), randNumeric(6))
}

func generateRemainingIntentNo() string {
	return fmt.Sprintf("RI%s%s", time.Now().Format("20060102150405"), randNumeric(6))
}

func generateBatchNo() string {
	return fmt.Sprintf("HB%s%s", time.Now().Format("20060102150405"), randNumeric(4))
}

func randNumeric(length int) string {
	var b strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			b.WriteString("0")
			continue
		}
		b.WriteString(fmt.Sprintf("%d", n.Int64()))
	}
	return b.String()
}
