package main

import (
	"fmt"

	"github.com/finflow/payment-stream-engine/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		fmt.Println(err.Error())
		return
	}
}
