package main

import "github.com/pvanko/walletgate/internal/cli"

func main() {
	cli.Execute()
}
