package main

import "github.com/HypeFluxAI/Thinkus-sub007/internal/cli"

func main() {
	cli.Execute()
}
