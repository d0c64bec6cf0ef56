package main

import "github.com/YumeNoTenshi/utilwatch/internal/cli"

func main() {
	cli.Execute()
}
