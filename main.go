package main

import "github.com/ethanolivertroy/depdetect/cmd"

func main() {
	cmd.Execute()
}
