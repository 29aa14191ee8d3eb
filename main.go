package main

import "github.com/Tiliavir/mitebill/cmd"

func main() {
	cmd.Execute()
}
