package main

import "github.com/spool-tools/spool/cmd"

func main() {
	cmd.Execute()
}
