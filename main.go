package main

import "github.com/ValentinKolb/dbBench/cmd"

func main() {
	cmd.Execute()
}
