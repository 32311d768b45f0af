package main

import "github.com/frahmantamala/inventory-checkout/cmd"

func main() {
	cmd.Execute()
}
