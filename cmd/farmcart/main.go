// Command farmcart is the marketplace command line client.
package main

import "github.com/farmcart/farmcart/pkg/cli"

func main() {
	cli.Execute()
}
