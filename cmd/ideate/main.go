// Command ideate serves and manages configuration-driven CRUD domains.
package main

import "github.com/mesh-intelligence/ideate/internal/cli"

func main() {
	cli.Execute()
}
