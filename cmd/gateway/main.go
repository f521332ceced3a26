// Command gateway runs the policy evaluation gateway.
package main

import "github.com/promptgate/gateway/cmd/gateway/cmd"

func main() {
	cmd.Execute()
}
