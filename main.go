// smsctl - command-line client for the school management API.
//
// Browse, search and export the user directory, check permissions and
// fetch role dashboards. See 'smsctl --help'.
package main

import (
	"os"

	"github.com/prowessninja/smsctl/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
