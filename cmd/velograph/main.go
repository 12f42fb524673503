// velograph is the command line tool for schema and migration management.
//
//	velograph schema diff old.schema new.schema
//	velograph schema pull -o current.schema
//	velograph migrate status
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(defaultOpener).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
