// Command pgscripts applies versioned SQL scripts to PostgreSQL.
package main

import "github.com/aqasim81/pgscripts/internal/cli"

func main() {
	cli.Execute()
}
