// Command tablekeepd runs the reservation engine: HTTP API, background
// expiry sweep, and database migrations, as a single binary.
package main

import (
	"github.com/tablekeep/reservation-engine/cmd"
)

func main() {
	cmd.Execute()
}
