// Command viewperf replays recorded rendering event scripts through the span
// tracker and inspects recorded traversals.
package main

import "github.com/sarchlab/viewperf/viewperf/cmd"

func main() {
	cmd.Execute()
}
