// Quell - Defensive Action Orchestrator
// Patch. Isolate. Shut down. Report.
package main

func main() {
	Execute()
}
