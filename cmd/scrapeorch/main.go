// Command scrapeorch runs the scrape orchestrator API or, when spawned by the
// process runner, a single worker.
package main

import (
	"github.com/ashishsingh-beep/dreamforce-bot-playwright/cmd"
)

func main() {
	cmd.Execute()
}
