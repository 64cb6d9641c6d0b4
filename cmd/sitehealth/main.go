// Command sitehealth checks a deployed site and its sources and keeps a
// history of health scores.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
