// Command scanpdf serves and runs image and text to PDF conversions.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
