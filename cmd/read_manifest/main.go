// Command read_manifest writes an APK's AndroidManifest.xml as pretty,
// resolved text.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/devunwired/apktools"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s <APKFile> <OutFile>\n", os.Args[0])
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(1)
	}

	if err := readManifest(flag.Arg(0), flag.Arg(1)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func readManifest(apkPath, outPath string) error {
	h, err := apkparser.Open(apkPath)
	if err != nil {
		return err
	}
	defer h.Close()

	result, err := h.ParseXml("AndroidManifest.xml", true, true)
	if err != nil {
		return err
	}

	return os.WriteFile(outPath, []byte(result.Text), 0644)
}
