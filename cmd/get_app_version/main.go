// Command get_app_version prints an APK's manifest version fields.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/devunwired/apktools"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s <APKFile>\n", os.Args[0])
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	versionCode, versionName, err := appVersion(flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Printf("[%s, %s]\n", versionCode, versionName)
}

func appVersion(apkPath string) (versionCode, versionName string, err error) {
	h, err := apkparser.Open(apkPath)
	if err != nil {
		return "", "", err
	}
	defer h.Close()

	result, err := h.ParseXml("AndroidManifest.xml", false, true)
	if err != nil {
		return "", "", err
	}

	var root *apkparser.XmlElement
	for _, el := range result.Elements {
		if el.IsRoot {
			root = el
			break
		}
	}
	if root == nil {
		return "", "", fmt.Errorf("manifest has no root element")
	}

	for _, a := range root.Attributes {
		switch a.Name {
		case "versionCode":
			versionCode = a.Value
		case "versionName":
			versionName = a.Value
		}
	}
	return versionCode, versionName, nil
}
