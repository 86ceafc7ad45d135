// Command enjarify translates Dalvik dex bytecode, as found directly in a
// .dex file or packed inside an .apk, into standard JVM classfiles.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
